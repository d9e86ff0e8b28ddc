package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"edushelf/internal/app"
	"edushelf/pkg/auth"
	"edushelf/pkg/store"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeData wraps a successful payload in the response envelope.
func writeData(w http.ResponseWriter, status int, payload any) {
	writeJSON(w, status, map[string]any{"success": true, "data": payload})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "message": msg})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst)
}

// writeAppError maps application errors onto HTTP statuses. Unrecognized
// errors are logged and reported as an opaque 500.
func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	var quota *app.QuotaExceededError
	if errors.As(err, &quota) {
		writeJSON(w, http.StatusForbidden, map[string]any{
			"success": false,
			"message": quota.Error(),
			"limit":   quota.Limit,
			"current": quota.Current,
		})
		return
	}
	var tooSoon *store.ResendTooSoonError
	if errors.As(err, &tooSoon) {
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(tooSoon.Wait.Seconds())+1))
		writeError(w, http.StatusTooManyRequests, tooSoon.Error())
		return
	}

	switch {
	case errors.Is(err, app.ErrInvalidCredentials),
		errors.Is(err, app.ErrInvalidRefreshToken):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, app.ErrAccountNotVerified),
		errors.Is(err, app.ErrAccountSuspended):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, app.ErrBookNotFound),
		errors.Is(err, app.ErrProgressNotFound),
		errors.Is(err, app.ErrHighlightNotFound),
		errors.Is(err, app.ErrTodoNotFound),
		errors.Is(err, app.ErrEventNotFound),
		errors.Is(err, app.ErrUserNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrEmailRequired),
		errors.Is(err, app.ErrEmailExists),
		errors.Is(err, app.ErrUsernameExists),
		errors.Is(err, app.ErrISBNExists),
		errors.Is(err, app.ErrEmailInvalid),
		errors.Is(err, auth.ErrPasswordTooShort),
		errors.Is(err, app.ErrRegistrationInvalid),
		errors.Is(err, app.ErrOTPInvalid),
		errors.Is(err, app.ErrOTPMaxAttempts),
		errors.Is(err, app.ErrRefreshTokenRequired),
		errors.Is(err, app.ErrHighlightInvalid),
		errors.Is(err, app.ErrFilesRequired),
		errors.Is(err, app.ErrInvalidCategory),
		errors.Is(err, app.ErrBookInvalid),
		errors.Is(err, app.ErrTodoInvalid),
		errors.Is(err, app.ErrEventInvalid),
		errors.Is(err, app.ErrLimitInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logger := s.logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
