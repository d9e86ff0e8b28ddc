package server

import (
	"net/http"
	"strconv"
	"strings"

	"edushelf/pkg/domain"
	"edushelf/pkg/store"
)

type progressRequest struct {
	CurrentPage int `json:"currentPage"`
	PagesRead   int `json:"pagesRead"`
}

type highlightRequest struct {
	Page  int    `json:"page"`
	Text  string `json:"text"`
	Color string `json:"color"`
	Note  string `json:"note"`
}

func bookFilterFromQuery(r *http.Request) store.BookFilter {
	q := r.URL.Query()
	filter := store.BookFilter{
		Category: strings.TrimSpace(q.Get("category")),
		Search:   strings.TrimSpace(q.Get("search")),
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = limit
	}
	return filter
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	list, err := s.app.ListBooks(r.Context(), user, bookFilterFromQuery(r))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, list)
}

// handleBookSubtree dispatches /api/books/{id}, /api/books/{id}/progress,
// /api/books/{id}/highlights and /api/books/highlights/{id}.
func (s *Server) handleBookSubtree(w http.ResponseWriter, r *http.Request, user domain.User) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/books/")
	if rest == "" {
		http.NotFound(w, r)
		return
	}
	parts := strings.SplitN(rest, "/", 2)
	if parts[0] == "stats" && len(parts) == 1 {
		s.handleUserStats(w, r, user)
		return
	}
	if parts[0] == "highlights" {
		if len(parts) != 2 || parts[1] == "" || strings.Contains(parts[1], "/") {
			http.NotFound(w, r)
			return
		}
		s.handleHighlightByID(w, r, user, parts[1])
		return
	}
	bookID := parts[0]
	if len(parts) == 1 {
		s.handleOpenBook(w, r, user, bookID)
		return
	}
	switch parts[1] {
	case "progress":
		s.handleProgress(w, r, user, bookID)
	case "highlights":
		s.handleBookHighlights(w, r, user, bookID)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleOpenBook(w http.ResponseWriter, r *http.Request, user domain.User, bookID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	detail, err := s.app.OpenBook(r.Context(), user, bookID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, detail)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request, user domain.User, bookID string) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	var req progressRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	progress, stats, err := s.app.UpdateProgress(user, bookID, req.CurrentPage, req.PagesRead)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"progress": progress, "stats": stats})
}

func (s *Server) handleBookHighlights(w http.ResponseWriter, r *http.Request, user domain.User, bookID string) {
	switch r.Method {
	case http.MethodGet:
		highlights, err := s.app.ListHighlights(user, bookID)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, highlights)
	case http.MethodPost:
		var req highlightRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
		h, err := s.app.AddHighlight(user, bookID, req.Page, req.Text, req.Color, req.Note)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeData(w, http.StatusCreated, h)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleHighlightByID(w http.ResponseWriter, r *http.Request, user domain.User, highlightID string) {
	switch r.Method {
	case http.MethodPut:
		var req highlightRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
		h, err := s.app.UpdateHighlight(user, highlightID, req.Text, req.Color, req.Note)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, h)
	case http.MethodDelete:
		if err := s.app.DeleteHighlight(user, highlightID); err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, map[string]string{"id": highlightID})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleUserStats(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	stats, err := s.app.GetUserStats(user.ID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, stats)
}
