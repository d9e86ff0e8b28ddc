package server

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"edushelf/internal/app"
	"edushelf/internal/ratelimit"
	"edushelf/internal/util"
	"edushelf/pkg/domain"
)

// Config carries the server wiring. Redis is optional: without a client the
// rate limiters are disabled (tests run that way).
type Config struct {
	App    *app.App
	Logger *slog.Logger

	Redis               *redis.Client
	OTPLimitPerMinute   int
	LoginLimitPerMinute int

	CORSOrigin     string
	MaxUploadBytes int64

	// StaticDir, when set, serves stored assets under /uploads/.
	StaticDir string
}

// Server is the portal's HTTP API.
type Server struct {
	app            *app.App
	logger         *slog.Logger
	mux            *http.ServeMux
	maxUploadBytes int64
	corsOrigin     string

	otpLimiter   *ratelimit.FixedWindowLimiter
	loginLimiter *ratelimit.FixedWindowLimiter
}

// New builds the server and registers all routes.
func New(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		app:            cfg.App,
		logger:         logger,
		mux:            http.NewServeMux(),
		maxUploadBytes: normalizeMaxBytes(cfg.MaxUploadBytes),
		corsOrigin:     cfg.CORSOrigin,
	}
	if cfg.Redis != nil {
		otpLimit := cfg.OTPLimitPerMinute
		if otpLimit <= 0 {
			otpLimit = 5
		}
		loginLimit := cfg.LoginLimitPerMinute
		if loginLimit <= 0 {
			loginLimit = 10
		}
		var err error
		s.otpLimiter, err = ratelimit.New(cfg.Redis, "rl:otp", otpLimit, time.Minute)
		if err != nil {
			return nil, err
		}
		s.loginLimiter, err = ratelimit.New(cfg.Redis, "rl:login", loginLimit, time.Minute)
		if err != nil {
			return nil, err
		}
	}
	s.routes(cfg.StaticDir)
	return s, nil
}

func (s *Server) routes(staticDir string) {
	health := func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
	s.mux.HandleFunc("/healthz", health)
	s.mux.HandleFunc("/api/health", health)

	s.mux.HandleFunc("/api/auth/send-otp", s.handleSendOTP)
	s.mux.HandleFunc("/api/auth/resend-otp", s.handleSendOTP)
	s.mux.HandleFunc("/api/auth/verify-otp-register", s.handleRegister)
	s.mux.HandleFunc("/api/auth/register", s.handleRegister)
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.HandleFunc("/api/auth/refresh", s.handleRefresh)
	s.mux.HandleFunc("/api/auth/forgot-password", s.handleForgotPassword)
	s.mux.Handle("/api/auth/me", s.authenticated(s.handleMe))

	s.mux.Handle("/api/books", s.authenticated(s.handleListBooks))
	s.mux.Handle("/api/books/", s.authenticated(s.handleBookSubtree))
	s.mux.Handle("/api/users/stats", s.authenticated(s.handleUserStats))

	s.mux.Handle("/api/todos", s.authenticated(s.handleTodos))
	s.mux.Handle("/api/todos/", s.authenticated(s.handleTodoByID))
	s.mux.Handle("/api/events", s.authenticated(s.handleEvents))
	s.mux.Handle("/api/events/", s.authenticated(s.handleEventByID))

	s.mux.Handle("/api/admin/books", s.adminOnly(s.handleAdminBooks))
	s.mux.Handle("/api/admin/books/", s.adminOnly(s.handleAdminBookByID))
	s.mux.Handle("/api/admin/stats", s.adminOnly(s.handleAdminStats))
	s.mux.Handle("/api/admin/users", s.adminOnly(s.handleAdminUsers))
	s.mux.Handle("/api/admin/users/", s.adminOnly(s.handleAdminUserLimit))

	if staticDir != "" {
		s.mux.Handle("/uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(staticDir))))
	}
}

// Router wraps the mux with the shared middleware chain.
func (s *Server) Router() http.Handler {
	var handler http.Handler = s.mux
	handler = util.WithRequestLog(handler)
	handler = util.WithRequestID(handler)
	handler = util.WithCORS(s.corsOrigin, handler)
	handler = util.WithSecurityHeaders(handler)
	return handler
}

// authHandler is an HTTP handler that requires a resolved user.
type authHandler func(w http.ResponseWriter, r *http.Request, user domain.User)

func (s *Server) authenticated(h authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		user, ok := s.app.UserFromToken(token)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		h(w, r, user)
	})
}

func (s *Server) adminOnly(h authHandler) http.Handler {
	return s.authenticated(func(w http.ResponseWriter, r *http.Request, user domain.User) {
		if user.Role != domain.RoleAdmin {
			writeError(w, http.StatusForbidden, "Admin access required")
			return
		}
		h(w, r, user)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	if limiter == nil {
		return true
	}
	key := r.URL.Path + "|" + util.ClientIP(r)
	if limiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

func normalizeMaxBytes(value int64) int64 {
	if value <= 0 {
		return 50 * 1024 * 1024
	}
	return value
}
