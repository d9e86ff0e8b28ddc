package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"edushelf/internal/app"
	"edushelf/pkg/auth"
	"edushelf/pkg/domain"
	"edushelf/pkg/storage"
	"edushelf/pkg/store"
)

// envelope is the response wrapper every endpoint uses. Limit and Current
// only appear on quota rejections.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Limit   int             `json:"limit"`
	Current int             `json:"current"`
}

type stubMailer struct {
	mu     sync.Mutex
	bodies []string
}

func (m *stubMailer) Send(_ context.Context, _, _, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bodies = append(m.bodies, body)
	return nil
}

var otpCodeRe = regexp.MustCompile(`\b(\d{4})\b`)

func (m *stubMailer) lastCode(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.bodies) == 0 {
		t.Fatal("no mail captured")
	}
	match := otpCodeRe.FindStringSubmatch(m.bodies[len(m.bodies)-1])
	if match == nil {
		t.Fatal("no code found in mail body")
	}
	return match[1]
}

type serverEnv struct {
	ts      *httptest.Server
	store   *store.MemoryStore
	tokens  *store.TokenIssuer
	mail    *stubMailer
	redis   *miniredis.Miniredis
	uploads string
}

func newServerEnv(t *testing.T, opts ...func(*Config)) *serverEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	otps, err := store.NewOTPStore(client, 0, 0, 0)
	if err != nil {
		t.Fatalf("new otp store: %v", err)
	}
	tokens, err := store.NewTokenIssuer("test-secret", "test-refresh-secret", time.Hour, time.Hour)
	if err != nil {
		t.Fatalf("new token issuer: %v", err)
	}
	uploads := t.TempDir()
	objects, err := storage.NewFileStore(uploads, "http://localhost:2000/uploads")
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	dataStore := store.NewMemoryStore()
	mail := &stubMailer{}
	a, err := app.New(app.Config{
		Logger:  slog.Default(),
		Store:   dataStore,
		Objects: objects,
		OTPs:    otps,
		Tokens:  tokens,
		Mail:    mail,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	cfg := Config{
		App:                 a,
		Redis:               client,
		OTPLimitPerMinute:   100,
		LoginLimitPerMinute: 100,
		StaticDir:           uploads,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &serverEnv{ts: ts, store: dataStore, tokens: tokens, mail: mail, redis: mr, uploads: uploads}
}

func (e *serverEnv) seedUser(t *testing.T, id, email string, role domain.UserRole, limit int) (domain.User, string) {
	t.Helper()
	hash, err := auth.HashPassword("password123")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	now := time.Now().UTC()
	user := domain.User{
		ID:               id,
		Username:         id,
		Email:            email,
		PasswordHash:     hash,
		Role:             role,
		IsVerified:       true,
		AccountStatus:    domain.StatusActive,
		MonthlyBookLimit: limit,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := e.store.CreateUser(user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	token, err := e.tokens.NewAccessToken(user.ID, string(user.Role))
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return user, token
}

func (e *serverEnv) seedBook(t *testing.T, id, title string, totalPages int) domain.Book {
	t.Helper()
	now := time.Now().UTC()
	book := domain.Book{
		ID:         id,
		Title:      title,
		Author:     "Author",
		Category:   domain.CategoryScience,
		TotalPages: totalPages,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := e.store.CreateBook(book); err != nil {
		t.Fatalf("seed book: %v", err)
	}
	return book
}

// do issues a JSON request and decodes the response envelope.
func (e *serverEnv) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && err != io.EOF {
		t.Fatalf("decode %s %s: %v", method, path, err)
	}
	return resp.StatusCode, env
}

func TestRegistrationFlowOverHTTP(t *testing.T) {
	env := newServerEnv(t)

	status, body := env.do(t, http.MethodPost, "/api/auth/send-otp", "", map[string]string{
		"email": "reader@example.com",
	})
	if status != http.StatusOK || !body.Success {
		t.Fatalf("send-otp = %d %q", status, body.Message)
	}

	code := env.mail.lastCode(t)
	status, body = env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "reader",
		"email":    "reader@example.com",
		"password": "password123",
		"otp":      code,
	})
	if status != http.StatusCreated {
		t.Fatalf("register = %d %q", status, body.Message)
	}
	var created authResponse
	if err := json.Unmarshal(body.Data, &created); err != nil {
		t.Fatalf("decode register data: %v", err)
	}
	if created.Token == "" {
		t.Fatal("register should return an access token")
	}

	status, body = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "reader@example.com",
		"password": "password123",
	})
	if status != http.StatusOK {
		t.Fatalf("login = %d %q", status, body.Message)
	}
	var logged authResponse
	if err := json.Unmarshal(body.Data, &logged); err != nil {
		t.Fatalf("decode login data: %v", err)
	}
	if logged.RefreshToken == "" {
		t.Fatal("login should return a refresh token")
	}

	status, body = env.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{
		"refreshToken": logged.RefreshToken,
	})
	if status != http.StatusOK {
		t.Fatalf("refresh = %d %q", status, body.Message)
	}

	status, _ = env.do(t, http.MethodGet, "/api/auth/me", logged.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("me with token = %d", status)
	}
	status, _ = env.do(t, http.MethodGet, "/api/auth/me", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("me without token = %d, want 401", status)
	}
}

func TestRegisterWithWrongOTP(t *testing.T) {
	env := newServerEnv(t)
	if status, body := env.do(t, http.MethodPost, "/api/auth/send-otp", "", map[string]string{
		"email": "reader@example.com",
	}); status != http.StatusOK {
		t.Fatalf("send-otp = %d %q", status, body.Message)
	}
	code := env.mail.lastCode(t)
	wrong := "0000"
	if wrong == code {
		wrong = "1111"
	}
	status, body := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "reader",
		"email":    "reader@example.com",
		"password": "password123",
		"otp":      wrong,
	})
	if status != http.StatusBadRequest {
		t.Fatalf("wrong otp = %d, want 400", status)
	}
	if body.Message != "Invalid or expired OTP" {
		t.Fatalf("message = %q", body.Message)
	}
}

func TestQuotaRejectionBody(t *testing.T) {
	env := newServerEnv(t)
	_, token := env.seedUser(t, "u1", "reader@example.com", domain.RoleUser, 1)
	env.seedBook(t, "b1", "One", 100)
	env.seedBook(t, "b2", "Two", 100)

	if status, body := env.do(t, http.MethodGet, "/api/books/b1", token, nil); status != http.StatusOK {
		t.Fatalf("open b1 = %d %q", status, body.Message)
	}
	status, body := env.do(t, http.MethodGet, "/api/books/b2", token, nil)
	if status != http.StatusForbidden {
		t.Fatalf("open b2 = %d, want 403", status)
	}
	if body.Limit != 1 || body.Current != 1 {
		t.Fatalf("quota payload = %d/%d, want limit 1, current 1", body.Limit, body.Current)
	}
	// The already-unlocked book stays readable.
	if status, body := env.do(t, http.MethodGet, "/api/books/b1", token, nil); status != http.StatusOK {
		t.Fatalf("reopen b1 = %d %q", status, body.Message)
	}
}

func TestProgressAndStatsEndpoints(t *testing.T) {
	env := newServerEnv(t)
	_, token := env.seedUser(t, "u1", "reader@example.com", domain.RoleUser, 10)
	env.seedBook(t, "b1", "Physics", 100)

	if status, body := env.do(t, http.MethodGet, "/api/books/b1", token, nil); status != http.StatusOK {
		t.Fatalf("open = %d %q", status, body.Message)
	}
	status, body := env.do(t, http.MethodPut, "/api/books/b1/progress", token, map[string]int{
		"currentPage": 40,
		"pagesRead":   40,
	})
	if status != http.StatusOK {
		t.Fatalf("progress = %d %q", status, body.Message)
	}

	status, body = env.do(t, http.MethodGet, "/api/users/stats", token, nil)
	if status != http.StatusOK {
		t.Fatalf("stats = %d %q", status, body.Message)
	}
	var stats app.UserStats
	if err := json.Unmarshal(body.Data, &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalPagesRead != 40 || stats.ReadingStreak != 1 {
		t.Fatalf("stats = %+v, want 40 pages, streak 1", stats)
	}
}

func TestHighlightEndpoints(t *testing.T) {
	env := newServerEnv(t)
	_, token := env.seedUser(t, "u1", "reader@example.com", domain.RoleUser, 10)
	env.seedBook(t, "b1", "Physics", 100)

	status, body := env.do(t, http.MethodPost, "/api/books/b1/highlights", token, map[string]any{
		"page": 7,
		"text": "key passage",
	})
	if status != http.StatusCreated {
		t.Fatalf("add highlight = %d %q", status, body.Message)
	}
	var created domain.Highlight
	if err := json.Unmarshal(body.Data, &created); err != nil {
		t.Fatalf("decode highlight: %v", err)
	}
	if created.Color != "#fef3c7" {
		t.Fatalf("color = %q, want default", created.Color)
	}

	status, _ = env.do(t, http.MethodDelete, "/api/books/highlights/"+created.ID, token, nil)
	if status != http.StatusOK {
		t.Fatalf("delete highlight = %d", status)
	}
	status, _ = env.do(t, http.MethodDelete, "/api/books/highlights/"+created.ID, token, nil)
	if status != http.StatusNotFound {
		t.Fatalf("delete again = %d, want 404", status)
	}
}

func TestTodoAndEventEndpoints(t *testing.T) {
	env := newServerEnv(t)
	_, token := env.seedUser(t, "u1", "reader@example.com", domain.RoleUser, 10)

	status, body := env.do(t, http.MethodPost, "/api/todos", token, map[string]any{
		"text":    "review notes",
		"dueDate": "2026-09-10",
	})
	if status != http.StatusCreated {
		t.Fatalf("create todo = %d %q", status, body.Message)
	}
	var todo domain.Todo
	if err := json.Unmarshal(body.Data, &todo); err != nil {
		t.Fatalf("decode todo: %v", err)
	}
	status, _ = env.do(t, http.MethodPut, "/api/todos/"+todo.ID, token, map[string]any{"completed": true})
	if status != http.StatusOK {
		t.Fatalf("update todo = %d", status)
	}

	status, body = env.do(t, http.MethodPost, "/api/events", token, map[string]any{
		"title": "Exam",
		"date":  "2026-09-20",
		"type":  "deadline",
	})
	if status != http.StatusCreated {
		t.Fatalf("create event = %d %q", status, body.Message)
	}
	status, body = env.do(t, http.MethodGet, "/api/events", token, nil)
	if status != http.StatusOK {
		t.Fatalf("list events = %d", status)
	}
	var events []domain.Event
	if err := json.Unmarshal(body.Data, &events); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
}

func TestForgotPasswordNotImplemented(t *testing.T) {
	env := newServerEnv(t)
	status, _ := env.do(t, http.MethodPost, "/api/auth/forgot-password", "", map[string]string{
		"email": "reader@example.com",
	})
	if status != http.StatusNotImplemented {
		t.Fatalf("forgot-password = %d, want 501", status)
	}
}
