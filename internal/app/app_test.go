package app

import (
	"context"
	"log/slog"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"edushelf/pkg/auth"
	"edushelf/pkg/domain"
	"edushelf/pkg/storage"
	"edushelf/pkg/store"
)

type sentMail struct {
	To      string
	Subject string
	Body    string
}

// captureMailer records outgoing mail so tests can read OTP codes.
type captureMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *captureMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

var codeRe = regexp.MustCompile(`\b(\d{4})\b`)

func (m *captureMailer) lastCode(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("no mail captured")
	}
	match := codeRe.FindStringSubmatch(m.sent[len(m.sent)-1].Body)
	if match == nil {
		t.Fatal("no code found in mail body")
	}
	return match[1]
}

type testEnv struct {
	app     *App
	store   *store.MemoryStore
	mail    *captureMailer
	redis   *miniredis.Miniredis
	uploads string
}

func newTestEnv(t *testing.T) *testEnv {
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
	mail := &captureMailer{}
	a, err := New(Config{
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
	return &testEnv{app: a, store: dataStore, mail: mail, redis: mr, uploads: uploads}
}

// seedUser creates a verified active user directly in the store.
func (e *testEnv) seedUser(t *testing.T, id, email string, role domain.UserRole, limit int) domain.User {
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
	return user
}

// seedBook creates an active book directly in the store.
func (e *testEnv) seedBook(t *testing.T, id, title string, totalPages int) domain.Book {
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
