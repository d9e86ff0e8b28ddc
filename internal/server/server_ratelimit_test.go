package server

import (
	"fmt"
	"net/http"
	"testing"

	"edushelf/pkg/domain"
)

func TestSendOTPRateLimit(t *testing.T) {
	env := newServerEnv(t, func(cfg *Config) {
		cfg.OTPLimitPerMinute = 2
	})
	// Distinct emails keep the per-email resend gate out of the picture;
	// the third request trips the per-IP window.
	for i := 0; i < 2; i++ {
		status, body := env.do(t, http.MethodPost, "/api/auth/send-otp", "", map[string]string{
			"email": fmt.Sprintf("reader%d@example.com", i),
		})
		if status != http.StatusOK {
			t.Fatalf("send-otp %d = %d %q", i, status, body.Message)
		}
	}
	status, _ := env.do(t, http.MethodPost, "/api/auth/send-otp", "", map[string]string{
		"email": "reader9@example.com",
	})
	if status != http.StatusTooManyRequests {
		t.Fatalf("third send-otp = %d, want 429", status)
	}
}

func TestLoginRateLimit(t *testing.T) {
	env := newServerEnv(t, func(cfg *Config) {
		cfg.LoginLimitPerMinute = 2
	})
	env.seedUser(t, "u1", "reader@example.com", domain.RoleUser, 10)

	for i := 0; i < 2; i++ {
		status, _ := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email":    "reader@example.com",
			"password": "wrong-password",
		})
		if status != http.StatusUnauthorized {
			t.Fatalf("attempt %d = %d, want 401", i, status)
		}
	}
	status, _ := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "reader@example.com",
		"password": "password123",
	})
	if status != http.StatusTooManyRequests {
		t.Fatalf("third login = %d, want 429", status)
	}
}
