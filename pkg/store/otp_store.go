package store

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrOTPInvalid covers missing, expired, and mismatched codes so a
	// caller cannot distinguish which condition failed.
	ErrOTPInvalid = errors.New("invalid or expired otp")
	// ErrOTPMaxAttempts indicates the verification attempt budget is spent.
	ErrOTPMaxAttempts = errors.New("maximum otp attempts reached")
)

// ResendTooSoonError reports how long the caller must wait before a new
// code can be issued for the same email.
type ResendTooSoonError struct {
	Wait time.Duration
}

func (e *ResendTooSoonError) Error() string {
	return fmt.Sprintf("please wait %d seconds before requesting a new code", int(e.Wait.Seconds()))
}

type otpRecord struct {
	Email     string    `json:"email"`
	CodeHash  string    `json:"codeHash"`
	ExpiresAt time.Time `json:"expiresAt"`
	Attempts  int       `json:"attempts"`
}

// OTPStore keeps one pending verification code per email in Redis.
// Codes are bcrypt-hashed at rest and consumed on successful verification.
type OTPStore struct {
	client      *redis.Client
	keyPrefix   string
	codeTTL     time.Duration
	resendAfter time.Duration
	maxAttempts int
}

// NewOTPStore builds an OTP store. Zero values fall back to the defaults:
// 5 minute code lifetime, 60 second resend gate, 3 attempts.
func NewOTPStore(client *redis.Client, codeTTL, resendAfter time.Duration, maxAttempts int) (*OTPStore, error) {
	if client == nil {
		return nil, errors.New("otp store requires a redis client")
	}
	if codeTTL <= 0 {
		codeTTL = 5 * time.Minute
	}
	if resendAfter <= 0 {
		resendAfter = time.Minute
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &OTPStore{
		client:      client,
		keyPrefix:   "edushelf:otp",
		codeTTL:     codeTTL,
		resendAfter: resendAfter,
		maxAttempts: maxAttempts,
	}, nil
}

// TTLSeconds returns the code lifetime in seconds for API responses.
func (s *OTPStore) TTLSeconds() int {
	return int(s.codeTTL.Seconds())
}

// Create issues a fresh 4-digit code for the email, replacing any pending
// one. A second request inside the resend window returns ResendTooSoonError.
func (s *OTPStore) Create(email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return "", errors.New("email is required")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resendKey := s.resendKey(email)
	allowed, err := s.client.SetNX(ctx, resendKey, "1", s.resendAfter).Result()
	if err != nil {
		return "", err
	}
	if !allowed {
		wait, err := s.client.TTL(ctx, resendKey).Result()
		if err != nil || wait <= 0 {
			wait = s.resendAfter
		}
		return "", &ResendTooSoonError{Wait: wait}
	}

	code, err := generateNumericCode(4)
	if err != nil {
		_ = s.client.Del(ctx, resendKey).Err()
		return "", fmt.Errorf("generate otp code: %w", err)
	}
	codeHash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		_ = s.client.Del(ctx, resendKey).Err()
		return "", fmt.Errorf("hash otp code: %w", err)
	}
	record := otpRecord{
		Email:     email,
		CodeHash:  string(codeHash),
		ExpiresAt: time.Now().UTC().Add(s.codeTTL),
	}
	raw, err := json.Marshal(record)
	if err != nil {
		_ = s.client.Del(ctx, resendKey).Err()
		return "", fmt.Errorf("marshal otp record: %w", err)
	}
	// Persist slightly past expiry so a late attempt still burns the record.
	if err := s.client.Set(ctx, s.recordKey(email), raw, s.codeTTL+time.Minute).Err(); err != nil {
		_ = s.client.Del(ctx, resendKey).Err()
		return "", err
	}
	return code, nil
}

// Verify checks the code for the email and consumes the record on success.
// A verified code can never be used a second time.
func (s *OTPStore) Verify(email, code string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return ErrOTPInvalid
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	key := s.recordKey(email)
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrOTPInvalid
	}
	if err != nil {
		return err
	}
	var record otpRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return fmt.Errorf("unmarshal otp record: %w", err)
	}
	if time.Now().UTC().After(record.ExpiresAt) {
		_ = s.client.Del(ctx, key).Err()
		return ErrOTPInvalid
	}
	if record.Attempts >= s.maxAttempts {
		_ = s.client.Del(ctx, key).Err()
		return ErrOTPMaxAttempts
	}
	if bcrypt.CompareHashAndPassword([]byte(record.CodeHash), []byte(code)) != nil {
		record.Attempts++
		raw, marshalErr := json.Marshal(record)
		if marshalErr == nil {
			ttl, ttlErr := s.client.TTL(ctx, key).Result()
			if ttlErr == nil && ttl > 0 {
				_ = s.client.Set(ctx, key, raw, ttl).Err()
			}
		}
		return ErrOTPInvalid
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return err
	}
	return nil
}

func (s *OTPStore) recordKey(email string) string {
	return fmt.Sprintf("%s:code:%s", s.keyPrefix, email)
}

func (s *OTPStore) resendKey(email string) string {
	return fmt.Sprintf("%s:resend:%s", s.keyPrefix, email)
}

func generateNumericCode(length int) (string, error) {
	if length <= 0 {
		length = 4
	}
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
