package app

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"edushelf/internal/util"
	"edushelf/pkg/auth"
	"edushelf/pkg/domain"
	"edushelf/pkg/mailer"
	"edushelf/pkg/store"
)

const otpMaxAttempts = 3

// OTPIssued describes a freshly issued verification code.
type OTPIssued struct {
	Email     string `json:"email"`
	Attempts  int    `json:"attempts"`
	ExpiresIn int    `json:"expiresIn"`
}

// SendOTP issues a verification code for a new registration and emails it.
func (a *App) SendOTP(ctx context.Context, email string) (OTPIssued, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return OTPIssued{}, err
	}
	_, exists, err := a.store.GetUserByEmail(email)
	if err != nil {
		return OTPIssued{}, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return OTPIssued{}, ErrEmailExists
	}
	code, err := a.otps.Create(email)
	if err != nil {
		var tooSoon *store.ResendTooSoonError
		if errors.As(err, &tooSoon) {
			return OTPIssued{}, tooSoon
		}
		return OTPIssued{}, fmt.Errorf("issue otp: %w", err)
	}
	subject, body := mailer.OTPEmail(code, a.otps.TTLSeconds()/60)
	if err := a.mail.Send(ctx, email, subject, body); err != nil {
		a.logger.Error("otp email delivery failed", "email", maskEmail(email), "error", err)
		return OTPIssued{}, fmt.Errorf("send otp email: %w", err)
	}
	return OTPIssued{
		Email:     email,
		Attempts:  otpMaxAttempts,
		ExpiresIn: a.otps.TTLSeconds(),
	}, nil
}

// Register finalizes OTP-gated registration: verifies the code, creates the
// user, and issues an access token. The first account becomes an admin.
func (a *App) Register(ctx context.Context, username, email, password, otp string) (domain.User, string, error) {
	username = strings.TrimSpace(username)
	otp = strings.TrimSpace(otp)
	if username == "" || email == "" || password == "" || otp == "" {
		return domain.User{}, "", ErrRegistrationInvalid
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return domain.User{}, "", err
	}
	if err := auth.ValidatePassword(password); err != nil {
		return domain.User{}, "", err
	}
	if err := a.otps.Verify(email, otp); err != nil {
		switch {
		case errors.Is(err, store.ErrOTPMaxAttempts):
			return domain.User{}, "", ErrOTPMaxAttempts
		case errors.Is(err, store.ErrOTPInvalid):
			return domain.User{}, "", ErrOTPInvalid
		default:
			return domain.User{}, "", fmt.Errorf("verify otp: %w", err)
		}
	}
	_, exists, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.User{}, "", ErrEmailExists
	}
	_, taken, err := a.store.GetUserByUsername(username)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("check username: %w", err)
	}
	if taken {
		return domain.User{}, "", ErrUsernameExists
	}
	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("hash password: %w", err)
	}
	role := domain.RoleUser
	count, err := a.store.UserCount()
	if err != nil {
		return domain.User{}, "", fmt.Errorf("count users: %w", err)
	}
	if count == 0 {
		role = domain.RoleAdmin
	}
	now := time.Now().UTC()
	user := domain.User{
		ID:               util.NewID(),
		Username:         username,
		Email:            email,
		PasswordHash:     passwordHash,
		Role:             role,
		IsVerified:       true,
		AccountStatus:    domain.StatusActive,
		MonthlyBookLimit: defaultMonthlyBookLimit,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := a.store.CreateUser(user); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			// A concurrent registration won the insert; report whichever
			// unique field it claimed.
			if _, exists, lookupErr := a.store.GetUserByEmail(email); lookupErr == nil && exists {
				return domain.User{}, "", ErrEmailExists
			}
			return domain.User{}, "", ErrUsernameExists
		}
		return domain.User{}, "", fmt.Errorf("save user: %w", err)
	}
	subject, body := mailer.WelcomeEmail(username)
	if err := a.mail.Send(ctx, email, subject, body); err != nil {
		// Registration already succeeded, the greeting is best-effort.
		a.logger.Warn("welcome email delivery failed", "email", maskEmail(email), "error", err)
	}
	token, err := a.tokens.NewAccessToken(user.ID, string(user.Role))
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue access token: %w", err)
	}
	return user, token, nil
}

// Login validates credentials and issues an access/refresh token pair.
func (a *App) Login(email, password string) (domain.User, string, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, "", "", ErrInvalidCredentials
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", "", ErrInvalidCredentials
	}
	if !user.IsVerified {
		return domain.User{}, "", "", ErrAccountNotVerified
	}
	if user.AccountStatus != domain.StatusActive {
		return domain.User{}, "", "", ErrAccountSuspended
	}
	now := time.Now().UTC()
	user.LastLogin = &now
	if err := a.store.UpdateUser(user); err != nil {
		return domain.User{}, "", "", fmt.Errorf("record login: %w", err)
	}
	accessToken, err := a.tokens.NewAccessToken(user.ID, string(user.Role))
	if err != nil {
		return domain.User{}, "", "", fmt.Errorf("issue access token: %w", err)
	}
	refreshToken, err := a.tokens.NewRefreshToken(user.ID)
	if err != nil {
		return domain.User{}, "", "", fmt.Errorf("issue refresh token: %w", err)
	}
	return user, accessToken, refreshToken, nil
}

// Refresh exchanges a valid refresh token for a new access token.
func (a *App) Refresh(refreshToken string) (domain.User, string, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return domain.User{}, "", ErrRefreshTokenRequired
	}
	userID, ok := a.tokens.VerifyRefreshToken(refreshToken)
	if !ok {
		return domain.User{}, "", ErrInvalidRefreshToken
	}
	user, found, err := a.store.GetUserByID(userID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("fetch user: %w", err)
	}
	if !found || user.AccountStatus != domain.StatusActive {
		return domain.User{}, "", ErrInvalidRefreshToken
	}
	accessToken, err := a.tokens.NewAccessToken(user.ID, string(user.Role))
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue access token: %w", err)
	}
	return user, accessToken, nil
}

// UserFromToken resolves an active user from a bearer access token.
func (a *App) UserFromToken(token string) (domain.User, bool) {
	userID, _, ok := a.tokens.VerifyAccessToken(token)
	if !ok {
		return domain.User{}, false
	}
	user, found, err := a.store.GetUserByID(userID)
	if err != nil || !found {
		return domain.User{}, false
	}
	if user.AccountStatus != domain.StatusActive {
		return domain.User{}, false
	}
	return user, true
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return "", ErrEmailRequired
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", ErrEmailInvalid
	}
	return email, nil
}

func maskEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return email
	}
	local := parts[0]
	if local == "" {
		return "***@" + parts[1]
	}
	if len(local) <= 2 {
		return local[:1] + "***@" + parts[1]
	}
	return local[:1] + "***" + local[len(local)-1:] + "@" + parts[1]
}
