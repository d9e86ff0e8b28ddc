package app

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials deliberately does not say which of email or
	// password was wrong.
	ErrInvalidCredentials = errors.New("Invalid email or password")

	ErrEmailRequired       = errors.New("Email is required")
	ErrEmailInvalid        = errors.New("Email format is invalid")
	ErrEmailExists         = errors.New("User already exists with this email")
	ErrUsernameExists      = errors.New("User already exists with this username")
	ErrRegistrationInvalid = errors.New("Username, email, password and OTP are required")
	ErrAccountNotVerified  = errors.New("Please verify your email before logging in")
	ErrAccountSuspended    = errors.New("Account is suspended")

	ErrOTPInvalid     = errors.New("Invalid or expired OTP")
	ErrOTPMaxAttempts = errors.New("Maximum OTP attempts reached")

	ErrRefreshTokenRequired = errors.New("Refresh token required")
	ErrInvalidRefreshToken  = errors.New("Invalid refresh token")

	ErrBookNotFound     = errors.New("Book not found")
	ErrProgressNotFound = errors.New("No reading progress for this book this month")

	ErrHighlightNotFound = errors.New("Highlight not found")
	ErrHighlightInvalid  = errors.New("Page and text are required")

	ErrISBNExists      = errors.New("A book with this ISBN already exists")
	ErrFilesRequired   = errors.New("Both cover image and PDF file are required")
	ErrInvalidCategory = errors.New("Invalid category")
	ErrBookInvalid     = errors.New("Title, author and category are required")

	ErrTodoNotFound  = errors.New("Todo not found")
	ErrTodoInvalid   = errors.New("Todo text is required")
	ErrEventNotFound = errors.New("Event not found")
	ErrEventInvalid  = errors.New("Event title and date are required")

	ErrUserNotFound = errors.New("User not found")
	ErrLimitInvalid = errors.New("Monthly book limit must be at least 1")
)

// QuotaExceededError carries the structured limit/current payload that the
// 403 response body exposes.
type QuotaExceededError struct {
	Limit   int
	Current int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("Monthly book limit reached (%d/%d)", e.Current, e.Limit)
}
