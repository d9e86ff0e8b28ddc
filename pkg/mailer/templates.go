package mailer

import "fmt"

// OTPEmail renders the verification-code message.
func OTPEmail(code string, expiresMinutes int) (subject, body string) {
	subject = "Your verification code"
	body = fmt.Sprintf(`<div style="font-family:Arial,sans-serif;max-width:480px;margin:0 auto">
  <h2>Email verification</h2>
  <p>Use the code below to verify your email address.</p>
  <p style="font-size:32px;letter-spacing:8px;font-weight:bold">%s</p>
  <p>This code expires in %d minutes. If you did not request it, you can ignore this email.</p>
</div>`, code, expiresMinutes)
	return subject, body
}

// WelcomeEmail renders the post-registration greeting.
func WelcomeEmail(username string) (subject, body string) {
	subject = "Welcome to EduShelf"
	body = fmt.Sprintf(`<div style="font-family:Arial,sans-serif;max-width:480px;margin:0 auto">
  <h2>Welcome, %s!</h2>
  <p>Your account is ready. Browse the library, open a book, and start reading.</p>
</div>`, username)
	return subject, body
}
