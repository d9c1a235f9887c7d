package authbase

import "log"

// EmailSender is the notification gateway contract.  Implementations are
// responsible only for delivery; token semantics stay in this package.
// Delivery failures on enumeration-safe flows are logged and never surfaced
// to the end user.
type EmailSender interface {
	SendVerificationEmail(to string, verificationLink string, name string) error
	SendPasswordResetEmail(to string, resetLink string, name string) error
}

// ConsoleEmailSender is a development implementation that logs messages to
// the console instead of delivering them.
type ConsoleEmailSender struct{}

func (c *ConsoleEmailSender) SendVerificationEmail(to string, verificationLink string, name string) error {
	log.Printf("\n=== EMAIL: Verification ===")
	log.Printf("To: %s", to)
	log.Printf("Subject: Welcome %s! Please verify your email", name)
	log.Printf("Body: Please verify your email by clicking: %s", verificationLink)
	log.Printf("===========================\n")
	return nil
}

func (c *ConsoleEmailSender) SendPasswordResetEmail(to string, resetLink string, name string) error {
	log.Printf("\n=== EMAIL: Password Reset ===")
	log.Printf("To: %s", to)
	log.Printf("Subject: Password Reset Request")
	log.Printf("Body: Hi %s, reset your password by clicking: %s", name, resetLink)
	log.Printf("==============================\n")
	return nil
}
