package services

import (
	"fmt"
	"log/slog"

	"gopkg.in/gomail.v2"
)

// Mailer is the delivery boundary AuthService depends on, satisfied by
// EmailService in production.
type Mailer interface {
	SendPasswordResetEmail(to, name, rawToken string) error
	SendPasswordChangedEmail(to, name string) error
}

// EmailService delivers password-reset and confirmation emails. All mail
// flows through here so SMTP configuration stays in one place.
type EmailService struct {
	dialer    *gomail.Dialer
	from      string
	clientURL string
}

func NewEmailService(config EmailConfig) *EmailService {
	return &EmailService{
		dialer:    gomail.NewDialer(config.Host, config.Port, config.User, config.Pass),
		from:      config.From,
		clientURL: config.ClientURL,
	}
}

// VerifyConnection checks the SMTP connection on startup. Non-fatal: a dead
// mail server should not keep the API from serving.
func (s *EmailService) VerifyConnection() {
	closer, err := s.dialer.Dial()
	if err != nil {
		slog.Warn("SMTP connection failed", "error", err)
		return
	}
	closer.Close()
	slog.Info("SMTP connection verified")
}

func (s *EmailService) send(to, subject, htmlBody string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)
	return s.dialer.DialAndSend(m)
}

// SendPasswordResetEmail mails the raw (un-hashed) reset token as a link.
// The link is only valid for 15 minutes.
func (s *EmailService) SendPasswordResetEmail(to, name, rawToken string) error {
	resetURL := fmt.Sprintf("%s/reset-password?token=%s", s.clientURL, rawToken)
	body := fmt.Sprintf(`
		<p>Hi <strong>%s</strong>,</p>
		<p>We received a request to reset the password for your Prometrix account.</p>
		<p><a href="%s">Reset My Password</a></p>
		<p>This link expires in 15 minutes. If you did not request a password
		reset, you can safely ignore this email.</p>
		<p style="color:#888;font-size:12px;word-break:break-all">If the link doesn't work, paste this URL into your browser:<br/>%s</p>`,
		name, resetURL, resetURL)

	return s.send(to, "Reset your Prometrix password (expires in 15 minutes)", body)
}

// SendPasswordChangedEmail confirms a completed reset.
func (s *EmailService) SendPasswordChangedEmail(to, name string) error {
	body := fmt.Sprintf(`
		<p>Hi <strong>%s</strong>,</p>
		<p>Your Prometrix account password was just updated. You can now log in
		with your new password.</p>
		<p>If you did not make this change, please contact support immediately.</p>`,
		name)

	return s.send(to, "Your Prometrix password has been changed", body)
}
