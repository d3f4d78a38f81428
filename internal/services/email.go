package services

import (
	"fmt"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"studybuddy-backend/internal/logger"
)

// EmailConfig selects the outgoing transport. A SendGrid key wins over SMTP;
// with neither configured mail is written to the log.
type EmailConfig struct {
	SMTPHost       string
	SMTPPort       string
	SMTPUser       string
	SMTPPass       string
	From           string
	SendgridAPIKey string
	FrontendURL    string
}

type mailSender interface {
	send(to, subject, textBody, htmlBody string) error
}

type EmailService struct {
	sender      mailSender
	frontendURL string
	log         *logger.Logger
}

func NewEmailService(cfg EmailConfig, log *logger.Logger) *EmailService {
	log = log.With("component", "email")
	var sender mailSender
	switch {
	case cfg.SendgridAPIKey != "":
		sender = &sendgridSender{key: cfg.SendgridAPIKey, host: sendgridHost, from: sgmail.NewEmail("StudyBuddy", cfg.From), log: log}
	case cfg.SMTPHost != "" && cfg.SMTPUser != "":
		sender = &smtpSender{host: cfg.SMTPHost, port: cfg.SMTPPort, user: cfg.SMTPUser, pass: cfg.SMTPPass, from: cfg.From}
	default:
		log.Warn("email service running in dev mode, messages are logged only")
		sender = &consoleSender{log: log}
	}
	return &EmailService{sender: sender, frontendURL: cfg.FrontendURL, log: log}
}

// SendSessionReminderEmail tells a student about an upcoming study session.
func (s *EmailService) SendSessionReminderEmail(to, username, courseTitle, sessionTitle string, at time.Time, timeOfDay string) error {
	link := fmt.Sprintf("%s/study-plans", s.frontendURL)
	when := at.UTC().Format("Monday, January 2")
	if timeOfDay != "" {
		when += " (" + timeOfDay + ")"
	}

	subject := "Upcoming study session: " + sessionTitle
	text := fmt.Sprintf("Hi %s,\n\nYour study session \"%s\" for %s is scheduled for %s.\n\nOpen your plan: %s\n",
		username, sessionTitle, courseTitle, when, link)
	html := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: 'Segoe UI', Arial, sans-serif; margin: 0; padding: 0; background-color: #f8fafc;">
  <div style="max-width: 480px; margin: 40px auto; background: white; border-radius: 12px; box-shadow: 0 4px 24px rgba(0,0,0,0.08); overflow: hidden;">
    <div style="background: #4f46e5; padding: 24px; text-align: center;">
      <h1 style="color: white; margin: 0; font-size: 22px; font-weight: 700;">StudyBuddy</h1>
    </div>
    <div style="padding: 32px;">
      <p style="color: #1e293b; font-size: 14px;">Hi %s,</p>
      <p style="color: #64748b; font-size: 14px; line-height: 1.6;">
        Your study session <strong>%s</strong> for <strong>%s</strong> is scheduled for %s.
      </p>
      <a href="%s" style="display: inline-block; background: #4f46e5; color: white; text-decoration: none; padding: 12px 32px; border-radius: 8px; font-weight: 600; font-size: 14px;">
        Open Study Plan
      </a>
    </div>
  </div>
</body>
</html>`, username, sessionTitle, courseTitle, when, link)

	return s.sender.send(to, subject, text, html)
}

type consoleSender struct {
	log *logger.Logger
}

func (c *consoleSender) send(to, subject, textBody, _ string) error {
	c.log.Info("dev email", "to", to, "subject", subject, "body", textBody)
	return nil
}

type smtpSender struct {
	host, port, user, pass, from string
}

func (s *smtpSender) send(to, subject, _, htmlBody string) error {
	headers := []string{
		fmt.Sprintf("From: %s", s.from),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=UTF-8",
	}
	message := strings.Join(headers, "\r\n") + "\r\n\r\n" + htmlBody

	auth := smtp.PlainAuth("", s.user, s.pass, s.host)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	if err := smtp.SendMail(addr, auth, s.from, []string{to}, []byte(message)); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return nil
}

const sendgridHost = "https://api.sendgrid.com"

type sendgridSender struct {
	key  string
	host string
	from *sgmail.Email
	log  *logger.Logger
}

func (s *sendgridSender) send(to, subject, textBody, htmlBody string) error {
	p := sgmail.NewPersonalization()
	p.Subject = subject
	p.AddTos(sgmail.NewEmail("", to))

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(
		sgmail.NewContent("text/plain", textBody),
		sgmail.NewContent("text/html", htmlBody),
	)

	req := sendgrid.GetRequest(s.key, "/v3/mail/send", s.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m)

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid status %d: %s", res.StatusCode, res.Body)
	}
	s.log.Debug("email sent", "to", to, "subject", subject)
	return nil
}
