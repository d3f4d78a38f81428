package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

type recordedMail struct {
	to, subject, text, html string
}

type recordingSender struct {
	sent []recordedMail
}

func (r *recordingSender) send(to, subject, textBody, htmlBody string) error {
	r.sent = append(r.sent, recordedMail{to, subject, textBody, htmlBody})
	return nil
}

func TestNewEmailService_PicksTransport(t *testing.T) {
	tests := []struct {
		name string
		cfg  EmailConfig
		want string
	}{
		{"sendgrid wins", EmailConfig{SendgridAPIKey: "SG.key", SMTPHost: "smtp.example.com", SMTPUser: "u"}, "sendgrid"},
		{"smtp", EmailConfig{SMTPHost: "smtp.example.com", SMTPUser: "u", SMTPPort: "587"}, "smtp"},
		{"smtp without user", EmailConfig{SMTPHost: "smtp.example.com"}, "console"},
		{"nothing configured", EmailConfig{}, "console"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewEmailService(tc.cfg, testLogger())
			var got string
			switch svc.sender.(type) {
			case *sendgridSender:
				got = "sendgrid"
			case *smtpSender:
				got = "smtp"
			case *consoleSender:
				got = "console"
			}
			if got != tc.want {
				t.Fatalf("transport = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestSendSessionReminderEmail(t *testing.T) {
	rec := &recordingSender{}
	svc := &EmailService{sender: rec, frontendURL: "https://app.example.com", log: testLogger()}

	at := time.Date(2025, 3, 5, 19, 0, 0, 0, time.UTC)
	if err := svc.SendSessionReminderEmail("sam@example.com", "sam", "Networks", "Session 2: Routing", at, "evening"); err != nil {
		t.Fatal(err)
	}
	if len(rec.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(rec.sent))
	}
	m := rec.sent[0]
	if m.to != "sam@example.com" || m.subject != "Upcoming study session: Session 2: Routing" {
		t.Fatalf("unexpected envelope: %+v", m)
	}
	for _, want := range []string{"Wednesday, March 5 (evening)", "Networks", "https://app.example.com/study-plans"} {
		if !strings.Contains(m.text, want) || !strings.Contains(m.html, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestSendgridSender(t *testing.T) {
	var gotAuth, gotPath string
	var body struct {
		Personalizations []struct {
			Subject string `json:"subject"`
			To      []struct {
				Email string `json:"email"`
			} `json:"to"`
		} `json:"personalizations"`
		Content []struct {
			Type string `json:"type"`
		} `json:"content"`
	}
	status := http.StatusAccepted
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(status)
	}))
	defer srv.Close()

	s := &sendgridSender{key: "SG.test", host: srv.URL, from: sgmail.NewEmail("StudyBuddy", "noreply@example.com"), log: testLogger()}
	if err := s.send("kim@example.com", "Hello", "plain", "<p>html</p>"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotAuth != "Bearer SG.test" || gotPath != "/v3/mail/send" {
		t.Fatalf("unexpected request: auth %q path %q", gotAuth, gotPath)
	}
	if len(body.Personalizations) != 1 || body.Personalizations[0].Subject != "Hello" ||
		body.Personalizations[0].To[0].Email != "kim@example.com" || len(body.Content) != 2 {
		t.Fatalf("unexpected payload: %+v", body)
	}

	status = http.StatusUnauthorized
	if err := s.send("kim@example.com", "Hello", "plain", "<p>html</p>"); err == nil {
		t.Fatal("expected error on rejected request")
	}
}
