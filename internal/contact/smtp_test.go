package contact

import (
	"context"
	"errors"
	"net/smtp"
	"net/textproto"
	"strings"
	"testing"

	"github.com/Zachkp/folio/internal/apperr"
)

func TestSMTPSendComposesMessage(t *testing.T) {
	s := NewSMTP(SMTPConfig{Host: "mail.local", Port: "587", User: "bot@site", Pass: "pw", To: "me@site"})
	var gotAddr string
	var gotMsg []byte
	s.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotMsg = addr, msg
		if from != "bot@site" || len(to) != 1 || to[0] != "me@site" {
			t.Errorf("unexpected envelope from=%s to=%v", from, to)
		}
		return nil
	}

	rcpt, err := s.Send(context.Background(), Message{FromName: "Jane\r\nBcc: x", FromEmail: "jane@x.com", Body: "Hi", ToName: "Owner"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rcpt.Status != 250 {
		t.Fatalf("unexpected receipt %+v", rcpt)
	}
	if gotAddr != "mail.local:587" {
		t.Fatalf("unexpected addr %q", gotAddr)
	}
	msg := string(gotMsg)
	if !strings.Contains(msg, "Reply-To: jane@x.com\r\n") {
		t.Fatalf("missing reply-to in %q", msg)
	}
	headers, _, _ := strings.Cut(msg, "\r\n\r\n")
	if strings.Contains(headers, "\r\nBcc:") {
		t.Fatalf("header injection not neutralised: %q", headers)
	}
}

func TestSMTPClassifiesErrors(t *testing.T) {
	s := NewSMTP(SMTPConfig{Host: "mail.local", Port: "587", User: "u", Pass: "p", To: "t"})

	s.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		return &textproto.Error{Code: 535, Msg: "auth failed"}
	}
	_, err := s.Send(context.Background(), Message{})
	if !apperr.IsKind(err, apperr.KindUpstreamRejected) || apperr.StatusOf(err) != 535 {
		t.Fatalf("expected rejected 535, got %v", err)
	}

	s.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("dial tcp: i/o timeout")
	}
	_, err = s.Send(context.Background(), Message{})
	if !apperr.IsKind(err, apperr.KindUpstreamUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestSMTPMissingCredentials(t *testing.T) {
	_, err := NewSMTP(SMTPConfig{Host: "mail.local"}).Send(context.Background(), Message{})
	if !apperr.IsKind(err, apperr.KindInvalidConfig) {
		t.Fatalf("expected invalid config, got %v", err)
	}
}
