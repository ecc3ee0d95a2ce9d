package contact

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"

	"github.com/Zachkp/folio/internal/apperr"
)

// SMTPConfig holds mail server settings. To is the inbox that receives
// contact messages.
type SMTPConfig struct {
	Host string
	Port string
	User string
	Pass string
	To   string
}

// SMTP sends the message straight to an inbox over SMTP.
type SMTP struct {
	cfg      SMTPConfig
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTP(cfg SMTPConfig) *SMTP {
	return &SMTP{cfg: cfg, sendMail: smtp.SendMail}
}

func (s *SMTP) Send(ctx context.Context, m Message) (Receipt, error) {
	const op = "contact.smtp.send"

	if s.cfg.Host == "" || s.cfg.User == "" || s.cfg.Pass == "" || s.cfg.To == "" {
		return Receipt{}, &apperr.OpError{Op: op, Kind: apperr.KindInvalidConfig, Err: apperr.ErrConfig}
	}
	if err := ctx.Err(); err != nil {
		return Receipt{}, &apperr.OpError{Op: op, Kind: apperr.KindUpstreamUnavailable, Err: err}
	}

	auth := smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, s.cfg.Host)
	addr := net.JoinHostPort(s.cfg.Host, s.cfg.Port)
	if err := s.sendMail(addr, auth, s.cfg.User, []string{s.cfg.To}, s.compose(m)); err != nil {
		return Receipt{}, classifySMTP(op, err)
	}
	return Receipt{Status: 250, Text: "OK"}, nil
}

func (s *SMTP) compose(m Message) []byte {
	subject := fmt.Sprintf("Portfolio Contact: %s", oneLine(m.FromName))
	greeting := "Hi"
	if m.ToName != "" {
		greeting += " " + m.ToName
	}
	body := fmt.Sprintf(`%s,

New contact form submission from your portfolio:

Name: %s
Email: %s
Message:
%s

---
Sent from your portfolio contact form
`, greeting, m.FromName, m.FromEmail, m.Body)

	return []byte("To: " + s.cfg.To + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"From: " + s.cfg.User + "\r\n" +
		"Reply-To: " + oneLine(m.FromEmail) + "\r\n" +
		"\r\n" +
		body + "\r\n")
}

// oneLine keeps user input from injecting extra headers.
func oneLine(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}

func classifySMTP(op string, err error) error {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		return &apperr.OpError{Op: op, Kind: apperr.KindUpstreamRejected, Status: tpErr.Code, Err: err}
	}
	return &apperr.OpError{Op: op, Kind: apperr.KindUpstreamUnavailable, Err: err}
}
