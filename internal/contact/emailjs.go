package contact

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/Zachkp/folio/internal/apperr"
)

// EmailJS sends through the EmailJS REST API.
type EmailJS struct {
	http       *http.Client
	apiURL     string
	publicKey  string
	privateKey string
}

func NewEmailJS(hc *http.Client, apiURL, publicKey, privateKey string) *EmailJS {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &EmailJS{
		http:       hc,
		apiURL:     strings.TrimRight(apiURL, "/"),
		publicKey:  publicKey,
		privateKey: privateKey,
	}
}

type emailJSRequest struct {
	ServiceID      string         `json:"service_id"`
	TemplateID     string         `json:"template_id"`
	UserID         string         `json:"user_id"`
	AccessToken    string         `json:"accessToken,omitempty"`
	TemplateParams templateParams `json:"template_params"`
}

type templateParams struct {
	FromName  string `json:"from_name"`
	FromEmail string `json:"from_email"`
	Message   string `json:"message"`
	ToName    string `json:"to_name"`
}

func (e *EmailJS) Send(ctx context.Context, m Message) (Receipt, error) {
	const op = "contact.emailjs.send"

	if e.apiURL == "" || e.publicKey == "" || m.ServiceID == "" || m.TemplateID == "" {
		return Receipt{}, &apperr.OpError{Op: op, Kind: apperr.KindInvalidConfig, Err: apperr.ErrConfig}
	}

	payload, err := json.Marshal(emailJSRequest{
		ServiceID:   m.ServiceID,
		TemplateID:  m.TemplateID,
		UserID:      e.publicKey,
		AccessToken: e.privateKey,
		TemplateParams: templateParams{
			FromName:  m.FromName,
			FromEmail: m.FromEmail,
			Message:   m.Body,
			ToName:    m.ToName,
		},
	})
	if err != nil {
		return Receipt{}, &apperr.OpError{Op: op, Kind: apperr.KindInvalidConfig, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.apiURL+"/api/v1.0/email/send", bytes.NewReader(payload))
	if err != nil {
		return Receipt{}, &apperr.OpError{Op: op, Kind: apperr.KindInvalidConfig, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.http.Do(req)
	if err != nil {
		return Receipt{}, &apperr.OpError{Op: op, Kind: apperr.KindUpstreamUnavailable, Err: err}
	}
	defer resp.Body.Close()

	text, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	rcpt := Receipt{Status: resp.StatusCode, Text: strings.TrimSpace(string(text))}
	if resp.StatusCode != http.StatusOK {
		return rcpt, &apperr.OpError{Op: op, Kind: apperr.KindUpstreamRejected, Status: resp.StatusCode, Err: errNonSuccess}
	}
	return rcpt, nil
}
