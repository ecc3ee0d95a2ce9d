// Package contact relays contact-form submissions to a transactional email
// provider and translates the provider's answer into an Outcome.
package contact

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Zachkp/folio/internal/apperr"
)

// Submission is one contact-form post. It is never persisted.
type Submission struct {
	Name    string `json:"name" form:"name"`
	Email   string `json:"email" form:"email"`
	Message string `json:"message" form:"message"`
}

// Validate checks presence only.
func (s Submission) Validate() error {
	var missing []string
	if strings.TrimSpace(s.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(s.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(s.Message) == "" {
		missing = append(missing, "message")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing field(s): %s", strings.Join(missing, ", "))
	}
	return nil
}

// State tracks a single submission: Idle → Submitting → Delivered | Failed.
type State int

const (
	Idle State = iota
	Submitting
	Delivered
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case Delivered:
		return "delivered"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == Delivered || s == Failed
}

const (
	SuccessMessage = "Email sent successfully"

	msgOffline   = "You appear to be offline. Please check your internet connection and try again."
	msgGeneric   = "Failed to send message. Please try contacting directly via email."
	msgDuplicate = "This message is already being sent. Please wait."
)

// Outcome is the result of one Relay.Deliver call. StatusCode is set when
// the provider acknowledged; Err holds the real cause on failure and must not
// be shown to callers.
type Outcome struct {
	State      State
	StatusCode int
	Simulated  bool
	Kind       apperr.Kind
	Err        error
}

func delivered(status int) Outcome {
	return Outcome{State: Delivered, StatusCode: status}
}

func failed(err error) Outcome {
	return Outcome{State: Failed, Kind: apperr.KindOf(err), StatusCode: apperr.StatusOf(err), Err: err}
}

func (o Outcome) Delivered() bool { return o.State == Delivered }

// UserMessage is safe to return to the submitter.
func (o Outcome) UserMessage() string {
	if o.Delivered() {
		return SuccessMessage
	}
	switch o.Kind {
	case apperr.KindCallerOffline, apperr.KindUpstreamUnavailable:
		return msgOffline
	case apperr.KindUpstreamRejected:
		if o.StatusCode != 0 {
			if text := http.StatusText(o.StatusCode); text != "" {
				return fmt.Sprintf("Failed to send message: provider responded %d %s", o.StatusCode, text)
			}
			return fmt.Sprintf("Failed to send message: provider responded %d", o.StatusCode)
		}
		return "Failed to send message: provider rejected the request"
	case apperr.KindDuplicate:
		return msgDuplicate
	default:
		return msgGeneric
	}
}

// Message is what a Sender delivers: the submitter mapped onto sender
// fields plus the fixed recipient and provider identifiers.
type Message struct {
	FromName   string
	FromEmail  string
	Body       string
	ToName     string
	ServiceID  string
	TemplateID string
}

// Receipt is the provider's acknowledgment.
type Receipt struct {
	Status int
	Text   string
}

var errNonSuccess = errors.New("provider returned non-success status")
