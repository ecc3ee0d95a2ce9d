package contact

import (
	"context"
	"crypto/sha256"
	"log/slog"
	"sync"

	"github.com/Zachkp/folio/internal/apperr"
)

// Sender delivers one message through a provider. It is called at most once
// per Relay.Deliver.
type Sender interface {
	Send(ctx context.Context, m Message) (Receipt, error)
}

// Identity is the fixed addressing for every relayed message.
type Identity struct {
	RecipientName string
	ServiceID     string
	TemplateID    string
}

type RelayOption func(*Relay)

// WithProbe sets the connectivity check. The default is AlwaysOnline.
func WithProbe(p Probe) RelayOption {
	return func(r *Relay) { r.probe = p }
}

// WithOfflineDemo makes an offline probe result report a simulated
// delivery instead of a failure. Off by default because it hides real
// delivery problems.
func WithOfflineDemo(enabled bool) RelayOption {
	return func(r *Relay) { r.offlineDemo = enabled }
}

func WithLogger(l *slog.Logger) RelayOption {
	return func(r *Relay) { r.log = l }
}

type Relay struct {
	sender      Sender
	identity    Identity
	probe       Probe
	offlineDemo bool
	log         *slog.Logger

	mu       sync.Mutex
	inflight map[[sha256.Size]byte]State
}

func NewRelay(sender Sender, identity Identity, opts ...RelayOption) *Relay {
	r := &Relay{
		sender:   sender,
		identity: identity,
		probe:    AlwaysOnline,
		log:      slog.Default(),
		inflight: make(map[[sha256.Size]byte]State),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Deliver runs one submission through Submitting to a terminal state.
// There is no retry; the caller resubmits.
func (r *Relay) Deliver(ctx context.Context, s Submission) Outcome {
	key := s.key()
	if !r.begin(key) {
		out := failed(&apperr.OpError{Op: "contact.deliver", Kind: apperr.KindDuplicate, Err: apperr.ErrDuplicate})
		r.log.Warn("contact.duplicate_submission")
		return out
	}
	defer r.end(key)

	if !r.probe.Online(ctx) {
		if r.offlineDemo {
			r.log.Warn("contact.offline_demo", "delivered", false)
			out := delivered(0)
			out.Simulated = true
			return out
		}
		out := failed(&apperr.OpError{Op: "contact.deliver", Kind: apperr.KindCallerOffline, Err: apperr.ErrOffline})
		r.log.Error("contact.delivery_failed", "kind", out.Kind, "err", out.Err)
		return out
	}

	rcpt, err := r.sender.Send(ctx, Message{
		FromName:   s.Name,
		FromEmail:  s.Email,
		Body:       s.Message,
		ToName:     r.identity.RecipientName,
		ServiceID:  r.identity.ServiceID,
		TemplateID: r.identity.TemplateID,
	})
	if err == nil && !successStatus(rcpt.Status) {
		err = &apperr.OpError{Op: "contact.deliver", Kind: apperr.KindUpstreamRejected, Status: rcpt.Status, Err: errNonSuccess}
	}
	if err != nil {
		out := failed(err)
		r.log.Error("contact.delivery_failed", "kind", out.Kind, "status", out.StatusCode, "text", rcpt.Text, "err", err)
		return out
	}

	r.log.Info("contact.delivered", "status", rcpt.Status)
	return delivered(rcpt.Status)
}

// successStatus accepts HTTP 200 and SMTP 250.
func successStatus(code int) bool {
	return code == 200 || code == 250
}

// begin moves key from Idle to Submitting. It fails when the same
// submission is already past Idle.
func (r *Relay) begin(key [sha256.Size]byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stateOf(key) != Idle {
		return false
	}
	r.inflight[key] = Submitting
	return true
}

// stateOf reports Idle for submissions the relay is not handling. Callers
// hold r.mu.
func (r *Relay) stateOf(key [sha256.Size]byte) State {
	if st, ok := r.inflight[key]; ok {
		return st
	}
	return Idle
}

func (r *Relay) end(key [sha256.Size]byte) {
	r.mu.Lock()
	delete(r.inflight, key)
	r.mu.Unlock()
}

func (s Submission) key() [sha256.Size]byte {
	return sha256.Sum256([]byte(s.Name + "\x00" + s.Email + "\x00" + s.Message))
}
