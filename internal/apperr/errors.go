// Package apperr classifies failures from upstream providers so handlers can
// log the real cause and answer callers with a generic message.
package apperr

import (
	"errors"
	"fmt"
)

// Sentinel errors for broad classification.
var (
	ErrRejected  = errors.New("upstream rejected request")
	ErrMalformed = errors.New("malformed upstream response")
	ErrOffline   = errors.New("caller offline")
	ErrConfig    = errors.New("missing configuration")
	ErrDuplicate = errors.New("submission already in flight")
)

// Kind is a coarse-grained categorization for errors.
type Kind string

const (
	KindUnknown             Kind = "unknown"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindUpstreamRejected    Kind = "upstream_rejected"
	KindMalformedResponse   Kind = "malformed_response"
	KindCallerOffline       Kind = "caller_offline"
	KindInvalidConfig       Kind = "invalid_config"
	KindDuplicate           Kind = "duplicate_submission"
)

// OpError wraps an underlying error with operation context and a kind.
type OpError struct {
	Op     string
	Kind   Kind
	Status int // upstream HTTP status, when there was one
	Err    error
}

func (e *OpError) Error() string {
	if e == nil {
		return "<nil>"
	}

	base := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Status != 0 {
		base += fmt.Sprintf(" (status=%d)", e.Status)
	}
	if e.Err != nil {
		base += fmt.Sprintf(": %v", e.Err)
	}
	return base
}

func (e *OpError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// KindOf returns the kind of the first OpError in the chain, or KindUnknown.
func KindOf(err error) Kind {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Kind
	}
	return KindUnknown
}

// StatusOf returns the upstream status recorded on err, or 0.
func StatusOf(err error) int {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Status
	}
	return 0
}
