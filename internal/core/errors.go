package core

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/fieldline/statline/internal/domain/model"
)

// ErrAuthExpired signals that the source rejected the current credentials.
// The pacer refreshes credentials and retries rather than failing the unit.
var ErrAuthExpired = errors.New("source credentials expired")

// ErrorKind classifies a unit failure. The kind decides retry behavior and
// how the failure is reported; it never decides whether sibling units run.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindTransient covers timeouts, 5xx, rate limiting, and expired
	// credentials: retried with backoff, escalated only when exhausted.
	KindTransient
	// KindFatal covers non-auth 4xx and malformed requests: never retried.
	KindFatal
	// KindParse covers malformed payloads: never retried.
	KindParse
	// KindStore covers rejected writes: retried a small fixed number of times.
	KindStore
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindFatal:
		return "fatal"
	case KindParse:
		return "parse"
	case KindStore:
		return "store"
	default:
		return "unknown"
	}
}

// UnitError records a failure against a single unit. It is always recovered
// locally by the worker that hit it; it surfaces only in the final job
// summary's failed-unit list.
type UnitError struct {
	Kind ErrorKind
	Unit model.DateUnit
	Err  error
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("unit %s: %s: %v", e.Unit, e.Kind, e.Err)
}

func (e *UnitError) Unwrap() error { return e.Err }

// NewUnitError wraps err as a kinded per-unit failure.
func NewUnitError(kind ErrorKind, unit model.DateUnit, err error) *UnitError {
	return &UnitError{Kind: kind, Unit: unit, Err: err}
}

// KindOf extracts the failure kind from err, or KindUnknown.
func KindOf(err error) ErrorKind {
	var ue *UnitError
	if errors.As(err, &ue) {
		return ue.Kind
	}
	return KindUnknown
}

// transienter is implemented by source errors that know their own
// retryability (e.g. HTTP status based).
type transienter interface {
	Transient() bool
}

type authExpirer interface {
	AuthExpired() bool
}

// IsAuthExpired reports whether err indicates expired source credentials.
func IsAuthExpired(err error) bool {
	if errors.Is(err, ErrAuthExpired) {
		return true
	}
	var ae authExpirer
	return errors.As(err, &ae) && ae.AuthExpired()
}

// IsTransient reports whether err is worth retrying with backoff: network
// timeouts, deadline expiry, expired credentials, or any error that reports
// itself transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if IsAuthExpired(err) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var tr transienter
	return errors.As(err, &tr) && tr.Transient()
}
