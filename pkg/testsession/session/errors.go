package session

import (
	"context"
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindAuthRequired
	KindConflict
	KindTransient
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindAuthRequired:
		return "auth_required"
	case KindConflict:
		return "conflict"
	case KindTransient:
		return "transient"
	case KindInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Error is the typed failure crossing the session boundary. Backends return
// it so the synchronizer and coordinator can apply their policies.
type Error struct {
	Kind Kind
	Op   string
	Err  error

	// AttemptID is set on conflict responses that carry the existing attempt.
	AttemptID string
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

var (
	ErrRestoreInProgress = errors.New("restore already in progress")
	ErrAttemptClosed     = errors.New("attempt is already submitted")
	ErrSubmitCancelled   = errors.New("submission cancelled")
	ErrNotStarted        = errors.New("session not started")
)

// KindOf classifies err. Context errors count as transient; anything else
// that is not an *Error is unknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTransient
	}
	return KindUnknown
}

func IsNotFound(err error) bool     { return KindOf(err) == KindNotFound }
func IsAuthRequired(err error) bool { return KindOf(err) == KindAuthRequired }
func IsConflict(err error) bool     { return KindOf(err) == KindConflict }
func IsTransient(err error) bool    { return KindOf(err) == KindTransient }
