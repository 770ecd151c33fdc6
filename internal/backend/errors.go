package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a backend failure so callers can branch without matching
// message text.
type Kind int

const (
	// KindService is any backend-reported failure without a dedicated kind.
	KindService Kind = iota
	KindInvalidCredentials
	KindAlreadyRegistered
	KindEmailNotConfirmed
	KindSessionMissing
	KindNotFound
	KindWeakPassword
	KindRateLimited
	// KindNetwork covers transport failures and anything that is not a
	// backend.Error at all.
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindAlreadyRegistered:
		return "already_registered"
	case KindEmailNotConfirmed:
		return "email_not_confirmed"
	case KindSessionMissing:
		return "session_missing"
	case KindNotFound:
		return "not_found"
	case KindWeakPassword:
		return "weak_password"
	case KindRateLimited:
		return "rate_limited"
	case KindNetwork:
		return "network"
	default:
		return "service"
	}
}

// Error is the failure type returned by every driver.
type Error struct {
	Kind    Kind
	Code    string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return fmt.Sprintf("backend %s: %v", e.Kind, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrNotFound is returned by Records drivers when no row matches.
var ErrNotFound = &Error{Kind: KindNotFound, Status: http.StatusNotFound, Message: "record not found"}

// Is makes errors.Is(err, ErrNotFound) match any not-found backend error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t == ErrNotFound && e.Kind == KindNotFound
}

// KindOf reports the Kind of err. Errors that are not *Error are treated as
// network-level failures.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindNetwork
}

// NetworkError wraps a transport failure.
func NetworkError(op string, err error) *Error {
	return &Error{Kind: KindNetwork, Message: fmt.Sprintf("%s: %v", op, err), Err: err}
}
