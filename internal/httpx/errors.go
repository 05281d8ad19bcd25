package httpx

import (
	"errors"
	"fmt"
)

// Kind classifies a fetch failure.
type Kind string

const (
	KindNetwork  Kind = "network"   // connection/DNS/TLS failure
	KindTimeout  Kind = "timeout"   // deadline exceeded mid-transfer
	KindTooLarge Kind = "too_large" // body exceeded the configured cap
	KindStatus   Kind = "status"    // non-success HTTP status
)

// Error is the typed failure returned by Client calls.
type Error struct {
	Kind   Kind
	URL    string
	Status int // set for KindStatus
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindStatus:
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.Status)
	case KindTooLarge:
		return fmt.Sprintf("fetch %s: response exceeds size cap", e.URL)
	case KindTimeout:
		return fmt.Sprintf("fetch %s: timed out", e.URL)
	default:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// IsTimeout reports whether err is a fetch timeout.
func IsTimeout(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == KindTimeout
}

// IsTooLarge reports whether err is a size-cap violation.
func IsTooLarge(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == KindTooLarge
}
