// Package domain defines core types for the request guard: fault kinds,
// terminal errors, policies, and observability events.
package domain

import (
	"fmt"
	"time"
)

// Kind is the structured category attached to every failure at the point it
// is raised by the transport. Classification matches on this tag, never on
// message text.
type Kind string

const (
	// KindTransientServer covers 5xx-class upstream failures.
	KindTransientServer Kind = "transient_server"
	// KindRateLimited covers 429-class responses. The fault may carry a
	// server-suggested minimum wait.
	KindRateLimited Kind = "rate_limited"
	// KindClient covers 4xx-class responses other than 429.
	KindClient Kind = "client"
	// KindTimeout covers operation timeouts.
	KindTimeout Kind = "timeout"
	// KindNetwork covers DNS and routing level failures.
	KindNetwork Kind = "network"
	// KindConnection covers connection resets and refused connections.
	KindConnection Kind = "connection"
	// KindUnclassified is attached to failures with no recognized category.
	KindUnclassified Kind = "unclassified"
)

func (k Kind) String() string {
	return string(k)
}

// Fault is the structured failure returned by a guarded operation.
type Fault struct {
	Kind    Kind
	Status  int
	Message string
	// RetryAfter is an optional minimum wait suggested by the upstream,
	// meaningful for KindRateLimited.
	RetryAfter time.Duration
	Cause      error
}

func (f *Fault) Error() string {
	if f.Status != 0 {
		return fmt.Sprintf("%s (%d): %s", f.Kind, f.Status, f.Message)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Fault) Unwrap() error {
	return f.Cause
}

// Is matches faults by kind so callers can use errors.Is with sentinel faults.
func (f *Fault) Is(target error) bool {
	if t, ok := target.(*Fault); ok {
		return f.Kind == t.Kind
	}
	return false
}

// KindFromStatus maps an HTTP-ish status code to a fault kind. Statuses in
// the client set (400, 401, 403, 404, 422) map to KindClient, 429 to
// KindRateLimited, the transient server set (500, 502, 503, 504) to
// KindTransientServer. Anything else is unclassified.
func KindFromStatus(status int) Kind {
	switch status {
	case 400, 401, 403, 404, 422:
		return KindClient
	case 429:
		return KindRateLimited
	case 500, 502, 503, 504:
		return KindTransientServer
	default:
		return KindUnclassified
	}
}

// NewStatusFault creates a fault categorized from a status code.
func NewStatusFault(status int, message string) *Fault {
	return &Fault{
		Kind:    KindFromStatus(status),
		Status:  status,
		Message: message,
	}
}

// NewTransientServerFault creates a 5xx-class fault.
func NewTransientServerFault(status int, message string) *Fault {
	return &Fault{Kind: KindTransientServer, Status: status, Message: message}
}

// NewRateLimitedFault creates a 429-class fault carrying the upstream's
// suggested minimum wait. A zero retryAfter means no suggestion.
func NewRateLimitedFault(retryAfter time.Duration) *Fault {
	return &Fault{
		Kind:       KindRateLimited,
		Status:     429,
		Message:    "rate limited",
		RetryAfter: retryAfter,
	}
}

// NewClientFault creates a 4xx-class fault.
func NewClientFault(status int, message string) *Fault {
	return &Fault{Kind: KindClient, Status: status, Message: message}
}

// NewTimeoutFault creates a timeout fault.
func NewTimeoutFault(timeout time.Duration) *Fault {
	return &Fault{
		Kind:    KindTimeout,
		Message: fmt.Sprintf("operation timed out after %v", timeout),
	}
}

// NewNetworkFault creates a network-level fault.
func NewNetworkFault(message string) *Fault {
	return &Fault{Kind: KindNetwork, Message: message}
}

// NewConnectionFault creates a connection-level fault.
func NewConnectionFault(message string) *Fault {
	return &Fault{Kind: KindConnection, Message: message}
}

// WrapUnclassified wraps an arbitrary error as an unclassified fault.
func WrapUnclassified(err error) *Fault {
	msg := "unknown failure"
	if err != nil {
		msg = err.Error()
	}
	return &Fault{Kind: KindUnclassified, Message: msg, Cause: err}
}
