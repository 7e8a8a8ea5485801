package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable matches every Failure produced at the transport boundary.
	ErrUnavailable = errors.New("remote service unavailable")
	// ErrCommandRejected is returned when the service acknowledged a command with success=false.
	ErrCommandRejected = errors.New("command rejected by remote service")
	// ErrInvalidArgument indicates a value that cannot be encoded for the remote service.
	ErrInvalidArgument = errors.New("invalid argument")
)

// FailureKind classifies a Failure. Callers normally only read Message.
type FailureKind string

const (
	// RemoteRejection is a non-2xx response from the service.
	RemoteRejection FailureKind = "remote_rejection"
	// TransportFailure means no response was received (DNS, refused, timeout, open breaker).
	TransportFailure FailureKind = "transport_failure"
	// DecodeFailure is a 2xx response whose body is not the expected JSON.
	DecodeFailure FailureKind = "decode_failure"
)

const (
	// DefaultRejectionMessage is used when a 5xx response carries no "error" field.
	DefaultRejectionMessage = "Internal Server Error"
	// DefaultTransportMessage is used when the underlying error has no text.
	DefaultTransportMessage = "Network Error"
)

// Failure is the single normalized error value returned by the transport client.
type Failure struct {
	Err     error       `json:"-"`
	Kind    FailureKind `json:"kind"`
	Message string      `json:"error"`
	Status  int         `json:"status,omitempty"`
}

func (f *Failure) Error() string {
	if f.Status != 0 {
		return fmt.Sprintf("%s (status %d)", f.Message, f.Status)
	}
	return f.Message
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Is makes every Failure match ErrUnavailable.
func (f *Failure) Is(target error) bool {
	return target == ErrUnavailable
}

// FailureMessage extracts the user-facing message from err.
func FailureMessage(err error) string {
	if err == nil {
		return ""
	}
	var f *Failure
	if errors.As(err, &f) {
		return f.Message
	}
	return err.Error()
}
