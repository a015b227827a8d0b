// Package kerr defines the typed error kinds shared by pkg/kadm and pkg/kgo.
//
// The shape mirrors the kerr.ErrorForCode/kerr.IsRetriable calling convention
// used throughout the broker client: a small interface plus package-level
// sentinel values, so callers can errors.Is against a sentinel while still
// carrying a human-readable detail via fmt.Errorf("%w: %s", ...).
package kerr

import "fmt"

// Error is satisfied by every sentinel in this package.
type Error interface {
	error
	Code() int16
	Retriable() bool
}

type kerror struct {
	msg       string
	code      int16
	retriable bool
}

func (e *kerror) Error() string   { return e.msg }
func (e *kerror) Code() int16     { return e.code }
func (e *kerror) Retriable() bool { return e.retriable }

// Sentinel error kinds, numbered arbitrarily but stably; codes are not wire
// protocol error codes (the wire codec is out of scope), just stable IDs for
// logging and metrics.
var (
	ErrConfiguration            Error = &kerror{"configuration error", 1, false}
	ErrElectionNotNeeded        Error = &kerror{"election not needed", 2, false}
	ErrNoReplicaOnline          Error = &kerror{"no replica online", 3, false}
	ErrStateChangeFailed        Error = &kerror{"state change failed", 4, false}
	ErrTopicAlreadyExists       Error = &kerror{"topic already exists", 5, false}
	ErrAlreadyMarkedForDeletion Error = &kerror{"topic already marked for deletion", 6, false}
	ErrLeaderNotAvailable       Error = &kerror{"leader not available", 7, true}
	ErrReplicaNotAvailable      Error = &kerror{"replica not available", 8, true}
	ErrIllegalState             Error = &kerror{"illegal state", 9, false}
)

// Detail wraps a sentinel with additional human-readable context, preserving
// errors.Is compatibility against the sentinel.
func Detail(sentinel Error, detail string) error {
	return fmt.Errorf("%w: %s", sentinel, detail)
}

// IsRetriable reports whether err (or anything it wraps) is a retriable
// kerr.Error.
func IsRetriable(err error) bool {
	var ke Error
	if as(err, &ke) {
		return ke.Retriable()
	}
	return false
}

// as is a tiny errors.As shim kept local so this package has no other
// standard-library surface beyond errors/fmt.
func as(err error, target *Error) bool {
	for err != nil {
		if ke, ok := err.(Error); ok {
			*target = ke
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
