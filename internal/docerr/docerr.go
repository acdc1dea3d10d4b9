// Package docerr defines the error taxonomy shared by every document-store
// and sync-engine collaborator. NotFound is never represented here — point
// reads return a nil document and a nil error, matching the store contract.
package docerr

import "fmt"

// Kind classifies an error for callers that need to branch on category
// rather than on a specific message (e.g. the sync engine's push/pull
// abort-vs-continue decisions).
type Kind string

const (
	// InvalidArgument covers empty user_id, empty doc_type, or a malformed
	// document missing id/user_id/last_modified.
	InvalidArgument Kind = "invalid_argument"
	// InvalidState covers operations attempted before required setup, such
	// as a token fetch before set_user or an engine constructed with an
	// empty user id.
	InvalidState Kind = "invalid_state"
	// Storage covers embedded database I/O, serialization, or constraint
	// errors from the local store.
	Storage Kind = "storage"
	// RemoteIO covers transport-level failures talking to the remote store
	// or the token service.
	RemoteIO Kind = "remote_io"
	// RemoteAuth covers non-2xx responses from the token service or
	// authorization denial from the remote store.
	RemoteAuth Kind = "remote_auth"
	// Conflict is reserved. LWW never surfaces conflicts to callers; a
	// remote adapter may use this if the backing service itself reports a
	// write conflict.
	Conflict Kind = "conflict"
	// Cancelled covers caller cancellation observed at a suspension point.
	Cancelled Kind = "cancelled"
)

// Error wraps a Kind with context and an optional underlying cause.
type Error struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "localstore.Upsert"
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Kind, e.Message, e.Err)
	}

	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an Error with no wrapped cause.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap builds an Error wrapping an underlying cause.
func Wrap(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !asError(err, &e) {
		return false
	}

	return e.Kind == kind
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
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
