package board

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindAccessDenied
	KindQuotaExceeded
	KindConflict
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindAccessDenied:
		return "access_denied"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindConflict:
		return "conflict"
	case KindPersistence:
		return "persistence"
	default:
		return "internal"
	}
}

// Error is the failure every board operation reports. Message is safe to
// show to the caller; Err keeps the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns KindInternal for errors that did not originate here.
func KindOf(err error) Kind {
	var boardErr *Error
	if errors.As(err, &boardErr) {
		return boardErr.Kind
	}
	return KindInternal
}

func validationError(message string) error {
	return &Error{Kind: KindValidation, Message: message}
}

func notFound(message string) error {
	return &Error{Kind: KindNotFound, Message: message}
}

func accessDenied(message string) error {
	return &Error{Kind: KindAccessDenied, Message: message}
}

func conflict(message string) error {
	return &Error{Kind: KindConflict, Message: message}
}

func deleteFailed(err error) error {
	return &Error{Kind: KindPersistence, Message: "Error occurred during delete operation", Err: err}
}
