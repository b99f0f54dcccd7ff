// Package apperr defines the error kinds surfaced to API callers and how each
// one maps onto an HTTP response.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindInvalidRequest         Kind = "INVALID_REQUEST"
	KindOutOfStock             Kind = "OUT_OF_STOCK"
	KindAuthenticationRequired Kind = "AUTHENTICATION_REQUIRED"
	KindIncompleteProfile      Kind = "INCOMPLETE_PROFILE"
	KindForbidden              Kind = "FORBIDDEN"
	KindNotFound               Kind = "NOT_FOUND"
	KindIdempotencyReused      Kind = "IDEMPOTENCY_KEY_REUSED"
	KindAllocationConflict     Kind = "ALLOCATION_CONFLICT"
	KindPersistenceFailure     Kind = "PERSISTENCE_FAILURE"
	KindNotificationFailure    Kind = "NOTIFICATION_FAILURE"
	KindInternal               Kind = "INTERNAL_ERROR"
)

type Metadata struct {
	HTTPStatus    int
	PublicMessage string
	// ExposeMessage reports whether the error's own message may be shown to
	// the caller instead of PublicMessage.
	ExposeMessage bool
}

var metadataByKind = map[Kind]Metadata{
	KindInvalidRequest:         {HTTPStatus: http.StatusBadRequest, PublicMessage: "invalid request", ExposeMessage: true},
	KindOutOfStock:             {HTTPStatus: http.StatusBadRequest, PublicMessage: "out of stock", ExposeMessage: true},
	KindAuthenticationRequired: {HTTPStatus: http.StatusUnauthorized, PublicMessage: "authentication required", ExposeMessage: true},
	KindIncompleteProfile:      {HTTPStatus: http.StatusBadRequest, PublicMessage: "store profile incomplete", ExposeMessage: true},
	KindForbidden:              {HTTPStatus: http.StatusForbidden, PublicMessage: "access denied"},
	KindNotFound:               {HTTPStatus: http.StatusNotFound, PublicMessage: "not found", ExposeMessage: true},
	KindIdempotencyReused:      {HTTPStatus: http.StatusConflict, PublicMessage: "idempotency key reused", ExposeMessage: true},
	KindAllocationConflict:     {HTTPStatus: http.StatusInternalServerError, PublicMessage: "could not allocate order number, please retry"},
	KindPersistenceFailure:     {HTTPStatus: http.StatusInternalServerError, PublicMessage: "internal server error"},
	KindNotificationFailure:    {HTTPStatus: http.StatusInternalServerError, PublicMessage: "internal server error"},
	KindInternal:               {HTTPStatus: http.StatusInternalServerError, PublicMessage: "internal server error"},
}

func MetadataFor(kind Kind) Metadata {
	if meta, ok := metadataByKind[kind]; ok {
		return meta
	}
	return metadataByKind[KindInternal]
}

type Error struct {
	kind    Kind
	message string
	details any
	cause   error
}

func New(kind Kind, message string) *Error {
	return &Error{kind: kind, message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, message string) *Error {
	return &Error{kind: kind, message: message, cause: err}
}

func (e *Error) Kind() Kind {
	if e == nil {
		return KindInternal
	}
	return e.kind
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the first *Error in err's chain, or nil.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	return nil
}

// KindOf returns the kind of err, KindInternal for untyped errors.
func KindOf(err error) Kind {
	if typed := As(err); typed != nil {
		return typed.Kind()
	}
	return KindInternal
}

// PublicMessage returns the message safe to show to the caller.
func PublicMessage(err error) string {
	typed := As(err)
	if typed == nil {
		return MetadataFor(KindInternal).PublicMessage
	}
	meta := MetadataFor(typed.Kind())
	if meta.ExposeMessage && typed.Message() != "" {
		return typed.Message()
	}
	return meta.PublicMessage
}
