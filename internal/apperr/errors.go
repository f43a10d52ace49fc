// Package apperr is the error taxonomy shared by the bridge, the store and the controller.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindUnknown Kind = iota
	// KindUnauthorized: the session expired (HTTP 401).
	KindUnauthorized
	// KindServer: any other non-2xx answer or a transport failure.
	KindServer
	// KindAborted: the request was cancelled (navigation, shutdown).
	KindAborted
	// KindValidation: rejected client-side, never sent.
	KindValidation
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindServer:
		return "server_error"
	case KindAborted:
		return "aborted"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind   Kind
	Op     string
	Status int
	Msg    string
	Err    error
}

var (
	ErrUnauthorized = &Error{Kind: KindUnauthorized}
	ErrServer       = &Error{Kind: KindServer}
	ErrAborted      = &Error{Kind: KindAborted}
	ErrValidation   = &Error{Kind: KindValidation}
	ErrNotFound     = &Error{Kind: KindNotFound}
)

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the bare kind sentinels (ErrUnauthorized, ErrServer, ...).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Status == 0 && t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

func Validation(op, msg string) error {
	return &Error{Kind: KindValidation, Op: op, Msg: msg}
}

func NotFound(op, msg string) error {
	return &Error{Kind: KindNotFound, Op: op, Msg: msg}
}

// FromStatus maps a non-2xx HTTP status to Unauthorized or Server.
func FromStatus(op string, status int, body string) error {
	if status == http.StatusUnauthorized {
		return &Error{Kind: KindUnauthorized, Op: op, Status: status, Msg: "login required"}
	}
	return &Error{Kind: KindServer, Op: op, Status: status, Msg: body}
}

// FromTransport classifies a failed round trip. Cancellation is an abort, anything else a server error.
func FromTransport(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return &Error{Kind: KindAborted, Op: op, Err: err}
	}
	return &Error{Kind: KindServer, Op: op, Msg: "request failed", Err: err}
}

func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindAborted
	}
	return KindUnknown
}

func IsAborted(err error) bool { return KindOf(err) == KindAborted }

// UserMessage is the notification text for a failed action, e.g. "Error saving annotation".
func UserMessage(action string, err error) string {
	switch KindOf(err) {
	case KindUnauthorized:
		return "Login required: your session has expired. Changes are read-only until you sign in again."
	case KindValidation:
		var e *Error
		if errors.As(err, &e) && e.Msg != "" {
			return e.Msg
		}
		return "Please check the entered values."
	case KindNotFound:
		return "Annotation not found"
	default:
		return "Error " + action + ". Please try again."
	}
}

// HTTPStatus maps a kind to the status the session API answers with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAborted:
		return 499
	case KindServer:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
