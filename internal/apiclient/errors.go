package apiclient

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/domain"
)

// Kind classifies a failed call the way the pages need to report it.
type Kind int

const (
	KindServer Kind = iota
	KindNetwork
	KindUnauthorized
	KindValidation
	KindConflict
	KindBadRequest
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindUnauthorized:
		return "unauthorized"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindBadRequest:
		return "bad_request"
	case KindNotFound:
		return "not_found"
	}
	return "server"
}

// ErrUnauthorized is wrapped by every error caused by an authorization
// failure, including calls refused after the client was revoked.
var ErrUnauthorized = errors.New("unauthorized")

// Error is a classified backend failure. Message is the server-provided text,
// empty when the backend sent none.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Status != 0 {
		msg += " (" + http.StatusText(e.Status) + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e.Kind == KindUnauthorized && e.Err == nil {
		return ErrUnauthorized
	}
	return e.Err
}

func kindForStatus(status int) Kind {
	switch status {
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusConflict:
		return KindConflict
	case http.StatusBadRequest:
		return KindBadRequest
	case http.StatusNotFound:
		return KindNotFound
	}
	return KindServer
}

func errorFromResponse(status int, body []byte) *Error {
	var payload struct {
		Message string `json:"message"`
		Error   any    `json:"error"`
	}
	_ = json.Unmarshal(body, &payload)
	msg := payload.Message
	if msg == "" {
		if s, ok := payload.Error.(string); ok {
			msg = s
		}
	}
	return &Error{Kind: kindForStatus(status), Status: status, Message: msg}
}

// KindOf reports how err should be surfaced. Client-side validation errors
// from the domain package are KindValidation.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		return KindValidation
	}
	if errors.Is(err, ErrUnauthorized) {
		return KindUnauthorized
	}
	return KindServer
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// MessageOr returns the backend's message for err, or fallback when the
// backend did not provide one.
func MessageOr(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		return vErr.Message
	}
	return fallback
}
