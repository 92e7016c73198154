package schemas

import (
	"errors"
	"net/http"
	"strings"
)

// ErrorKind classifies every failure a decision call or its collaborators can produce.
type ErrorKind string

const (
	// ErrKindRequestValidation is a caller error and is never retried internally.
	ErrKindRequestValidation ErrorKind = "REQUEST_VALIDATION_FAILED"
	// ErrKindModelInvocation is a transport or provider failure. Safe to retry with backoff.
	ErrKindModelInvocation ErrorKind = "MODEL_INVOCATION_FAILED"

	// The model answered but the answer does not conform. A caller may re-prompt.
	ErrKindNoStructuredPayload ErrorKind = "NO_STRUCTURED_PAYLOAD_FOUND"
	ErrKindMalformedPayload    ErrorKind = "MALFORMED_PAYLOAD"
	ErrKindSchemaViolation     ErrorKind = "SCHEMA_VIOLATION"

	// ErrKindImageHost carries the image host's message verbatim.
	ErrKindImageHost ErrorKind = "IMAGE_HOST_FAILED"
)

// HTTPStatus maps the kind onto the status family used by the front door.
func (k ErrorKind) HTTPStatus() int {
	if k == ErrKindRequestValidation {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Retryable reports whether the kind describes a transient failure or a non-conforming
// model reply, as opposed to a caller error.
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrKindModelInvocation, ErrKindNoStructuredPayload, ErrKindMalformedPayload, ErrKindSchemaViolation:
		return true
	}
	return false
}

var kindLabels = map[ErrorKind]string{
	ErrKindRequestValidation:   "invalid request",
	ErrKindModelInvocation:     "model invocation failed",
	ErrKindNoStructuredPayload: "no structured payload found",
	ErrKindMalformedPayload:    "malformed payload",
	ErrKindSchemaViolation:     "schema violation",
	ErrKindImageHost:           "image host failed",
}

// Error is the single error type of the decision protocol.
type Error struct {
	Kind ErrorKind
	// Field is the offending input or payload path (e.g. "nextAction.element"), if any.
	Field  string
	Reason string
	Err    error
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrRequestValidationFailed  = &Error{Kind: ErrKindRequestValidation}
	ErrModelInvocationFailed    = &Error{Kind: ErrKindModelInvocation}
	ErrNoStructuredPayloadFound = &Error{Kind: ErrKindNoStructuredPayload}
	ErrMalformedPayload         = &Error{Kind: ErrKindMalformedPayload}
	ErrSchemaViolation          = &Error{Kind: ErrKindSchemaViolation}
	ErrImageHostFailed          = &Error{Kind: ErrKindImageHost}
)

// NewError builds an error of the given kind wrapping an optional cause.
func NewError(kind ErrorKind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// NewFieldError builds an error that points at a specific field.
func NewFieldError(kind ErrorKind, field, reason string) *Error {
	return &Error{Kind: kind, Field: field, Reason: reason}
}

func (e *Error) Error() string {
	var sb strings.Builder
	label, ok := kindLabels[e.Kind]
	if !ok {
		label = strings.ToLower(string(e.Kind))
	}
	sb.WriteString(label)
	if e.Field != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Field)
	}
	if e.Reason != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Reason)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on kind alone so callers can test against the sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf extracts the ErrorKind from anywhere in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
