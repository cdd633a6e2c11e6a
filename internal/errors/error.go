package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrConnectionTimeout = errors.New("connection timeout")
	ErrNotFound          = errors.New("record not found")
	ErrAlreadyProcessed  = errors.New("message already processed")
	ErrMailSessionClosed = errors.New("mail session closed")
)

// ValidationError reports envelope metadata that is malformed or outside the
// registered vocabulary. Messages failing validation are rejected before any
// processing step runs.
type ValidationError struct {
	Field string
	Value interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid message %s: %v", e.Field, e.Value)
}

func NewValidationError(field string, value interface{}) error {
	return errors.WithStack(&ValidationError{Field: field, Value: value})
}

// DecodeError reports a payload that cannot be decoded per its content type.
type DecodeError struct {
	ContentType string
	Raw         []byte
	Cause       error
}

func (e *DecodeError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("cannot decode %s payload", e.ContentType)
	}
	return fmt.Sprintf("cannot decode %s payload: %v", e.ContentType, e.Cause)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

func NewDecodeError(contentType string, raw []byte, cause error) error {
	return errors.WithStack(&DecodeError{ContentType: contentType, Raw: raw, Cause: cause})
}

// RoutingError reports a message type or agent type missing from the routing
// tables.
type RoutingError struct {
	Key    string
	Reason string
}

func (e *RoutingError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("no route for %q", e.Key)
	}
	return fmt.Sprintf("no route for %q: %s", e.Key, e.Reason)
}

func NewRoutingError(key, reason string) error {
	return errors.WithStack(&RoutingError{Key: key, Reason: reason})
}

// CollaboratorError wraps a failure raised by the broker, the mail server or
// the database.
type CollaboratorError struct {
	Collaborator string
	Op           string
	Cause        error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Collaborator, e.Op, e.Cause)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Cause
}

func NewCollaboratorError(collaborator, op string, cause error) error {
	if cause == nil {
		return nil
	}
	return errors.WithStack(&CollaboratorError{Collaborator: collaborator, Op: op, Cause: cause})
}

func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsDecodeError(err error) bool {
	var target *DecodeError
	return errors.As(err, &target)
}

func IsRoutingError(err error) bool {
	var target *RoutingError
	return errors.As(err, &target)
}

func IsCollaboratorError(err error) bool {
	var target *CollaboratorError
	return errors.As(err, &target)
}

// Kind names the taxonomy class of err, for logging and metrics labels.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsValidationError(err):
		return "validation"
	case IsDecodeError(err):
		return "decode"
	case IsRoutingError(err):
		return "routing"
	case IsCollaboratorError(err):
		return "collaborator"
	default:
		return fmt.Sprintf("%T", errors.Cause(err))
	}
}
