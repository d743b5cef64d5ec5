package core

import (
	"errors"
	"fmt"
)

// ErrInvalidRange is returned when a report range ends before it starts.
var ErrInvalidRange = errors.New("invalid date range: start is after end")

// ValidationError reports bad caller input for a single field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// ReferenceError reports a reference to an entity that does not exist.
type ReferenceError struct {
	Entity string
	ID     int64
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// PermissionError reports a caller lacking the capability for an action.
// Detail, when set, is the message shown to the caller.
type PermissionError struct {
	Action string
	Detail string
}

func (e *PermissionError) Error() string {
	return "permission denied: " + e.Action
}

func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func NewReferenceError(entity string, id int64) error {
	return &ReferenceError{Entity: entity, ID: id}
}

func NewPermissionError(action string) error {
	return &PermissionError{Action: action}
}

func NewPermissionDenied(action, detail string) error {
	return &PermissionError{Action: action, Detail: detail}
}

// IsNotFound reports whether err wraps a ReferenceError.
func IsNotFound(err error) bool {
	var ref *ReferenceError
	return errors.As(err, &ref)
}
