// Engagement - Interaction Recording and Aggregate Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagement

package models

import (
	"errors"
	"fmt"
)

// Error taxonomy surfaced by the recorder and analytics engine.
var (
	ErrContentNotFound = errors.New("content not found")
	ErrCommentNotFound = errors.New("parent comment not found")
	ErrUnauthorized    = errors.New("caller is not the content owner")
	ErrWriteConflict   = errors.New("write conflict: retry limit exceeded")
	ErrCancelled       = errors.New("operation cancelled")
)

// ValidationError reports invalid caller input for a single field.
type ValidationError struct {
	Field   string
	Message string

	// cause is set when the failure maps to a more specific sentinel,
	// e.g. ErrCommentNotFound for an unknown parent comment.
	cause error
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// WrapValidationError builds a ValidationError that also matches cause with errors.Is.
func WrapValidationError(field string, cause error) *ValidationError {
	return &ValidationError{Field: field, Message: cause.Error(), cause: cause}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.cause
}

// IsValidationError reports whether err is or wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
