package service

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrInvalidCredentials indicates that provided login credentials are incorrect.
	// It is deliberately uniform: unknown email, wrong password and inactive
	// accounts all map here so callers cannot probe which part failed.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidResetPayload covers malformed uids and unknown users alike,
	// so a reset confirmation never leaks which one was wrong.
	ErrInvalidResetPayload = errors.New("invalid reset link payload")
	// ErrInvalidResetToken indicates a reset token that does not verify
	// against the user's current state or has expired.
	ErrInvalidResetToken = errors.New("invalid or expired reset token")
)

// ValidationError carries per-field validation failures.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("validation failed")
	for _, k := range keys {
		b.WriteString("; ")
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(e.Fields[k])
	}
	return b.String()
}

func validationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}
