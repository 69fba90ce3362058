package services

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrEmailExists        = errors.New("Email exists, please try another")
	ErrInvalidCredentials = errors.New("email or password is incorrect")
	ErrInvalidResetToken  = errors.New("Invalid Reset token")
	ErrWrongPassword      = errors.New("the old password you entered is wrong")
	ErrPasswordReused     = errors.New("you can't use the old password again")
	ErrUserNotFound       = errors.New("User not found")
	ErrPostNotFound       = errors.New("Post not found")
	ErrInvalidToken       = errors.New("Invalid or expired token")
)

// ValidationError carries per-field messages for a rejected request.
type ValidationError struct {
	Errors map[string]string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Errors: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Errors))
	for f := range e.Errors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return "validation error: " + strings.Join(fields, ", ")
}
