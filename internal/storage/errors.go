package storage

import "errors"

// Common storage errors
var (
	// ErrUserNotFound indicates that user was not found in storage
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates that a user with this email already exists
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrPostNotFound indicates that no post matched the lookup
	ErrPostNotFound = errors.New("post not found")

	// ErrSlugTaken indicates a slug collision on insert
	ErrSlugTaken = errors.New("slug already taken")
)
