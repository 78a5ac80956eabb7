package repository

import "errors"

// Common repository errors
var (
	// ErrUserNotFound is returned when a user is not found
	ErrUserNotFound = errors.New("user not found")

	// ErrEdgeNotFound is returned when a dependency edge is not found
	ErrEdgeNotFound = errors.New("dependency edge not found")
)
