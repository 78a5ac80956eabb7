package service

import "errors"

// Failure taxonomy of the dependency and audit engine. Every validation
// failure is detected before any write, so a failed operation never leaves a
// partial effect. Store errors are passed through untranslated; callers decide
// whether to retry, since retrying a graph mutation requires re-running the
// cycle check against fresh state.
var (
	// ErrSelfDependency is returned when a task is asked to block itself
	ErrSelfDependency = errors.New("task cannot depend on itself")

	// ErrUnknownTask is returned when a referenced task does not exist
	ErrUnknownTask = errors.New("unknown task")

	// ErrDuplicateEdge is returned when the ordered pair is already linked
	ErrDuplicateEdge = errors.New("dependency already exists")

	// ErrCycleDetected is returned when adding the edge would close a cycle
	ErrCycleDetected = errors.New("dependency would create a cycle")

	// ErrEdgeNotFound is returned when removing an edge that does not exist
	ErrEdgeNotFound = errors.New("dependency not found")

	// ErrInvalidTransition is returned for a client status change the state
	// machine does not allow
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrUnknownUser is returned when a referenced user does not exist
	ErrUnknownUser = errors.New("unknown user")

	// ErrInvalidCursor is returned for an unparseable timeline cursor
	ErrInvalidCursor = errors.New("invalid timeline cursor")
)
