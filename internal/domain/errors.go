package domain

import "errors"

var (
	// ErrNotFound indicates resource not found
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidRequest indicates invalid request
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnauthorized indicates unauthorized access
	ErrUnauthorized = errors.New("unauthorized")
	// ErrGenerationFailed indicates every generation provider failed
	ErrGenerationFailed = errors.New("generation failed")
	// ErrUnavailable indicates a backend is disabled or unreachable
	ErrUnavailable = errors.New("backend unavailable")
)
