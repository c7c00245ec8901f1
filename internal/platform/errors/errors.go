package apperrors

import "errors"

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrActivityRunning   = errors.New("activity is running")
	ErrActivityCompleted = errors.New("activity is completed")
	ErrDurationExceeded  = errors.New("remaining time exceeds initial duration")
	ErrInvalidMove       = errors.New("invalid move")
	ErrNotLoaded         = errors.New("activities are not loaded")
	ErrStoreUnavailable  = errors.New("activity store unavailable")
)
