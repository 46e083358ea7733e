package scheduler

import "errors"

var (
	// ErrAlreadyRunning is returned when starting a worker twice
	ErrAlreadyRunning = errors.New("worker is already running")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")
)
