package scheduler

import "errors"

var (
	// ErrInvalidConfig is returned when a job schedule cannot be parsed
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrJobExists is returned when a job name is registered twice
	ErrJobExists = errors.New("job already registered")

	// ErrJobNotFound is returned when a job is not found
	ErrJobNotFound = errors.New("job not found")
)
