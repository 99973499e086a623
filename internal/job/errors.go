package job

import "errors"

var (
	// ErrNotFound is returned when a job id is unknown or its record was evicted
	ErrNotFound = errors.New("job not found")

	// ErrQueueFull is returned when the runner queue cannot accept another job
	ErrQueueFull = errors.New("job queue is full")
)
