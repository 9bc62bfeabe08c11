package store

import "errors"

// Common errors returned by the job store.
var (
	// ErrJobNotFound is returned when a job id is unknown.
	ErrJobNotFound = errors.New("job not found")

	// ErrAlreadyProcessing is returned when a path already has a live
	// job, or when claiming a job that is not claimable.
	ErrAlreadyProcessing = errors.New("already being processed")

	// ErrOutputCollision is returned when the chosen output path
	// already exists on disk.
	ErrOutputCollision = errors.New("output path already exists")

	// ErrNotRecompressable is returned when recompress is requested
	// for a job that is not in a terminal state.
	ErrNotRecompressable = errors.New("job is not in a terminal state")

	// ErrIDCollision is returned when id generation repeatedly collides.
	ErrIDCollision = errors.New("job id generation collided")
)
