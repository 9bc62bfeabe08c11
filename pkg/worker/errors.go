package worker

import "errors"

// Common errors returned by the worker pool.
var (
	// ErrQueueFull is returned when the dispatch queue cannot accept
	// another job without blocking.
	ErrQueueFull = errors.New("dispatch queue is full")

	// ErrEmptyFile is returned when a source file never receives any
	// bytes within the stability window.
	ErrEmptyFile = errors.New("source file is empty")
)
