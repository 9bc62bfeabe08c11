// Package store holds the authoritative map of compression jobs and
// the state machine governing their transitions.
//
// The store is the only structure mutated from multiple execution
// contexts (the watcher-driven producer, command handlers, and worker
// goroutines). It is guarded by a single mutex whose scope is limited
// to map mutation; no disk or encode I/O ever runs while the lock is
// held, and notifications are delivered after the lock is released.
package store

import "time"

// Status is the lifecycle state of a job.
type Status string

// Job states.
//
// Valid transitions:
//
//	Pending --(claim)--> Compressing --(success)--> Completed
//	                                 --(failure)--> Error
//	Completed/Error --(recompress)--> Reconverting --(success)--> Completed
//	                                               --(failure)--> Error
const (
	StatusPending      Status = "Pending"
	StatusCompressing  Status = "Compressing"
	StatusReconverting Status = "Reconverting"
	StatusCompleted    Status = "Completed"
	StatusError        Status = "Error"
)

// Live reports whether the status is a non-terminal processing state.
func (s Status) Live() bool {
	switch s {
	case StatusPending, StatusCompressing, StatusReconverting:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status is Completed or Error.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Job is one tracked unit of work for a single file.
//
// Invariants:
//   - CompressedSize is non-zero iff Status == Completed
//   - Error is non-empty iff Status == Error
//   - Progress is monotonically non-decreasing while the job is live.
type Job struct {
	// ID is the opaque unique identifier, stable for the job's lifetime.
	ID string `json:"id"`

	// Filename is the base name of the source file.
	Filename string `json:"filename"`

	// OriginalPath is the source location.
	OriginalPath string `json:"original_path"`

	// CompressedPath is the chosen output location, set at claim time
	// and reused across a recompress.
	CompressedPath string `json:"compressed_path,omitempty"`

	// Status is the current lifecycle state.
	Status Status `json:"status"`

	// OriginalSize is the source size in bytes.
	OriginalSize int64 `json:"original_size"`

	// CompressedSize is the output size in bytes, present only once
	// the job completes.
	CompressedSize int64 `json:"compressed_size,omitempty"`

	// Progress is 0-100.
	Progress int `json:"progress"`

	// Error is the failure message, present only in the Error state.
	Error string `json:"error,omitempty"`

	// Quality is the value used for the attempt that produced the
	// current state.
	Quality int `json:"quality"`

	// CreatedAt is when the job was admitted.
	CreatedAt time.Time `json:"created_at"`

	// CompletedAt is when the job reached Completed, used by the
	// retention sweep.
	CompletedAt time.Time `json:"completed_at,omitempty"`

	// Seq orders jobs by admission, oldest first. Eviction walks it.
	Seq int64 `json:"seq"`
}
