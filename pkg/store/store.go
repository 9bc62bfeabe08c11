package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hatworks/imagepress/pkg/compressor"
	"github.com/hatworks/imagepress/pkg/events"
	"github.com/hatworks/imagepress/pkg/logger"
)

// Notifier is called after a store mutation with the event type and a
// snapshot of the affected job. It is always invoked outside the store
// lock, so implementations may safely call back into the store.
type Notifier func(eventType events.Type, job Job)

const (
	// DefaultCapacity is the hard cap on jobs held in memory.
	DefaultCapacity = 1000

	// evictTargetRatio is the fill level eviction drains down to.
	evictTargetRatio = 0.9

	// maxIDAttempts bounds retries when id generation collides.
	maxIDAttempts = 5
)

// Store is the bounded, synchronized job map.
type Store struct {
	mu       sync.Mutex
	logger   logger.Logger
	capacity int
	notify   Notifier

	jobs    map[string]*Job
	byPath  map[string]string // live original_path -> job id
	nextSeq int64
}

// New creates a job store.
//
// Parameters:
//   - capacity: Hard cap on held jobs (DefaultCapacity if <= 0)
//   - log: Logger instance
//   - notify: Post-mutation notification hook (may be nil)
func New(capacity int, log logger.Logger, notify Notifier) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Store{
		logger:   log,
		capacity: capacity,
		notify:   notify,
		jobs:     make(map[string]*Job),
		byPath:   make(map[string]string),
	}
}

// Create admits a new Pending job for path.
//
// Returns ErrAlreadyProcessing if a live job exists for the path, and
// ErrIDCollision if id generation repeatedly collides (an existing job
// is never overwritten).
func (s *Store) Create(path string, size int64, quality int) (Job, error) {
	s.mu.Lock()

	if id, ok := s.byPath[path]; ok {
		s.mu.Unlock()
		return Job{}, fmt.Errorf("%w: %s (job %s)", ErrAlreadyProcessing, path, id)
	}

	id := ""
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		candidate := uuid.NewString()
		if _, exists := s.jobs[candidate]; !exists {
			id = candidate
			break
		}
	}
	if id == "" {
		s.mu.Unlock()
		return Job{}, ErrIDCollision
	}

	s.nextSeq++
	job := &Job{
		ID:           id,
		Filename:     filepath.Base(path),
		OriginalPath: path,
		Status:       StatusPending,
		OriginalSize: size,
		Quality:      quality,
		CreatedAt:    time.Now(),
		Seq:          s.nextSeq,
	}
	s.jobs[id] = job
	s.byPath[path] = id

	snapshot := *job
	s.mu.Unlock()

	s.logger.Info("job created",
		"id", id,
		"path", path,
		"size", size,
		"quality", quality)

	s.emit(events.TypeTaskCreated, snapshot)
	return snapshot, nil
}

// Claim transitions a job into its active state: Pending becomes
// Compressing, Reconverting stays Reconverting. Any other state is
// rejected with ErrAlreadyProcessing.
//
// On first claim the output path is chosen; if it already exists on
// disk the job is failed terminally and ErrOutputCollision returned.
// The existence check runs outside the lock.
//
// Jobs reach workers through a dispatch queue that enqueues each id
// once, so concurrent claims of one id do not occur in practice.
func (s *Store) Claim(id string) (Job, error) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	switch job.Status {
	case StatusPending, StatusReconverting:
	default:
		s.mu.Unlock()
		return Job{}, fmt.Errorf("%w: job %s is %s", ErrAlreadyProcessing, id, job.Status)
	}

	originalPath := job.OriginalPath
	output := job.CompressedPath
	s.mu.Unlock()

	if output == "" {
		chosen, err := compressor.OutputPath(originalPath)
		if err != nil {
			s.Fail(id, fmt.Sprintf("cannot derive output path for %s", originalPath))
			return Job{}, err
		}

		if _, statErr := os.Stat(chosen); statErr == nil {
			s.Fail(id, fmt.Sprintf("output path already exists: %s", chosen))
			return Job{}, fmt.Errorf("%w: %s", ErrOutputCollision, chosen)
		}

		output = chosen
	}

	s.mu.Lock()
	job, ok = s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if job.Status == StatusPending {
		job.Status = StatusCompressing
	}
	job.CompressedPath = output
	snapshot := *job
	s.mu.Unlock()

	s.emit(events.TypeTaskStatusChanged, snapshot)
	return snapshot, nil
}

// SetProgress raises a live job's progress. It is a no-op when the job
// no longer exists, is terminal, or pct does not exceed the current
// value (progress is monotonic).
func (s *Store) SetProgress(id string, pct int) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok || job.Status.Terminal() || pct <= job.Progress {
		s.mu.Unlock()
		return
	}
	job.Progress = pct
	snapshot := *job
	s.mu.Unlock()

	s.emit(events.TypeTaskStatusChanged, snapshot)
}

// Complete moves a job to the Completed terminal state.
//
// A vanished job (deleted while compressing) is logged and dropped.
func (s *Store) Complete(id string, compressedSize int64) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		s.logger.Warn("completion for vanished job dropped", "id", id)
		return
	}

	job.Status = StatusCompleted
	job.CompressedSize = compressedSize
	job.Progress = 100
	job.Error = ""
	job.CompletedAt = time.Now()
	s.releaseLivePath(job)
	snapshot := *job
	s.mu.Unlock()

	s.logger.Info("job completed",
		"id", id,
		"compressed_size", compressedSize)

	s.emit(events.TypeTaskStatusChanged, snapshot)
}

// Fail moves a job to the Error terminal state with a message.
//
// A vanished job is logged and dropped.
func (s *Store) Fail(id, message string) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		s.logger.Warn("failure for vanished job dropped", "id", id, "error", message)
		return
	}

	job.Status = StatusError
	job.Error = message
	job.CompressedSize = 0
	s.releaseLivePath(job)
	snapshot := *job
	s.mu.Unlock()

	s.logger.Warn("job failed", "id", id, "error", message)

	s.emit(events.TypeTaskStatusChanged, snapshot)
}

// Recompress restarts a terminal job at the given quality, reusing its
// id and output path. The job becomes Reconverting and its path counts
// as live again.
func (s *Store) Recompress(id string, quality int) (Job, error) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if !job.Status.Terminal() {
		s.mu.Unlock()
		return Job{}, fmt.Errorf("%w: job %s is %s", ErrNotRecompressable, id, job.Status)
	}
	if otherID, live := s.byPath[job.OriginalPath]; live && otherID != id {
		s.mu.Unlock()
		return Job{}, fmt.Errorf("%w: %s (job %s)", ErrAlreadyProcessing, job.OriginalPath, otherID)
	}

	job.Status = StatusReconverting
	job.Quality = quality
	job.Progress = 0
	job.Error = ""
	job.CompressedSize = 0
	job.CompletedAt = time.Time{}
	s.byPath[job.OriginalPath] = id
	snapshot := *job
	s.mu.Unlock()

	s.logger.Info("job restarted", "id", id, "quality", quality)

	s.emit(events.TypeTaskStatusChanged, snapshot)
	return snapshot, nil
}

// Get returns a snapshot of a job.
func (s *Store) Get(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// List returns snapshots of all jobs in admission order.
func (s *Store) List() []Job {
	s.mu.Lock()
	jobs := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, *job)
	}
	s.mu.Unlock()

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].Seq < jobs[j].Seq
	})
	return jobs
}

// Len returns the number of held jobs.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.jobs)
}

// Delete removes a job by id.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	snapshot := *job
	s.releaseLivePath(job)
	delete(s.jobs, id)
	s.mu.Unlock()

	s.emit(events.TypeTaskDeleted, snapshot)
	return nil
}

// ClearCompleted removes all Completed jobs and returns how many were
// removed.
func (s *Store) ClearCompleted() int {
	s.mu.Lock()
	removed := make([]Job, 0)
	for id, job := range s.jobs {
		if job.Status == StatusCompleted {
			removed = append(removed, *job)
			delete(s.jobs, id)
		}
	}
	s.mu.Unlock()

	for _, job := range removed {
		s.emit(events.TypeTaskDeleted, job)
	}
	return len(removed)
}

// DeleteOriginals removes the backing source file of every Completed
// job from disk and then removes the job. Returns the number of files
// deleted. Per-file failures are logged and skipped.
//
// File removal runs outside the lock: completed jobs are copied out
// first, then re-checked before their records are dropped.
func (s *Store) DeleteOriginals() int {
	s.mu.Lock()
	completed := make([]Job, 0)
	for _, job := range s.jobs {
		if job.Status == StatusCompleted {
			completed = append(completed, *job)
		}
	}
	s.mu.Unlock()

	deleted := 0
	removedIDs := make([]string, 0, len(completed))
	for _, job := range completed {
		if err := os.Remove(job.OriginalPath); err != nil {
			if !os.IsNotExist(err) {
				s.logger.Warn("failed to delete original",
					"path", job.OriginalPath,
					"error", err)
				continue
			}
		} else {
			deleted++
		}
		removedIDs = append(removedIDs, job.ID)
	}

	s.mu.Lock()
	snapshots := make([]Job, 0, len(removedIDs))
	for _, id := range removedIDs {
		if job, ok := s.jobs[id]; ok && job.Status == StatusCompleted {
			snapshots = append(snapshots, *job)
			delete(s.jobs, id)
		}
	}
	s.mu.Unlock()

	for _, job := range snapshots {
		s.emit(events.TypeTaskDeleted, job)
	}
	return deleted
}

// EvictOverCapacity enforces the capacity cap: when the store holds
// more than capacity jobs, the oldest Completed jobs are removed until
// the store is at or below 90% of capacity. Live and Error jobs are
// never evicted by capacity pressure.
//
// Returns the number of evicted jobs.
func (s *Store) EvictOverCapacity() int {
	s.mu.Lock()
	if len(s.jobs) <= s.capacity {
		s.mu.Unlock()
		return 0
	}

	target := int(float64(s.capacity) * evictTargetRatio)

	completed := make([]*Job, 0)
	for _, job := range s.jobs {
		if job.Status == StatusCompleted {
			completed = append(completed, job)
		}
	}
	sort.Slice(completed, func(i, j int) bool {
		return completed[i].Seq < completed[j].Seq
	})

	evicted := make([]Job, 0)
	for _, job := range completed {
		if len(s.jobs) <= target {
			break
		}
		evicted = append(evicted, *job)
		delete(s.jobs, job.ID)
	}
	s.mu.Unlock()

	if len(evicted) > 0 {
		s.logger.Info("evicted completed jobs over capacity",
			"count", len(evicted),
			"capacity", s.capacity)
	}

	for _, job := range evicted {
		s.emit(events.TypeTaskDeleted, job)
	}
	return len(evicted)
}

// SweepCompleted removes Completed jobs that finished before cutoff.
// Returns the number removed.
func (s *Store) SweepCompleted(cutoff time.Time) int {
	s.mu.Lock()
	removed := make([]Job, 0)
	for id, job := range s.jobs {
		if job.Status == StatusCompleted && !job.CompletedAt.IsZero() && job.CompletedAt.Before(cutoff) {
			removed = append(removed, *job)
			delete(s.jobs, id)
		}
	}
	s.mu.Unlock()

	for _, job := range removed {
		s.emit(events.TypeTaskDeleted, job)
	}
	return len(removed)
}

// Snapshot returns copies of all jobs except those in the Error state,
// which are considered transient and excluded from persistence.
func (s *Store) Snapshot() []Job {
	s.mu.Lock()
	jobs := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if job.Status == StatusError {
			continue
		}
		jobs = append(jobs, *job)
	}
	s.mu.Unlock()

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].Seq < jobs[j].Seq
	})
	return jobs
}

// LoadJobs restores jobs from a snapshot after a restart. Jobs that
// were mid-flight (Compressing, Reconverting) are reset to Pending so
// they can be re-dispatched. Returns the jobs now Pending.
func (s *Store) LoadJobs(jobs []Job) []Job {
	s.mu.Lock()
	pending := make([]Job, 0)
	for _, loaded := range jobs {
		if loaded.ID == "" {
			continue
		}
		if _, exists := s.jobs[loaded.ID]; exists {
			continue
		}

		job := loaded
		if job.Status == StatusCompressing || job.Status == StatusReconverting {
			job.Status = StatusPending
			job.Progress = 0
		}

		s.jobs[job.ID] = &job
		if job.Status.Live() {
			s.byPath[job.OriginalPath] = job.ID
		}
		if job.Seq > s.nextSeq {
			s.nextSeq = job.Seq
		}
		if job.Status == StatusPending {
			pending = append(pending, job)
		}
	}
	s.mu.Unlock()

	return pending
}

// releaseLivePath drops the live-path index entry for a job. Caller
// must hold the lock.
func (s *Store) releaseLivePath(job *Job) {
	if id, ok := s.byPath[job.OriginalPath]; ok && id == job.ID {
		delete(s.byPath, job.OriginalPath)
	}
}

// emit delivers a notification if a hook is registered.
func (s *Store) emit(eventType events.Type, job Job) {
	if s.notify != nil {
		s.notify(eventType, job)
	}
}
