// Package pipeline assembles the watched-folder compression service:
// folder watcher, admission debounce, job store, worker pool, history
// log and persistence, wired together behind one command surface.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hatworks/imagepress/pkg/compressor"
	"github.com/hatworks/imagepress/pkg/config"
	"github.com/hatworks/imagepress/pkg/debounce"
	"github.com/hatworks/imagepress/pkg/events"
	"github.com/hatworks/imagepress/pkg/history"
	"github.com/hatworks/imagepress/pkg/logger"
	"github.com/hatworks/imagepress/pkg/settings"
	"github.com/hatworks/imagepress/pkg/store"
	"github.com/hatworks/imagepress/pkg/watcher"
	"github.com/hatworks/imagepress/pkg/worker"
)

// eventBufferSize is the replay capacity of the notification bus.
const eventBufferSize = 500

// Pipeline is the assembled compression service.
type Pipeline struct {
	config   *config.Config
	logger   logger.Logger
	settings settings.Manager
	store    *store.Store
	snapshot store.SnapshotStore
	history  *history.Log
	bus      *events.Bus
	pool     *worker.Pool
	watcher  watcher.Watcher
	admitted *debounce.Cache
}

// New assembles a pipeline from configuration.
//
// A snapshot database or watcher that cannot be created degrades the
// pipeline (no persistence across restarts, no automatic admission)
// instead of failing it: manual compression and the command surface
// keep working.
func New(cfg *config.Config, log logger.Logger) (*Pipeline, error) {
	userSettings := settings.Load(cfg.Storage.SettingsPath, config.DefaultWatchedFolder(), log)

	hist, err := history.Load(cfg.Storage.HistoryPath, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load compression history: %w", err)
	}

	var snapshot store.SnapshotStore
	snapshot, err = store.NewBoltSnapshotStore(cfg.Storage.SnapshotDBPath)
	if err != nil {
		log.Warn("job snapshots disabled, state will not survive restarts",
			"path", cfg.Storage.SnapshotDBPath,
			"error", err)
		snapshot = nil
	}

	bus := events.NewBus(eventBufferSize)
	jobStore := store.New(cfg.Store.Capacity, log, func(eventType events.Type, job store.Job) {
		bus.Publish(events.Event{
			Type:  eventType,
			JobID: job.ID,
			Path:  job.OriginalPath,
			Data:  job,
		})
	})

	var backend compressor.Compressor
	switch cfg.Worker.Backend {
	case "copy":
		backend = compressor.NewCopyBackend()
	default:
		backend = compressor.NewExecBackend(cfg.Worker.Command, log)
	}

	pool := worker.NewPool(worker.Config{
		PoolSize:           cfg.Worker.PoolSize,
		QualityStep:        cfg.Worker.QualityStep,
		MaxRetries:         cfg.Worker.MaxRetries,
		StablePollInterval: cfg.Worker.StablePollInterval,
		StableSamples:      cfg.Worker.StableSamples,
		StableMaxWait:      cfg.Worker.StableMaxWait,
	}, jobStore, backend, hist, bus, log)

	var folderWatcher watcher.Watcher
	folderWatcher, err = watcher.New(watcher.Config{EventBuffer: cfg.Watcher.EventBuffer}, log)
	if err != nil {
		log.Warn("folder watcher unavailable, automatic admission disabled",
			"error", err)
		folderWatcher = nil
	}

	return &Pipeline{
		config:   cfg,
		logger:   log,
		settings: userSettings,
		store:    jobStore,
		snapshot: snapshot,
		history:  hist,
		bus:      bus,
		pool:     pool,
		watcher:  folderWatcher,
		admitted: debounce.New(cfg.Watcher.DebounceWindow),
	}, nil
}

// Run restores persisted jobs, starts the workers and the watcher, and
// services events and maintenance until the context is cancelled. On
// shutdown the job snapshot and history are flushed.
func (p *Pipeline) Run(ctx context.Context) error {
	p.Restore()

	p.pool.Start(ctx)

	var arrivals <-chan watcher.Event
	var watchErrors <-chan error
	if p.watcher != nil {
		if err := p.watcher.Start(ctx, p.settings.WatchedFolders()); err != nil {
			p.logger.Warn("watcher failed to start, automatic admission disabled",
				"error", err)
		} else {
			arrivals = p.watcher.Events()
			watchErrors = p.watcher.Errors()
		}
	}

	snapshotTicker := time.NewTicker(p.config.Maintenance.SnapshotInterval)
	defer snapshotTicker.Stop()
	retentionTicker := time.NewTicker(p.config.Maintenance.RetentionSweepInterval)
	defer retentionTicker.Stop()
	pruneTicker := time.NewTicker(p.config.Maintenance.DebouncePruneInterval)
	defer pruneTicker.Stop()

	p.logger.Info("pipeline running",
		"folders", len(p.settings.WatchedFolders()),
		"quality", p.settings.Quality())

	for {
		select {
		case <-ctx.Done():
			p.shutdown()
			return nil

		case event, ok := <-arrivals:
			if !ok {
				arrivals = nil
				continue
			}
			p.handleArrival(event)

		case err, ok := <-watchErrors:
			if !ok {
				watchErrors = nil
				continue
			}
			p.logger.Error("watcher error", "error", err)

		case <-snapshotTicker.C:
			p.saveSnapshot()

		case <-retentionTicker.C:
			cutoff := time.Now().Add(-p.config.Maintenance.CompletedRetention)
			if removed := p.store.SweepCompleted(cutoff); removed > 0 {
				p.logger.Info("retention sweep removed completed jobs", "count", removed)
			}
			p.store.EvictOverCapacity()

		case <-pruneTicker.C:
			p.admitted.Prune(time.Now())
		}
	}
}

// handleArrival admits one watcher event into the job store.
func (p *Pipeline) handleArrival(event watcher.Event) {
	if !p.admitted.Admit(event.Path, time.Now()) {
		p.logger.Debug("duplicate arrival suppressed", "path", event.Path)
		return
	}

	p.bus.Publish(events.Event{
		Type: events.TypeNewDownload,
		Path: event.Path,
	})

	info, err := os.Stat(event.Path)
	if err != nil {
		p.logger.Warn("arrived file vanished before admission",
			"path", event.Path,
			"error", err)
		return
	}

	job, err := p.store.Create(event.Path, info.Size(), p.settings.Quality())
	if err != nil {
		p.logger.Debug("arrival not admitted", "path", event.Path, "error", err)
		return
	}

	p.store.EvictOverCapacity()
	p.dispatch(job.ID)
}

// dispatch enqueues a job, failing it if the queue is saturated.
func (p *Pipeline) dispatch(jobID string) {
	if err := p.pool.Enqueue(jobID); err != nil {
		p.logger.Error("failed to dispatch job", "id", jobID, "error", err)
		p.store.Fail(jobID, "dispatch queue is full")
	}
}

// Restore reloads the persisted snapshot and re-dispatches jobs that
// were pending or mid-flight when the previous process exited. Run
// calls it on startup; one-shot commands also call it directly when
// they need persisted state before Run's goroutine gets there.
// Restore is idempotent: jobs already in the store are left untouched
// and are not dispatched again.
func (p *Pipeline) Restore() {
	if p.snapshot == nil {
		return
	}

	jobs, err := p.snapshot.Load()
	if err != nil {
		p.logger.Warn("failed to load job snapshot", "error", err)
		return
	}
	if len(jobs) == 0 {
		return
	}

	pending := p.store.LoadJobs(jobs)
	p.logger.Info("restored jobs from snapshot",
		"total", len(jobs),
		"requeued", len(pending))

	for _, job := range pending {
		p.dispatch(job.ID)
	}
}

// saveSnapshot flushes the current job map to the snapshot store.
func (p *Pipeline) saveSnapshot() {
	if p.snapshot == nil {
		return
	}

	if err := p.snapshot.Save(p.store.Snapshot()); err != nil {
		p.logger.Warn("failed to save job snapshot", "error", err)
	}
}

// Close flushes state and releases resources. Callers that drive the
// pipeline through Run must not call Close as well: Run performs the
// same flush when its context is cancelled.
func (p *Pipeline) Close() {
	p.shutdown()
}

// shutdown flushes state and releases resources.
func (p *Pipeline) shutdown() {
	p.logger.Info("pipeline shutting down")

	p.saveSnapshot()

	if err := p.history.Flush(); err != nil {
		p.logger.Warn("failed to flush history", "error", err)
	}

	if p.watcher != nil {
		if err := p.watcher.Close(); err != nil {
			p.logger.Warn("failed to close watcher", "error", err)
		}
	}

	p.pool.Wait()

	if p.snapshot != nil {
		if err := p.snapshot.Close(); err != nil {
			p.logger.Warn("failed to close snapshot store", "error", err)
		}
	}
}

// Quality returns the current compression quality.
func (p *Pipeline) Quality() int {
	return p.settings.Quality()
}

// SetQuality updates the compression quality, clamped to [1,100], and
// returns the value in effect.
func (p *Pipeline) SetQuality(value int) int {
	return p.settings.SetQuality(value)
}

// WatchedFolders returns the watched folder set.
func (p *Pipeline) WatchedFolders() []string {
	return p.settings.WatchedFolders()
}

// AddFolder adds a folder to the watched set and, when the watcher is
// running, starts monitoring it immediately.
func (p *Pipeline) AddFolder(path string) error {
	if err := p.settings.AddFolder(path); err != nil {
		return err
	}

	if p.watcher != nil {
		if err := p.watcher.AddFolder(path); err != nil {
			p.logger.Warn("folder saved but not being monitored",
				"path", path,
				"error", err)
		}
	}
	return nil
}

// RemoveFolder removes a folder from the watched set and stops
// monitoring it.
func (p *Pipeline) RemoveFolder(path string) error {
	if err := p.settings.RemoveFolder(path); err != nil {
		return err
	}

	if p.watcher != nil {
		if err := p.watcher.RemoveFolder(path); err != nil {
			p.logger.Debug("folder was not being monitored", "path", path)
		}
	}
	return nil
}

// CompressFiles admits explicitly chosen files, bypassing the
// admission debounce. Files that cannot be admitted are skipped with a
// warning; the returned error summarizes how many were skipped.
func (p *Pipeline) CompressFiles(paths []string) ([]store.Job, error) {
	jobs := make([]store.Job, 0, len(paths))
	skipped := 0

	for _, path := range paths {
		job, err := p.compressFile(path)
		if err != nil {
			p.logger.Warn("file not admitted", "path", path, "error", err)
			skipped++
			continue
		}
		jobs = append(jobs, job)
	}

	if skipped > 0 {
		return jobs, fmt.Errorf("%d of %d files not admitted", skipped, len(paths))
	}
	return jobs, nil
}

// compressFile validates and admits one file.
func (p *Pipeline) compressFile(path string) (store.Job, error) {
	info, err := os.Stat(path)
	if err != nil {
		return store.Job{}, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return store.Job{}, fmt.Errorf("%w: %s", ErrNotAFile, path)
	}
	if compressor.FormatFromPath(path) == "" {
		return store.Job{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	job, err := p.store.Create(path, info.Size(), p.settings.Quality())
	if err != nil {
		return store.Job{}, err
	}

	p.store.EvictOverCapacity()
	p.dispatch(job.ID)
	return job, nil
}

// Recompress restarts the most recent finished job for path at a
// quality one step above previousQuality, capped at 100. The job keeps
// its id and output path, so the output file is overwritten in place.
func (p *Pipeline) Recompress(path string, previousQuality int) (store.Job, error) {
	quality := previousQuality + p.config.Worker.QualityStep
	if quality > 100 {
		quality = 100
	}

	var target *store.Job
	for _, job := range p.store.List() {
		if job.OriginalPath == path && job.Status.Terminal() {
			candidate := job
			target = &candidate
		}
	}
	if target == nil {
		return store.Job{}, fmt.Errorf("%w: %s", ErrNoJobForPath, path)
	}

	job, err := p.store.Recompress(target.ID, quality)
	if err != nil {
		return store.Job{}, err
	}

	p.dispatch(job.ID)
	return job, nil
}

// Jobs returns all tracked jobs in admission order.
func (p *Pipeline) Jobs() []store.Job {
	return p.store.List()
}

// Job returns one job by id.
func (p *Pipeline) Job(id string) (store.Job, bool) {
	return p.store.Get(id)
}

// DeleteTask removes a job by id.
func (p *Pipeline) DeleteTask(id string) error {
	return p.store.Delete(id)
}

// ClearCompleted removes all completed jobs and returns the count.
func (p *Pipeline) ClearCompleted() int {
	return p.store.ClearCompleted()
}

// DeleteOriginals deletes the source file of every completed job and
// removes the job. Returns how many files were deleted.
func (p *Pipeline) DeleteOriginals() int {
	return p.store.DeleteOriginals()
}

// History returns all compression records, oldest first.
func (p *Pipeline) History() []history.Record {
	return p.history.Records()
}

// HistoryStats returns summary totals over the history log.
func (p *Pipeline) HistoryStats() history.Stats {
	return p.history.Stats()
}

// ClearHistory removes all compression records.
func (p *Pipeline) ClearHistory() {
	p.history.Clear()
}

// DeleteOriginalImages deletes every original file recorded in history
// that has not been deleted yet. Returns how many files were removed.
func (p *Pipeline) DeleteOriginalImages() (int, error) {
	return p.history.DeleteOriginals()
}

// Events returns notifications with sequence greater than seq.
func (p *Pipeline) Events(seq int64) []events.Event {
	return p.bus.Since(seq)
}

// Subscribe returns a channel of live notifications.
func (p *Pipeline) Subscribe(buffer int) <-chan events.Event {
	return p.bus.Subscribe(buffer)
}
