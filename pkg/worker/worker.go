// Package worker runs the compression attempts.
//
// A fixed pool of goroutines consumes job ids from a dispatch queue.
// Each worker waits for its source file to stop growing, then drives
// the quality-escalation retry policy: an attempt whose output is
// larger than the original is retried at a higher quality (stepping
// toward lossless), and once quality tops out or retries run out the
// original bytes are copied verbatim so the output is never larger
// than the input.
package worker

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/hatworks/imagepress/pkg/compressor"
	"github.com/hatworks/imagepress/pkg/events"
	"github.com/hatworks/imagepress/pkg/history"
	"github.com/hatworks/imagepress/pkg/logger"
	"github.com/hatworks/imagepress/pkg/store"
)

// Default retry policy and stability-wait values.
const (
	DefaultPoolSize           = 2
	DefaultQualityStep        = 10
	DefaultMaxRetries         = 5
	DefaultStablePollInterval = 200 * time.Millisecond
	DefaultStableSamples      = 3
	DefaultStableMaxWait      = 10 * time.Second
	DefaultQueueSize          = 256

	maxQuality = 100
)

// Config contains worker pool configuration.
type Config struct {
	// PoolSize is the number of concurrent workers. Default: 2.
	PoolSize int

	// QualityStep is added to the quality on each retry. Default: 10.
	QualityStep int

	// MaxRetries bounds escalation attempts after the first. Default: 5.
	MaxRetries int

	// StablePollInterval is how often the source size is sampled while
	// waiting for a download to finish. Default: 200ms.
	StablePollInterval time.Duration

	// StableSamples is how many consecutive identical non-zero sizes
	// mean the file is complete. Default: 3.
	StableSamples int

	// StableMaxWait caps the stability wait; a non-empty file is then
	// processed as-is. Default: 10s.
	StableMaxWait time.Duration

	// QueueSize is the dispatch queue capacity. Default: 256.
	QueueSize int
}

// progressUpdate is one worker's progress report, applied by a single
// consumer goroutine so workers never touch the store lock for
// progress.
type progressUpdate struct {
	jobID string
	pct   int
}

// Pool dispatches jobs to compression workers.
type Pool struct {
	config  Config
	store   *store.Store
	backend compressor.Compressor
	history *history.Log
	bus     *events.Bus
	logger  logger.Logger

	queue    chan string
	progress chan progressUpdate
	wg       sync.WaitGroup

	mu      sync.Mutex
	started bool
}

// NewPool creates a worker pool.
//
// Parameters:
//   - cfg: Pool configuration (zero values take defaults)
//   - st: Job store
//   - backend: Compression backend
//   - hist: Compression history log
//   - bus: Event bus for UI notifications
//   - log: Logger instance
func NewPool(cfg Config, st *store.Store, backend compressor.Compressor, hist *history.Log, bus *events.Bus, log logger.Logger) *Pool {
	// Set defaults.
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = DefaultPoolSize
	}
	if cfg.QualityStep <= 0 {
		cfg.QualityStep = DefaultQualityStep
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.StablePollInterval <= 0 {
		cfg.StablePollInterval = DefaultStablePollInterval
	}
	if cfg.StableSamples <= 0 {
		cfg.StableSamples = DefaultStableSamples
	}
	if cfg.StableMaxWait <= 0 {
		cfg.StableMaxWait = DefaultStableMaxWait
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}

	return &Pool{
		config:   cfg,
		store:    st,
		backend:  backend,
		history:  hist,
		bus:      bus,
		logger:   log,
		queue:    make(chan string, cfg.QueueSize),
		progress: make(chan progressUpdate, cfg.QueueSize),
	}
}

// Start launches the workers and the progress consumer. They run until
// the context is cancelled; Wait blocks until they have drained.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	p.wg.Add(1)
	go p.consumeProgress(ctx)

	for i := 0; i < p.config.PoolSize; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}

	p.logger.Info("worker pool started",
		"workers", p.config.PoolSize,
		"max_retries", p.config.MaxRetries,
		"quality_step", p.config.QualityStep)
}

// Wait blocks until all workers have stopped.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Enqueue hands a job id to the pool without blocking.
func (p *Pool) Enqueue(jobID string) error {
	select {
	case p.queue <- jobID:
		return nil
	default:
		return fmt.Errorf("%w: job %s", ErrQueueFull, jobID)
	}
}

// run is one worker's loop.
func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()

	p.logger.Debug("worker started", "worker", id)

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("worker stopped", "worker", id)
			return
		case jobID := <-p.queue:
			p.process(ctx, jobID)
		}
	}
}

// consumeProgress applies progress reports to the store.
func (p *Pool) consumeProgress(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case update := <-p.progress:
			p.store.SetProgress(update.jobID, update.pct)
		}
	}
}

// sendProgress reports progress without ever blocking a worker.
func (p *Pool) sendProgress(jobID string, pct int) {
	select {
	case p.progress <- progressUpdate{jobID: jobID, pct: pct}:
	default:
	}
}

// process runs one job end to end.
func (p *Pool) process(ctx context.Context, jobID string) {
	job, err := p.store.Claim(jobID)
	if err != nil {
		// The job was deleted, already handled, or its output path is
		// taken; the store has recorded the outcome.
		p.logger.Debug("job not claimable", "id", jobID, "error", err)
		return
	}

	p.bus.Publish(events.Event{
		Type:  events.TypeStarted,
		JobID: job.ID,
		Path:  job.OriginalPath,
	})
	p.sendProgress(job.ID, 5)

	originalSize, err := p.waitForStable(ctx, job.OriginalPath)
	if err != nil {
		p.fail(job, fmt.Sprintf("source not readable: %v", err))
		return
	}
	p.sendProgress(job.ID, 15)

	quality := job.Quality
	for attempt := 0; ; attempt++ {
		pct := 20 + attempt*12
		if pct > 90 {
			pct = 90
		}
		p.sendProgress(job.ID, pct)

		written, compressErr := p.backend.Compress(job.OriginalPath, job.CompressedPath, quality)
		if compressErr != nil {
			p.fail(job, fmt.Sprintf("compression failed: %v", compressErr))
			return
		}

		// An output no larger than the original is acceptable; equal
		// size still counts as success.
		if written <= originalSize {
			p.complete(job, originalSize, written, quality)
			return
		}

		if attempt >= p.config.MaxRetries || quality >= maxQuality {
			// No higher quality left to try, or the retry budget is
			// spent: keep the original bytes so the output never
			// exceeds the input.
			p.logger.Info("retries exhausted, keeping original bytes",
				"id", job.ID,
				"path", job.OriginalPath)

			copied, copyErr := compressor.CopyFile(job.OriginalPath, job.CompressedPath)
			if copyErr != nil {
				p.fail(job, fmt.Sprintf("fallback copy failed: %v", copyErr))
				return
			}
			p.complete(job, originalSize, copied, quality)
			return
		}

		next := quality + p.config.QualityStep
		if next > maxQuality {
			next = maxQuality
		}

		p.logger.Info("output larger than original, escalating quality",
			"id", job.ID,
			"attempt", attempt+1,
			"from_quality", quality,
			"to_quality", next,
			"original_size", originalSize,
			"compressed_size", written)

		p.bus.Publish(events.Event{
			Type:  events.TypeRetry,
			JobID: job.ID,
			Path:  job.OriginalPath,
			Data: events.RetryInfo{
				Path:           job.OriginalPath,
				Attempt:        attempt + 1,
				FromQuality:    quality,
				ToQuality:      next,
				OriginalSize:   originalSize,
				CompressedSize: written,
			},
		})

		quality = next
	}
}

// complete records a successful compression.
func (p *Pool) complete(job store.Job, originalSize, compressedSize int64, quality int) {
	p.store.Complete(job.ID, compressedSize)

	record := history.Record{
		InitialPath:    job.OriginalPath,
		FinalPath:      job.CompressedPath,
		InitialSize:    originalSize,
		CompressedSize: compressedSize,
		InitialFormat:  string(compressor.FormatFromPath(job.OriginalPath)),
		FinalFormat:    string(compressor.FormatFromPath(job.CompressedPath)),
		Quality:        quality,
	}
	p.history.Append(record)

	p.bus.Publish(events.Event{
		Type:  events.TypeComplete,
		JobID: job.ID,
		Path:  job.OriginalPath,
		Data:  record,
	})
}

// fail records a failed compression.
func (p *Pool) fail(job store.Job, message string) {
	p.store.Fail(job.ID, message)

	p.bus.Publish(events.Event{
		Type:  events.TypeFailed,
		JobID: job.ID,
		Path:  job.OriginalPath,
		Data:  message,
	})
}

// waitForStable polls the source file until its size stops changing.
//
// Returns the settled size. A file that stays empty for the whole wait
// is an error; a file still growing when the wait expires is processed
// at its current size.
func (p *Pool) waitForStable(ctx context.Context, path string) (int64, error) {
	deadline := time.Now().Add(p.config.StableMaxWait)

	var last int64 = -1
	stable := 0

	for {
		info, err := os.Stat(path)
		if err != nil {
			return 0, fmt.Errorf("failed to stat source: %w", err)
		}

		size := info.Size()
		if size == last {
			stable++
		} else {
			stable = 1
			last = size
		}

		if size > 0 && stable >= p.config.StableSamples {
			return size, nil
		}

		if time.Now().After(deadline) {
			if size == 0 {
				return 0, ErrEmptyFile
			}
			p.logger.Warn("source never settled, processing current size",
				"path", path,
				"size", size)
			return size, nil
		}

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(p.config.StablePollInterval):
		}
	}
}
