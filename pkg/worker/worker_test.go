package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hatworks/imagepress/pkg/events"
	"github.com/hatworks/imagepress/pkg/history"
	"github.com/hatworks/imagepress/pkg/logger"
	"github.com/hatworks/imagepress/pkg/store"
)

// stubBackend produces a deterministic output size per quality value.
type stubBackend struct {
	mu       sync.Mutex
	sizes    map[int]int64
	err      error
	attempts []int
}

func (b *stubBackend) Compress(input, output string, quality int) (int64, error) {
	b.mu.Lock()
	b.attempts = append(b.attempts, quality)
	b.mu.Unlock()

	if b.err != nil {
		return 0, b.err
	}

	size, ok := b.sizes[quality]
	if !ok {
		size = 1
	}
	if err := os.WriteFile(output, make([]byte, size), 0600); err != nil {
		return 0, err
	}
	return size, nil
}

func (b *stubBackend) qualities() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]int(nil), b.attempts...)
}

type fixture struct {
	store   *store.Store
	history *history.Log
	bus     *events.Bus
	pool    *Pool
	dir     string
	cancel  context.CancelFunc
}

func newFixture(t *testing.T, backend *stubBackend, cfg Config) *fixture {
	t.Helper()

	dir := t.TempDir()

	if cfg.StablePollInterval == 0 {
		cfg.StablePollInterval = 10 * time.Millisecond
	}
	if cfg.StableSamples == 0 {
		cfg.StableSamples = 2
	}
	if cfg.StableMaxWait == 0 {
		cfg.StableMaxWait = 500 * time.Millisecond
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = 1
	}

	st := store.New(store.DefaultCapacity, logger.Noop(), nil)
	hist, err := history.Load(filepath.Join(dir, "log.json"), logger.Noop())
	require.NoError(t, err)
	bus := events.NewBus(100)

	pool := NewPool(cfg, st, backend, hist, bus, logger.Noop())

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	t.Cleanup(func() {
		cancel()
		pool.Wait()
	})

	return &fixture{store: st, history: hist, bus: bus, pool: pool, dir: dir, cancel: cancel}
}

func (f *fixture) createJob(t *testing.T, name string, size int64, quality int) store.Job {
	t.Helper()

	path := filepath.Join(f.dir, name)
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0600))

	job, err := f.store.Create(path, size, quality)
	require.NoError(t, err)
	return job
}

func (f *fixture) waitTerminal(t *testing.T, id string) store.Job {
	t.Helper()

	var job store.Job
	require.Eventually(t, func() bool {
		got, ok := f.store.Get(id)
		if !ok {
			return false
		}
		job = got
		return job.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond, "job never reached a terminal state")
	return job
}

func eventTypes(bus *events.Bus) []events.Type {
	all := bus.Since(0)
	types := make([]events.Type, len(all))
	for i, event := range all {
		types[i] = event.Type
	}
	return types
}

func TestSuccessFirstAttempt(t *testing.T) {
	backend := &stubBackend{sizes: map[int]int64{80: 400}}
	f := newFixture(t, backend, Config{})

	job := f.createJob(t, "photo.jpg", 1000, 80)
	require.NoError(t, f.pool.Enqueue(job.ID))

	done := f.waitTerminal(t, job.ID)
	assert.Equal(t, store.StatusCompleted, done.Status)
	assert.Equal(t, int64(400), done.CompressedSize)
	assert.Equal(t, 100, done.Progress)
	assert.Equal(t, filepath.Join(f.dir, "photo_compressed.jpg"), done.CompressedPath)

	assert.Equal(t, []int{80}, backend.qualities())

	records := f.history.Records()
	require.Len(t, records, 1)
	assert.Equal(t, int64(1000), records[0].InitialSize)
	assert.Equal(t, int64(400), records[0].CompressedSize)
	assert.Equal(t, 80, records[0].Quality)
	assert.Equal(t, "jpeg", records[0].InitialFormat)

	assert.Contains(t, eventTypes(f.bus), events.TypeStarted)
	assert.Contains(t, eventTypes(f.bus), events.TypeComplete)
}

func TestEqualSizeOutputAccepted(t *testing.T) {
	// An output exactly as large as the original is a success, not an
	// oversized result.
	backend := &stubBackend{sizes: map[int]int64{80: 1000}}
	f := newFixture(t, backend, Config{QualityStep: 10, MaxRetries: 5})

	job := f.createJob(t, "photo.jpg", 1000, 80)
	require.NoError(t, f.pool.Enqueue(job.ID))

	done := f.waitTerminal(t, job.ID)
	assert.Equal(t, store.StatusCompleted, done.Status)
	assert.Equal(t, int64(1000), done.CompressedSize)

	// Accepted on the first attempt, no escalation.
	assert.Equal(t, []int{80}, backend.qualities())
	assert.NotContains(t, eventTypes(f.bus), events.TypeRetry)

	records := f.history.Records()
	require.Len(t, records, 1)
	assert.Equal(t, 80, records[0].Quality)
}

func TestQualityEscalation(t *testing.T) {
	// 80 produces a larger file; 90 succeeds.
	backend := &stubBackend{sizes: map[int]int64{80: 1200, 90: 500}}
	f := newFixture(t, backend, Config{QualityStep: 10, MaxRetries: 5})

	job := f.createJob(t, "photo.png", 1000, 80)
	require.NoError(t, f.pool.Enqueue(job.ID))

	done := f.waitTerminal(t, job.ID)
	assert.Equal(t, store.StatusCompleted, done.Status)
	assert.Equal(t, int64(500), done.CompressedSize)

	assert.Equal(t, []int{80, 90}, backend.qualities())

	// History records the quality that finally worked.
	records := f.history.Records()
	require.Len(t, records, 1)
	assert.Equal(t, 90, records[0].Quality)

	// A retry event carried the escalation details.
	var retry *events.Event
	for _, event := range f.bus.Since(0) {
		if event.Type == events.TypeRetry {
			retry = &event
			break
		}
	}
	require.NotNil(t, retry, "no retry event published")
	info, ok := retry.Data.(events.RetryInfo)
	require.True(t, ok)
	assert.Equal(t, 1, info.Attempt)
	assert.Equal(t, 80, info.FromQuality)
	assert.Equal(t, 90, info.ToQuality)
	assert.Equal(t, int64(1200), info.CompressedSize)
}

func TestQualityCapsAtHundred(t *testing.T) {
	backend := &stubBackend{sizes: map[int]int64{95: 2000, 100: 300}}
	f := newFixture(t, backend, Config{QualityStep: 10, MaxRetries: 5})

	job := f.createJob(t, "photo.webp", 1000, 95)
	require.NoError(t, f.pool.Enqueue(job.ID))

	done := f.waitTerminal(t, job.ID)
	assert.Equal(t, store.StatusCompleted, done.Status)
	assert.Equal(t, []int{95, 100}, backend.qualities())
}

func TestRetriesExhaustedKeepsOriginal(t *testing.T) {
	// Every quality produces output larger than the input.
	backend := &stubBackend{sizes: map[int]int64{80: 1500, 90: 1500, 100: 1500}}
	f := newFixture(t, backend, Config{QualityStep: 10, MaxRetries: 2})

	job := f.createJob(t, "photo.gif", 1000, 80)
	require.NoError(t, f.pool.Enqueue(job.ID))

	done := f.waitTerminal(t, job.ID)
	assert.Equal(t, store.StatusCompleted, done.Status)

	// The fallback copied the original bytes verbatim.
	assert.Equal(t, int64(1000), done.CompressedSize)
	info, err := os.Stat(done.CompressedPath)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), info.Size())

	// Initial attempt plus two retries.
	assert.Equal(t, []int{80, 90, 100}, backend.qualities())
}

func TestMaxQualityGoesStraightToFallback(t *testing.T) {
	// Already at quality 100 with an oversized result: repeating the
	// identical attempt cannot help, so the fallback runs immediately.
	backend := &stubBackend{sizes: map[int]int64{100: 1500}}
	f := newFixture(t, backend, Config{QualityStep: 10, MaxRetries: 5})

	job := f.createJob(t, "photo.jpg", 1000, 100)
	require.NoError(t, f.pool.Enqueue(job.ID))

	done := f.waitTerminal(t, job.ID)
	assert.Equal(t, store.StatusCompleted, done.Status)
	assert.Equal(t, int64(1000), done.CompressedSize)

	assert.Equal(t, []int{100}, backend.qualities())
	assert.NotContains(t, eventTypes(f.bus), events.TypeRetry)
}

func TestBackendFailure(t *testing.T) {
	backend := &stubBackend{err: errors.New("encoder exploded")}
	f := newFixture(t, backend, Config{})

	job := f.createJob(t, "photo.jpg", 1000, 80)
	require.NoError(t, f.pool.Enqueue(job.ID))

	done := f.waitTerminal(t, job.ID)
	assert.Equal(t, store.StatusError, done.Status)
	assert.Contains(t, done.Error, "encoder exploded")

	assert.Contains(t, eventTypes(f.bus), events.TypeFailed)
	assert.Empty(t, f.history.Records())
}

func TestEmptySourceFails(t *testing.T) {
	backend := &stubBackend{sizes: map[int]int64{80: 400}}
	f := newFixture(t, backend, Config{StableMaxWait: 100 * time.Millisecond})

	job := f.createJob(t, "photo.jpg", 0, 80)
	require.NoError(t, f.pool.Enqueue(job.ID))

	done := f.waitTerminal(t, job.ID)
	assert.Equal(t, store.StatusError, done.Status)
	assert.Empty(t, backend.qualities(), "empty file must not reach the backend")
}

func TestVanishedSourceFails(t *testing.T) {
	backend := &stubBackend{sizes: map[int]int64{80: 400}}
	f := newFixture(t, backend, Config{})

	job := f.createJob(t, "photo.jpg", 1000, 80)
	require.NoError(t, os.Remove(job.OriginalPath))
	require.NoError(t, f.pool.Enqueue(job.ID))

	done := f.waitTerminal(t, job.ID)
	assert.Equal(t, store.StatusError, done.Status)
}

func TestGrowingFileWaits(t *testing.T) {
	backend := &stubBackend{sizes: map[int]int64{80: 400}}
	f := newFixture(t, backend, Config{
		StablePollInterval: 10 * time.Millisecond,
		StableSamples:      3,
		StableMaxWait:      2 * time.Second,
	})

	path := filepath.Join(f.dir, "photo.jpg")
	require.NoError(t, os.WriteFile(path, make([]byte, 100), 0600))
	job, err := f.store.Create(path, 100, 80)
	require.NoError(t, err)

	// Keep growing the file briefly after dispatch.
	go func() {
		for i := 0; i < 5; i++ {
			time.Sleep(15 * time.Millisecond)
			file, openErr := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
			if openErr != nil {
				return
			}
			_, _ = file.Write(make([]byte, 200)) // nolint:errcheck
			_ = file.Close()                     // nolint:errcheck
		}
	}()

	require.NoError(t, f.pool.Enqueue(job.ID))

	done := f.waitTerminal(t, job.ID)
	assert.Equal(t, store.StatusCompleted, done.Status)
	assert.Equal(t, int64(400), done.CompressedSize)
}

func TestEnqueueFullQueue(t *testing.T) {
	backend := &stubBackend{sizes: map[int]int64{80: 400}}

	st := store.New(store.DefaultCapacity, logger.Noop(), nil)
	hist, err := history.Load(filepath.Join(t.TempDir(), "log.json"), logger.Noop())
	require.NoError(t, err)

	// Never started, so nothing drains the queue.
	pool := NewPool(Config{QueueSize: 1}, st, backend, hist, events.NewBus(10), logger.Noop())

	require.NoError(t, pool.Enqueue("a"))
	assert.ErrorIs(t, pool.Enqueue("b"), ErrQueueFull)
}

func TestConcurrentJobs(t *testing.T) {
	backend := &stubBackend{sizes: map[int]int64{80: 400}}
	f := newFixture(t, backend, Config{PoolSize: 3})

	names := []string{"a.jpg", "b.png", "c.webp", "d.gif"}
	ids := make([]string, len(names))
	for i, name := range names {
		job := f.createJob(t, name, 1000, 80)
		ids[i] = job.ID
		require.NoError(t, f.pool.Enqueue(job.ID))
	}

	for _, id := range ids {
		done := f.waitTerminal(t, id)
		assert.Equal(t, store.StatusCompleted, done.Status)
	}

	assert.Len(t, f.history.Records(), len(names))
}
