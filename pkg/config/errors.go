package config

import "errors"

// Common errors returned by the config package.
var (
	// ErrInvalidEventBuffer is returned when the event buffer size is <= 0.
	ErrInvalidEventBuffer = errors.New("invalid event buffer: must be > 0")

	// ErrInvalidDebounceWindow is returned when the debounce window is <= 0.
	ErrInvalidDebounceWindow = errors.New("invalid debounce window: must be > 0")

	// ErrInvalidPoolSize is returned when the worker pool size is <= 0.
	ErrInvalidPoolSize = errors.New("invalid worker pool size: must be > 0")

	// ErrInvalidBackend is returned when the backend is not recognized.
	ErrInvalidBackend = errors.New("invalid backend: must be vips or copy")

	// ErrInvalidQualityStep is returned when the quality step is outside [1,100].
	ErrInvalidQualityStep = errors.New("invalid quality step: must be in [1,100]")

	// ErrInvalidMaxRetries is returned when max retries is negative.
	ErrInvalidMaxRetries = errors.New("invalid max retries: must be >= 0")

	// ErrInvalidStableWait is returned when a stabilization duration is <= 0.
	ErrInvalidStableWait = errors.New("invalid stabilization wait: durations must be > 0")

	// ErrInvalidStableSamples is returned when stable samples is <= 0.
	ErrInvalidStableSamples = errors.New("invalid stable samples: must be > 0")

	// ErrInvalidCapacity is returned when the store capacity is <= 0.
	ErrInvalidCapacity = errors.New("invalid store capacity: must be > 0")

	// ErrInvalidSnapshotInterval is returned when the snapshot interval is <= 0.
	ErrInvalidSnapshotInterval = errors.New("invalid snapshot interval: must be > 0")

	// ErrInvalidRetentionSweep is returned when the retention sweep interval is <= 0.
	ErrInvalidRetentionSweep = errors.New("invalid retention sweep interval: must be > 0")

	// ErrInvalidRetention is returned when the completed retention is <= 0.
	ErrInvalidRetention = errors.New("invalid completed retention: must be > 0")

	// ErrInvalidDebouncePrune is returned when the debounce prune interval is <= 0.
	ErrInvalidDebouncePrune = errors.New("invalid debounce prune interval: must be > 0")

	// ErrInvalidLogLevel is returned when log level is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level: must be debug, info, warn, or error")

	// ErrInvalidLogFormat is returned when log format is not recognized.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")

	// ErrConfigNotFound is returned when config file is not found.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrInvalidYAML is returned when config file has invalid YAML syntax.
	ErrInvalidYAML = errors.New("invalid YAML syntax in config file")
)
