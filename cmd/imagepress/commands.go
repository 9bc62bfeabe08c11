package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hatworks/imagepress/pkg/config"
	"github.com/hatworks/imagepress/pkg/display"
	"github.com/hatworks/imagepress/pkg/logger"
	"github.com/hatworks/imagepress/pkg/pipeline"
	"github.com/hatworks/imagepress/pkg/store"
)

// terminalPollInterval is how often one-shot commands check whether
// their jobs have finished.
const terminalPollInterval = 100 * time.Millisecond

// initialize loads configuration and builds the logger.
func initialize(configPath string) (*config.Config, logger.Logger, error) {
	var cfg *config.Config
	var err error

	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	return cfg, log, nil
}

// newFormatter builds a display formatter from command flags.
func newFormatter(format string, compact bool) display.Formatter {
	return display.New(display.Config{
		Format:  display.Format(format),
		Compact: compact,
	})
}

// watchCommand runs the pipeline in the foreground until interrupted.
type watchCommand struct {
	configPath string
}

// Execute runs the watch command.
func (c *watchCommand) Execute() error {
	cfg, log, err := initialize(c.configPath)
	if err != nil {
		return err
	}

	p, err := pipeline.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return p.Run(ctx)
}

// compressCommand compresses explicitly chosen files and exits.
type compressCommand struct {
	files      []string
	format     string
	compact    bool
	configPath string
}

// Execute runs the compress command.
func (c *compressCommand) Execute() error {
	cfg, log, err := initialize(c.configPath)
	if err != nil {
		return err
	}

	p, err := pipeline.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- p.Run(ctx)
	}()

	jobs, admitErr := p.CompressFiles(c.files)
	if admitErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", admitErr)
	}

	waitForJobs(p, jobs)

	cancel()
	<-done

	if len(jobs) == 0 {
		return fmt.Errorf("no files were admitted")
	}

	return newFormatter(c.format, c.compact).FormatJobs(os.Stdout, p.Jobs())
}

// recompressCommand re-runs a finished compression at a higher quality.
type recompressCommand struct {
	path       string
	quality    int
	format     string
	compact    bool
	configPath string
}

// Execute runs the recompress command.
func (c *recompressCommand) Execute() error {
	cfg, log, err := initialize(c.configPath)
	if err != nil {
		return err
	}

	p, err := pipeline.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	// The job to restart lives in the snapshot from a previous run;
	// load it before Recompress scans the store.
	p.Restore()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- p.Run(ctx)
	}()

	previousQuality := c.quality
	if previousQuality <= 0 {
		previousQuality = p.Quality()
	}

	job, recompressErr := p.Recompress(c.path, previousQuality)
	if recompressErr != nil {
		cancel()
		<-done
		return recompressErr
	}

	waitForJobs(p, []store.Job{job})

	cancel()
	<-done

	finished, _ := p.Job(job.ID)
	return newFormatter(c.format, c.compact).FormatJobs(os.Stdout, []store.Job{finished})
}

// statusCommand prints the tracked jobs persisted by the last run.
type statusCommand struct {
	format     string
	compact    bool
	configPath string
}

// Execute runs the status command.
func (c *statusCommand) Execute() error {
	cfg, log, err := initialize(c.configPath)
	if err != nil {
		return err
	}

	p, err := pipeline.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	defer p.Close()

	p.Restore()

	return newFormatter(c.format, c.compact).FormatJobs(os.Stdout, p.Jobs())
}

// historyCommand shows or clears the compression history.
type historyCommand struct {
	stats      bool
	clear      bool
	format     string
	compact    bool
	configPath string
}

// Execute runs the history command.
func (c *historyCommand) Execute() error {
	cfg, log, err := initialize(c.configPath)
	if err != nil {
		return err
	}

	p, err := pipeline.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	defer p.Close()

	if c.clear {
		p.ClearHistory()
		fmt.Println("Compression history cleared")
		return nil
	}

	formatter := newFormatter(c.format, c.compact)
	if c.stats {
		return formatter.FormatStats(os.Stdout, p.HistoryStats())
	}
	return formatter.FormatHistory(os.Stdout, p.History())
}

// originalsCommand deletes original files recorded in history.
type originalsCommand struct {
	configPath string
}

// Execute runs the originals command.
func (c *originalsCommand) Execute() error {
	cfg, log, err := initialize(c.configPath)
	if err != nil {
		return err
	}

	p, err := pipeline.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	defer p.Close()

	deleted, err := p.DeleteOriginalImages()
	if err != nil {
		return err
	}

	fmt.Printf("Deleted %d original file(s)\n", deleted)
	return nil
}

// waitForJobs blocks until every given job reaches a terminal state.
func waitForJobs(p *pipeline.Pipeline, jobs []store.Job) {
	for {
		remaining := 0
		for _, job := range jobs {
			current, ok := p.Job(job.ID)
			if ok && !current.Status.Terminal() {
				remaining++
			}
		}
		if remaining == 0 {
			return
		}
		time.Sleep(terminalPollInterval)
	}
}
