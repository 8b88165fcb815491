// Package daemon wires the file watcher to the sync engine.
//
// The daemon:
//  1. Performs an initial full scan so the store matches the tree
//  2. Watches the roots for note file changes
//  3. Pulls each settled path through the engine
//  4. Handles graceful shutdown
//
// Pull failures are recorded on the ledger and logged; they never stop
// the loop. Conflicts are logged distinctly and left for the resolve
// flow.
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tracknote/tracknote/internal/syncer"
	"github.com/tracknote/tracknote/internal/watcher"
)

// Config holds daemon configuration.
type Config struct {
	// Debounce is the watcher quiet period.
	Debounce time.Duration

	// LogFile, when set, routes daemon logging to a rotated file instead
	// of stderr.
	LogFile string

	// Logger overrides the log sink entirely; LogFile is ignored when
	// set. Mainly for tests.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Debounce: watcher.DefaultQuietPeriod,
	}
}

// Daemon runs the watch-and-sync loop.
type Daemon struct {
	engine *syncer.Engine
	watch  *watcher.Watcher
	config *Config
	logger *log.Logger
}

// New creates a Daemon over an engine. The engine's roots and extension
// determine what is watched.
func New(engine *syncer.Engine, config *Config) (*Daemon, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}

	logger := config.Logger
	if logger == nil {
		out := os.Stderr
		if config.LogFile != "" {
			logger = log.New(&lumberjack.Logger{
				Filename:   config.LogFile,
				MaxSize:    10, // megabytes
				MaxBackups: 3,
				MaxAge:     28, // days
			}, "[daemon] ", log.LstdFlags)
		} else {
			logger = log.New(out, "[daemon] ", log.LstdFlags)
		}
	}

	return &Daemon{
		engine: engine,
		watch:  watcher.New(engine.Extension(), config.Debounce, logger),
		config: config,
		logger: logger,
	}, nil
}

// Start performs the bootstrap scan, then watches until ctx is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	d.logger.Println("starting daemon")

	stats, err := d.engine.ScanAndSync(ctx)
	if err != nil {
		return fmt.Errorf("initial scan failed: %w", err)
	}
	d.logger.Printf("initial scan: scanned=%d synced=%d conflicts=%d errored=%d",
		stats.Scanned, stats.Synced, stats.Conflicts, stats.Errored)

	if err := d.watch.Start(d.engine.Roots(), func(path string) {
		d.onChange(ctx, path)
	}); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	d.logger.Printf("watching %v", d.engine.Roots())

	<-ctx.Done()
	return d.Stop()
}

// Stop stops the watcher and cancels pending debounce timers. Idempotent.
func (d *Daemon) Stop() error {
	d.logger.Println("stopping daemon")
	if err := d.watch.Stop(); err != nil {
		return fmt.Errorf("failed to stop watcher: %w", err)
	}
	d.logger.Println("daemon stopped")
	return nil
}

// onChange runs one pull for a settled path. Errors and conflicts are
// logged; the loop keeps processing other paths either way.
func (d *Daemon) onChange(ctx context.Context, path string) {
	result, err := d.engine.Pull(ctx, path)
	if err != nil {
		d.logger.Printf("sync failed for %s: %v", path, err)
		return
	}
	switch result.Outcome {
	case syncer.OutcomeConflict:
		d.logger.Printf("conflict on %s: needs resolution", path)
	case syncer.OutcomeSkipped:
		d.logger.Printf("skipped %s (db_wins)", path)
	default:
		d.logger.Printf("synced %s", path)
	}
}
