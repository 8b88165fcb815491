// Package watcher provides debounced file system watching for note files.
//
// The watcher subscribes to fsnotify events for one or more directory
// roots (recursively) and invokes a callback with a file path once
// activity on that path has settled. Each distinct path gets its own
// timer; every new event for the path restarts it, and the callback fires
// only after a quiet period with no further events. This coalesces editor
// save bursts into one downstream sync call per logical edit.
//
// The watcher holds no domain knowledge; it is purely a debounced event
// source.
package watcher

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultQuietPeriod is the debounce window used when none is configured.
const DefaultQuietPeriod = time.Second

// Callback is invoked with a file path after its events have settled.
type Callback func(path string)

// Watcher watches directory roots for note file changes.
type Watcher struct {
	extension string
	quiet     time.Duration
	logger    *log.Logger

	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	timers   map[string]*time.Timer
	callback Callback
	running  bool
	done     chan struct{}
	wg       sync.WaitGroup
}

// New creates a Watcher for files with the given extension (e.g. ".md").
// quiet <= 0 selects DefaultQuietPeriod. If logger is nil, a default
// logger writing to stderr is used.
func New(extension string, quiet time.Duration, logger *log.Logger) *Watcher {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[watcher] ", log.LstdFlags)
	}
	return &Watcher{
		extension: extension,
		quiet:     quiet,
		logger:    logger,
		timers:    make(map[string]*time.Timer),
	}
}

// Start begins watching the given roots and their subdirectories.
// Calling Start on a running watcher is a no-op.
func (w *Watcher) Start(roots []string, callback Callback) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}
	if callback == nil {
		return fmt.Errorf("watcher callback cannot be nil")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	for _, root := range roots {
		if err := addRecursive(fsw, root); err != nil {
			_ = fsw.Close()
			return err
		}
	}

	w.fsw = fsw
	w.callback = callback
	w.done = make(chan struct{})
	w.running = true

	w.wg.Add(1)
	go w.processEvents()

	return nil
}

// Stop stops watching and cancels all pending debounce timers without
// invoking their callbacks. Calling Stop on a stopped watcher is a no-op.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	close(w.done)

	for path, timer := range w.timers {
		timer.Stop()
		delete(w.timers, path)
	}

	fsw := w.fsw
	w.fsw = nil
	w.mu.Unlock()

	if err := fsw.Close(); err != nil {
		return fmt.Errorf("failed to close fsnotify watcher: %w", err)
	}

	w.wg.Wait()
	return nil
}

// IsRunning returns true if the watcher is currently running.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// processEvents is the event loop translating raw fsnotify events into
// debounced per-path timers.
func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fswEvents():
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fswErrors():
			if !ok {
				return
			}
			w.logger.Printf("fsnotify error: %v", err)
		}
	}
}

func (w *Watcher) fswEvents() <-chan fsnotify.Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fsw == nil {
		return nil
	}
	return w.fsw.Events
}

func (w *Watcher) fswErrors() <-chan error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fsw == nil {
		return nil
	}
	return w.fsw.Errors
}

// handleEvent filters an event and restarts the debounce timer for its
// path. Only create and write events for files with the tracked
// extension are considered; new directories are added to the watch.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.mu.Lock()
			if w.running {
				if err := w.fsw.Add(event.Name); err != nil {
					w.logger.Printf("failed to watch new directory %s: %v", event.Name, err)
				}
			}
			w.mu.Unlock()
			return
		}
	}

	if filepath.Ext(event.Name) != w.extension {
		return
	}

	w.restartTimer(event.Name)
}

// restartTimer arms (or re-arms) the per-path debounce timer. The timer
// never fires twice concurrently for the same path: the previous timer is
// stopped before a new one is created.
func (w *Watcher) restartTimer(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	if timer, ok := w.timers[path]; ok {
		timer.Stop()
	}

	// The closure captures its own timer so fire can tell a live timer
	// from one that expired just as it was being replaced. w.mu is held
	// until t is assigned, so fire always sees the final value.
	var t *time.Timer
	t = time.AfterFunc(w.quiet, func() { w.fire(path, t) })
	w.timers[path] = t
}

// fire runs when a debounce timer expires. A timer that is no longer the
// registered one for its path already expired when a newer event
// re-armed the path; it must not invoke the callback or unregister its
// replacement.
func (w *Watcher) fire(path string, t *time.Timer) {
	w.mu.Lock()
	if !w.running || w.timers[path] != t {
		w.mu.Unlock()
		return
	}
	delete(w.timers, path)
	cb := w.callback
	w.mu.Unlock()

	cb(path)
}

// addRecursive adds root and every subdirectory beneath it to the
// fsnotify watch set.
func addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("failed to walk %s: %w", path, err)
		}
		if !d.IsDir() {
			return nil
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch directory %s: %w", path, err)
		}
		return nil
	})
}
