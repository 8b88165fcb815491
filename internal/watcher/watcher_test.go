package watcher

import (
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// collector records debounced callback invocations.
type collector struct {
	mu    sync.Mutex
	paths []string
}

func (c *collector) record(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paths = append(c.paths, path)
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.paths)
}

func (c *collector) countFor(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, p := range c.paths {
		if p == path {
			n++
		}
	}
	return n
}

func quietLogger() *log.Logger {
	return log.New(os.Stderr, "[watcher-test] ", log.LstdFlags)
}

func TestStartStop(t *testing.T) {
	w := New(".md", 50*time.Millisecond, quietLogger())
	if w.IsRunning() {
		t.Error("new watcher should not be running")
	}

	if err := w.Start([]string{t.TempDir()}, func(string) {}); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if !w.IsRunning() {
		t.Error("watcher should be running after Start")
	}

	// Starting again is a no-op, not an error.
	if err := w.Start([]string{t.TempDir()}, func(string) {}); err != nil {
		t.Errorf("second Start() failed: %v", err)
	}

	if err := w.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if w.IsRunning() {
		t.Error("watcher should not be running after Stop")
	}

	// Stopping again is a no-op.
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop() failed: %v", err)
	}
}

func TestStartRequiresCallback(t *testing.T) {
	w := New(".md", 50*time.Millisecond, quietLogger())
	if err := w.Start([]string{t.TempDir()}, nil); err == nil {
		t.Fatal("Start() with nil callback should fail")
	}
}

func TestBurstCoalescesToOneCallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.md")

	var c collector
	w := New(".md", 100*time.Millisecond, quietLogger())
	if err := w.Start([]string{dir}, c.record); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer w.Stop()

	// A burst of writes inside the quiet period must yield one callback.
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte("tick\n"), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	time.Sleep(400 * time.Millisecond)
	if got := c.countFor(path); got != 1 {
		t.Errorf("burst produced %d callbacks, want 1", got)
	}
}

func TestSpacedWritesFireSeparately(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.md")

	var c collector
	w := New(".md", 50*time.Millisecond, quietLogger())
	if err := w.Start([]string{dir}, c.record); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("one\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	time.Sleep(300 * time.Millisecond)
	if err := os.WriteFile(path, []byte("two\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	time.Sleep(300 * time.Millisecond)

	if got := c.countFor(path); got != 2 {
		t.Errorf("spaced writes produced %d callbacks, want 2", got)
	}
}

func TestExtensionFilter(t *testing.T) {
	dir := t.TempDir()

	var c collector
	w := New(".md", 50*time.Millisecond, quietLogger())
	if err := w.Start([]string{dir}, c.record); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "note.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "note.md~"), []byte("x"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	time.Sleep(300 * time.Millisecond)
	if got := c.count(); got != 0 {
		t.Errorf("non-tracked files produced %d callbacks, want 0: %v", got, c.paths)
	}
}

func TestSubdirectoriesWatched(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "deep")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	var c collector
	w := New(".md", 50*time.Millisecond, quietLogger())
	if err := w.Start([]string{dir}, c.record); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer w.Stop()

	path := filepath.Join(sub, "nested.md")
	if err := os.WriteFile(path, []byte("hi\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	time.Sleep(300 * time.Millisecond)
	if got := c.countFor(path); got != 1 {
		t.Errorf("nested write produced %d callbacks, want 1", got)
	}
}

func TestNewDirectoryPickedUp(t *testing.T) {
	dir := t.TempDir()

	var c collector
	w := New(".md", 50*time.Millisecond, quietLogger())
	if err := w.Start([]string{dir}, c.record); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer w.Stop()

	sub := filepath.Join(dir, "created-later")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	// Give the event loop a beat to add the new directory to the watch.
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(sub, "late.md")
	if err := os.WriteFile(path, []byte("hi\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	time.Sleep(300 * time.Millisecond)
	if got := c.countFor(path); got != 1 {
		t.Errorf("write in new directory produced %d callbacks, want 1", got)
	}
}

func TestStaleTimerLosesRestartRace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.md")

	var c collector
	w := New(".md", time.Hour, quietLogger())
	if err := w.Start([]string{dir}, c.record); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer w.Stop()

	// Register the live timer for the path.
	w.restartTimer(path)

	// A previous timer for the same path that expired just as it was
	// being replaced reaches fire after losing the race. It must neither
	// invoke the callback nor unregister the live timer.
	stale := time.NewTimer(time.Hour)
	stale.Stop()
	w.fire(path, stale)

	if got := c.count(); got != 0 {
		t.Errorf("stale timer invoked the callback %d time(s)", got)
	}
	w.mu.Lock()
	_, registered := w.timers[path]
	w.mu.Unlock()
	if !registered {
		t.Error("stale timer unregistered the live timer")
	}
}

func TestStopCancelsPendingTimers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.md")

	var c collector
	w := New(".md", 200*time.Millisecond, quietLogger())
	if err := w.Start([]string{dir}, c.record); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	// Stop before the quiet period elapses; the pending timer must not fire.
	time.Sleep(50 * time.Millisecond)
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}

	time.Sleep(400 * time.Millisecond)
	if got := c.count(); got != 0 {
		t.Errorf("stopped watcher fired %d callbacks, want 0", got)
	}
}
