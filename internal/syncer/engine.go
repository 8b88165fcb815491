package syncer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tracknote/tracknote/internal/ledger"
	"github.com/tracknote/tracknote/internal/marker"
	"github.com/tracknote/tracknote/internal/notefile"
	"github.com/tracknote/tracknote/internal/store"
)

// entityType is the ledger link type for tracked projects.
const entityType = "project"

// Config holds engine configuration.
type Config struct {
	// Roots are the watched directory trees. Defaults to ["."].
	Roots []string
	// Extension is the tracked file extension. Defaults to ".md".
	Extension string
	// Policy is the conflict policy. Defaults to PolicyPrompt.
	Policy ConflictPolicy
	// CompletedLimit caps the Completed section of generated bodies.
	CompletedLimit int
	// Logger for engine activity. Defaults to stderr.
	Logger *log.Logger
}

// Engine implements Syncer against an EntityStore and a Ledger.
type Engine struct {
	store  store.EntityStore
	ledger *ledger.Ledger
	cfg    Config
	logger *log.Logger

	// Per-path locks make each reconciliation a single read-modify-write
	// unit. Different paths reconcile concurrently; the same path never
	// interleaves.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates an Engine. The ledger and store must share a database whose
// schema is already initialized.
func New(st store.EntityStore, led *ledger.Ledger, cfg Config) *Engine {
	if len(cfg.Roots) == 0 {
		cfg.Roots = []string{"."}
	}
	if cfg.Extension == "" {
		cfg.Extension = ".md"
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyPrompt
	}
	if cfg.CompletedLimit <= 0 {
		cfg.CompletedLimit = notefile.DefaultCompletedLimit
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[syncer] ", log.LstdFlags)
	}
	return &Engine{
		store:  st,
		ledger: led,
		cfg:    cfg,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

// Roots returns the watched directory roots.
func (e *Engine) Roots() []string {
	return e.cfg.Roots
}

// Extension returns the tracked file extension.
func (e *Engine) Extension() string {
	return e.cfg.Extension
}

// Pull implements Syncer.Pull using the configured conflict policy.
func (e *Engine) Pull(ctx context.Context, path string) (*PullResult, error) {
	return e.pull(ctx, path, e.cfg.Policy)
}

func (e *Engine) pull(ctx context.Context, path string, policy ConflictPolicy) (*PullResult, error) {
	// Ledger rows, path lookups, and per-path locks all key on one
	// canonical spelling; two spellings of one file must not become two
	// entities.
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	unlock := e.lockPath(path)
	defer unlock()

	entry, err := e.ledger.GetOrCreate(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger entry: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		e.recordError(ctx, path, fmt.Sprintf("read failed: %v", err))
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	hash := notefile.Hash(data)
	doc := notefile.Parse(data)

	project, err := e.resolveProject(ctx, entry, doc, path)
	if err != nil {
		e.recordError(ctx, path, fmt.Sprintf("entity lookup failed: %v", err))
		return nil, err
	}

	// Already reconciled and unchanged on disk: a true no-op.
	if entry.Status == ledger.StatusSynced && entry.ContentHash == hash {
		return &PullResult{Outcome: OutcomeSynced, Project: project}, nil
	}

	// Both sides diverged since the last reconciliation: the file bytes
	// moved away from the recorded hash AND the entity was updated after
	// the last sync.
	if project != nil && entry.LastSyncedAt != nil && entry.ContentHash != "" &&
		hash != entry.ContentHash && project.UpdatedAt.After(*entry.LastSyncedAt) {
		switch policy {
		case PolicyFileWins:
			// Proceed with the pull.
		case PolicyDBWins:
			e.logger.Printf("conflict on %s suppressed (db_wins)", path)
			return &PullResult{Outcome: OutcomeSkipped, Project: project}, nil
		default:
			if err := e.ledger.MarkConflict(ctx, path); err != nil {
				return nil, err
			}
			e.logger.Printf("conflict detected on %s", path)
			return &PullResult{Outcome: OutcomeConflict, Project: project}, nil
		}
	}

	// One instant stamps the entity, its tasks, and the ledger row so the
	// pull itself never reads as a later independent database edit.
	now := time.Now().UTC()

	if project == nil {
		project = e.projectFromDoc(doc, path, now)
		if err := e.store.CreateProject(ctx, project); err != nil {
			e.recordError(ctx, path, fmt.Sprintf("create project failed: %v", err))
			return nil, fmt.Errorf("failed to create project for %s: %w", path, err)
		}
	} else {
		applyMetadata(project, doc, path, now)
		if err := e.store.UpdateProject(ctx, project); err != nil {
			e.recordError(ctx, path, fmt.Sprintf("update project failed: %v", err))
			return nil, fmt.Errorf("failed to update project %d: %w", project.ID, err)
		}
	}

	if err := e.reconcileTasks(ctx, project, doc, now); err != nil {
		e.recordError(ctx, path, fmt.Sprintf("task reconcile failed: %v", err))
		return nil, err
	}

	if err := e.markSynced(ctx, entry, path, hash, project.ID, now); err != nil {
		return nil, err
	}

	e.logger.Printf("pulled %s -> project %d (%d tasks in file)", path, project.ID, len(doc.Tasks))
	return &PullResult{Outcome: OutcomeSynced, Project: project}, nil
}

// Push implements Syncer.Push.
func (e *Engine) Push(ctx context.Context, projectID int64) error {
	project, err := e.store.GetProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to load project %d: %w", projectID, err)
	}

	tasks, err := e.store.ListTasks(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to load tasks for project %d: %w", projectID, err)
	}

	path, err := filepath.Abs(e.targetPath(project))
	if err != nil {
		return fmt.Errorf("failed to resolve target path for project %d: %w", projectID, err)
	}
	unlock := e.lockPath(path)
	defer unlock()

	prior, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		e.recordError(ctx, path, fmt.Sprintf("read failed: %v", err))
		return fmt.Errorf("failed to read prior content of %s: %w", path, err)
	}

	now := time.Now().UTC()
	out := notefile.Render(project, tasks, prior, notefile.RenderOptions{
		PreserveBody:   len(prior) > 0,
		CompletedLimit: e.cfg.CompletedLimit,
		Now:            now,
	})

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		e.recordError(ctx, path, fmt.Sprintf("mkdir failed: %v", err))
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		e.recordError(ctx, path, fmt.Sprintf("write failed: %v", err))
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	// Link the project to its file on first push. UpdatedAt is stamped
	// with the sync instant so the path change doesn't read as a newer
	// independent edit.
	if project.FilePath == nil || *project.FilePath != path {
		project.FilePath = &path
		project.UpdatedAt = now
		if err := e.store.UpdateProject(ctx, project); err != nil {
			e.recordError(ctx, path, fmt.Sprintf("link project failed: %v", err))
			return fmt.Errorf("failed to link project %d to %s: %w", projectID, path, err)
		}
	}

	entry, err := e.ledger.GetOrCreate(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to load ledger entry: %w", err)
	}
	if err := e.markSynced(ctx, entry, path, notefile.Hash(out), projectID, now); err != nil {
		return err
	}

	e.logger.Printf("pushed project %d -> %s", projectID, path)
	return nil
}

// ScanAndSync implements Syncer.ScanAndSync. It never aborts early on a
// single file's failure.
func (e *Engine) ScanAndSync(ctx context.Context) (*ScanStats, error) {
	stats := &ScanStats{}

	for _, root := range e.cfg.Roots {
		if _, err := os.Stat(root); os.IsNotExist(err) {
			e.logger.Printf("root doesn't exist: %s (skipping)", root)
			continue
		}

		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				stats.Errored++
				stats.Errors = append(stats.Errors, FileError{Path: path, Message: err.Error()})
				return nil
			}
			if d.IsDir() || filepath.Ext(path) != e.cfg.Extension {
				return nil
			}

			stats.Scanned++
			result, err := e.Pull(ctx, path)
			if err != nil {
				stats.Errored++
				stats.Errors = append(stats.Errors, FileError{Path: path, Message: err.Error()})
				return nil
			}
			switch result.Outcome {
			case OutcomeConflict:
				stats.Conflicts++
			case OutcomeSkipped:
				stats.Skipped++
			default:
				stats.Synced++
			}
			return nil
		})
		if err != nil {
			return stats, fmt.Errorf("failed to walk %s: %w", root, err)
		}
	}

	e.logger.Printf("scan complete: scanned=%d synced=%d conflicts=%d skipped=%d errored=%d",
		stats.Scanned, stats.Synced, stats.Conflicts, stats.Skipped, stats.Errored)
	return stats, nil
}

// ListConflicts implements Syncer.ListConflicts.
func (e *Engine) ListConflicts(ctx context.Context) ([]*ledger.Entry, error) {
	return e.ledger.ListByStatus(ctx, ledger.StatusConflict)
}

// ResolveConflict implements Syncer.ResolveConflict.
func (e *Engine) ResolveConflict(ctx context.Context, path string, useFile bool) error {
	path, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	entry, err := e.ledger.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to load ledger entry for %s: %w", path, err)
	}
	if entry.Status != ledger.StatusConflict {
		return fmt.Errorf("no conflict recorded for %s (status %s)", path, entry.Status)
	}

	if useFile {
		result, err := e.pull(ctx, path, PolicyFileWins)
		if err != nil {
			return err
		}
		if result.Outcome != OutcomeSynced {
			return fmt.Errorf("resolving %s did not sync (outcome %s)", path, result.Outcome)
		}
		return nil
	}

	if entry.EntityID == nil {
		return fmt.Errorf("conflict on %s has no linked entity to push", path)
	}
	return e.Push(ctx, *entry.EntityID)
}

// resolveProject finds the entity a file represents: the ledger link
// first, then the id in the file's header, then a path lookup. A nil
// project (no error) means the file is not yet linked.
func (e *Engine) resolveProject(ctx context.Context, entry *ledger.Entry, doc *notefile.Document, path string) (*store.Project, error) {
	if entry.EntityID != nil {
		p, err := e.store.GetProject(ctx, *entry.EntityID)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		// A dangling link is not fatal; fall through to the other keys.
	}

	if doc.Meta.ID != nil {
		p, err := e.store.GetProject(ctx, *doc.Meta.ID)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	p, err := e.store.GetProjectByPath(ctx, path)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	return nil, nil
}

// projectFromDoc builds a new project from parsed file content.
func (e *Engine) projectFromDoc(doc *notefile.Document, path string, now time.Time) *store.Project {
	title := doc.Title()
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	p := &store.Project{
		Title:     title,
		Status:    store.ProjectActive,
		Priority:  2,
		FilePath:  &path,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyMetadata(p, doc, path, now)
	return p
}

// applyMetadata overlays the fields present in the file's header onto the
// project. Absent keys leave the store value untouched.
func applyMetadata(p *store.Project, doc *notefile.Document, path string, now time.Time) {
	if title := doc.Title(); title != "" {
		p.Title = title
	}
	if doc.Meta.Status != "" {
		p.Status = store.ProjectStatus(doc.Meta.Status)
	}
	if doc.Meta.Priority != nil {
		p.Priority = *doc.Meta.Priority
	}
	if doc.Meta.Score != nil {
		p.Score = *doc.Meta.Score
	}
	if doc.Meta.TargetDate != nil {
		p.TargetDate = doc.Meta.TargetDate
	}
	if doc.Meta.Phases != nil {
		p.Phases = doc.Meta.Phases
	}
	p.FilePath = &path
	p.UpdatedAt = now
}

// reconcileTasks applies the file's checkbox lines to the project's task
// set. Marker-matched lines update their rows; unmarked lines and lines
// with unknown markers become fresh tasks with new markers. Store-side
// tasks absent from the file are left untouched: absence is not a
// deletion signal.
func (e *Engine) reconcileTasks(ctx context.Context, project *store.Project, doc *notefile.Document, now time.Time) error {
	existing, err := e.store.ListTasks(ctx, project.ID)
	if err != nil {
		return fmt.Errorf("failed to list tasks for project %d: %w", project.ID, err)
	}

	byMarker := make(map[string]*store.Task, len(existing))
	taken := make(map[string]bool, len(existing))
	for _, t := range existing {
		byMarker[t.Marker] = t
		taken[t.Marker] = true
	}

	for _, line := range doc.Tasks {
		task, linked := byMarker[line.Marker]
		if line.Marker != "" && linked {
			applyTaskLine(task, line, now)
			if err := e.store.UpdateTask(ctx, task); err != nil {
				return fmt.Errorf("failed to update task %d: %w", task.ID, err)
			}
			continue
		}

		fresh := newTaskFromLine(project.ID, line, now)
		fresh.Marker = marker.NewUnique(taken)
		taken[fresh.Marker] = true
		if err := e.store.CreateTask(ctx, fresh); err != nil {
			return fmt.Errorf("failed to create task %q: %w", line.Title, err)
		}
	}

	return nil
}

// applyTaskLine maps a checkbox line onto an existing task. Checked wins
// over everything; unchecked preserves the stored status unless the
// subtype forces one.
func applyTaskLine(t *store.Task, line notefile.TaskLine, now time.Time) {
	t.Title = line.Title
	ln := line.Line
	t.LineNumber = &ln

	switch {
	case line.Checked:
		t.Status = store.TaskCompleted
	case line.Subtype == marker.SubtypeWaiting:
		t.Status = store.TaskWaiting
	}
	if line.Subtype == marker.SubtypeSomeday {
		t.Category = store.CategorySomeday
	}
	t.UpdatedAt = now
}

func newTaskFromLine(projectID int64, line notefile.TaskLine, now time.Time) *store.Task {
	ln := line.Line
	t := &store.Task{
		ProjectID:  projectID,
		Title:      line.Title,
		Status:     store.TaskInbox,
		Category:   store.CategoryAction,
		LineNumber: &ln,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	switch {
	case line.Checked:
		t.Status = store.TaskCompleted
	case line.Subtype == marker.SubtypeWaiting:
		t.Status = store.TaskWaiting
	}
	if line.Subtype == marker.SubtypeSomeday {
		t.Category = store.CategorySomeday
	}
	return t
}

// targetPath resolves where a project's file lives: the linked path, or a
// default computed from the title under the first root.
func (e *Engine) targetPath(p *store.Project) string {
	if p.FilePath != nil && *p.FilePath != "" {
		return *p.FilePath
	}
	return filepath.Join(e.cfg.Roots[0], slugify(p.Title)+e.cfg.Extension)
}

// markSynced records a successful reconciliation on the ledger.
func (e *Engine) markSynced(ctx context.Context, entry *ledger.Entry, path, hash string, projectID int64, now time.Time) error {
	entry.ContentHash = hash
	entry.LastSyncedAt = &now
	entry.Status = ledger.StatusSynced
	entry.ErrorMessage = ""
	entry.EntityType = entityType
	entry.EntityID = &projectID
	if info, err := os.Stat(path); err == nil {
		mtime := info.ModTime().UTC()
		entry.LastFileModifiedAt = &mtime
	}
	if err := e.ledger.Update(ctx, entry); err != nil {
		return fmt.Errorf("failed to update ledger for %s: %w", path, err)
	}
	return nil
}

// recordError marks the ledger row as errored; ledger failures here are
// logged rather than masking the original failure.
func (e *Engine) recordError(ctx context.Context, path, msg string) {
	if err := e.ledger.MarkError(ctx, path, msg); err != nil {
		e.logger.Printf("failed to record error for %s: %v", path, err)
	}
}

func (e *Engine) lockPath(path string) func() {
	e.mu.Lock()
	l, ok := e.locks[path]
	if !ok {
		l = &sync.Mutex{}
		e.locks[path] = l
	}
	e.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// slugify turns a title into a filesystem-friendly file name.
func slugify(title string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	s := strings.TrimSuffix(b.String(), "-")
	if s == "" {
		return "untitled"
	}
	return s
}
