// Package syncer implements the bidirectional sync engine between note
// files on disk and the entity store.
package syncer

import (
	"context"

	"github.com/tracknote/tracknote/internal/ledger"
	"github.com/tracknote/tracknote/internal/store"
)

// ConflictPolicy decides what Pull does when both the file and the store
// changed independently since the last reconciliation.
type ConflictPolicy string

const (
	// PolicyPrompt surfaces the conflict to the caller without mutating
	// the store. The ledger row is left in conflict status. Default.
	PolicyPrompt ConflictPolicy = "prompt"
	// PolicyFileWins proceeds with the pull anyway.
	PolicyFileWins ConflictPolicy = "file_wins"
	// PolicyDBWins aborts the pull silently.
	PolicyDBWins ConflictPolicy = "db_wins"
)

// Outcome tags the result of a Pull. Callers switch on this rather than
// inspecting errors: a conflict is a distinguished outcome, not a failure.
type Outcome string

const (
	// OutcomeSynced means the file was reconciled into the store (or was
	// already up to date).
	OutcomeSynced Outcome = "synced"
	// OutcomeConflict means both sides diverged and the policy deferred
	// to the caller. The store was not mutated.
	OutcomeConflict Outcome = "conflict"
	// OutcomeSkipped means the db_wins policy suppressed the pull.
	OutcomeSkipped Outcome = "skipped"
)

// PullResult is the tagged result of a Pull operation.
type PullResult struct {
	Outcome Outcome
	// Project is the linked entity, when one could be resolved. Nil for
	// a conflict on a file that was never linked.
	Project *store.Project
}

// FileError pairs a file path with the message of its sync failure.
type FileError struct {
	Path    string
	Message string
}

// ScanStats aggregates the results of a full scan. A scan never aborts
// early; per-file failures land in Errors.
type ScanStats struct {
	Scanned   int
	Synced    int
	Conflicts int
	Skipped   int
	Errored   int
	Errors    []FileError
}

// Syncer is the engine's exposed surface. The daemon drives Pull through
// watcher callbacks; an API layer calls Push after mutating entities and
// ListConflicts/ResolveConflict to present 409-style resolution flows.
type Syncer interface {
	// Pull reconciles file state into the entity store.
	//
	// A returned error means an I/O, parse-fatal, or persistence failure;
	// it is also recorded on the file's ledger row. Conflicts are NOT
	// errors: they come back as OutcomeConflict with a nil error.
	Pull(ctx context.Context, path string) (*PullResult, error)

	// Push reconciles entity store state into the linked file, creating
	// it at a computed default path when the project has none. Prior file
	// content is preserved apart from marker-matched checkbox states.
	Push(ctx context.Context, projectID int64) error

	// ScanAndSync walks every watched root and applies Pull to each
	// matching file. Used for bootstrap and manual re-sync.
	ScanAndSync(ctx context.Context) (*ScanStats, error)

	// ListConflicts returns the ledger entries currently in conflict.
	ListConflicts(ctx context.Context) ([]*ledger.Entry, error)

	// ResolveConflict settles a conflicted file: useFile re-pulls with
	// file-wins semantics, otherwise the linked entity is pushed back to
	// the file.
	ResolveConflict(ctx context.Context, path string, useFile bool) error
}
