// Package ledger persists per-file sync status.
//
// One row exists per tracked file path, created the first time a path is
// seen by the watcher or an explicit sync request. A row records when the
// file was last reconciled, the content hash as of that reconciliation,
// the current sync status, and the entity the file represents. Rows are
// never deleted automatically.
//
// Only the sync engine writes to the ledger; every other component reads.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when no ledger row exists for a path.
var ErrNotFound = errors.New("ledger: entry not found")

// Status is the sync state of a tracked file.
type Status string

const (
	// StatusPending marks a file seen but never successfully reconciled.
	StatusPending Status = "pending"
	// StatusSynced marks a file whose last reconciliation succeeded.
	StatusSynced Status = "synced"
	// StatusConflict marks a file where both sides changed since the
	// last reconciliation and the policy deferred to the caller.
	StatusConflict Status = "conflict"
	// StatusError marks a file whose last reconciliation failed.
	StatusError Status = "error"
)

const timeFormat = time.RFC3339Nano

// Entry is one ledger row.
type Entry struct {
	FilePath           string
	LastSyncedAt       *time.Time
	LastFileModifiedAt *time.Time
	ContentHash        string
	Status             Status
	ErrorMessage       string
	EntityType         string
	EntityID           *int64
}

// Ledger provides access to the sync_ledger table.
type Ledger struct {
	conn *sql.DB
}

// New creates a Ledger over an open database connection.
// The schema must already be initialized (db.InitSchema).
func New(conn *sql.DB) *Ledger {
	return &Ledger{conn: conn}
}

// Get returns the entry for path, or ErrNotFound.
func (l *Ledger) Get(ctx context.Context, path string) (*Entry, error) {
	row := l.conn.QueryRowContext(ctx, `
		SELECT file_path, last_synced_at, last_file_modified_at, content_hash,
		       status, error_message, entity_type, entity_id
		FROM sync_ledger WHERE file_path = ?`, path)
	return scanEntry(row)
}

// GetOrCreate returns the entry for path, creating a pending row if none
// exists yet.
func (l *Ledger) GetOrCreate(ctx context.Context, path string) (*Entry, error) {
	entry, err := l.Get(ctx, path)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	// INSERT OR IGNORE so two concurrent first touches of the same path
	// cannot race into a duplicate-key error.
	_, err = l.conn.ExecContext(ctx, `
		INSERT OR IGNORE INTO sync_ledger (file_path, status) VALUES (?, ?)`,
		path, string(StatusPending))
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger entry for %s: %w", path, err)
	}

	return l.Get(ctx, path)
}

// Update persists all fields of the entry.
func (l *Ledger) Update(ctx context.Context, e *Entry) error {
	res, err := l.conn.ExecContext(ctx, `
		UPDATE sync_ledger
		SET last_synced_at = ?, last_file_modified_at = ?, content_hash = ?,
		    status = ?, error_message = ?, entity_type = ?, entity_id = ?
		WHERE file_path = ?`,
		formatTime(e.LastSyncedAt), formatTime(e.LastFileModifiedAt),
		nullIfEmpty(e.ContentHash), string(e.Status), nullIfEmpty(e.ErrorMessage),
		nullIfEmpty(e.EntityType), nullInt64(e.EntityID), e.FilePath)
	if err != nil {
		return fmt.Errorf("failed to update ledger entry for %s: %w", e.FilePath, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check ledger update for %s: %w", e.FilePath, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkError sets status=error and records the message, creating the row
// if needed. Hash and timestamps are left as they were so a later retry
// still sees the last good state.
func (l *Ledger) MarkError(ctx context.Context, path, msg string) error {
	if _, err := l.GetOrCreate(ctx, path); err != nil {
		return err
	}
	_, err := l.conn.ExecContext(ctx, `
		UPDATE sync_ledger SET status = ?, error_message = ? WHERE file_path = ?`,
		string(StatusError), msg, path)
	if err != nil {
		return fmt.Errorf("failed to mark error for %s: %w", path, err)
	}
	return nil
}

// MarkConflict sets status=conflict, creating the row if needed.
func (l *Ledger) MarkConflict(ctx context.Context, path string) error {
	if _, err := l.GetOrCreate(ctx, path); err != nil {
		return err
	}
	_, err := l.conn.ExecContext(ctx, `
		UPDATE sync_ledger SET status = ?, error_message = NULL WHERE file_path = ?`,
		string(StatusConflict), path)
	if err != nil {
		return fmt.Errorf("failed to mark conflict for %s: %w", path, err)
	}
	return nil
}

// ListByStatus returns all entries with the given status, ordered by path.
func (l *Ledger) ListByStatus(ctx context.Context, status Status) ([]*Entry, error) {
	rows, err := l.conn.QueryContext(ctx, `
		SELECT file_path, last_synced_at, last_file_modified_at, content_hash,
		       status, error_message, entity_type, entity_id
		FROM sync_ledger WHERE status = ? ORDER BY file_path`, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger by status %s: %w", status, err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger entries: %w", err)
	}
	return entries, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		e            Entry
		lastSynced   sql.NullString
		lastModified sql.NullString
		hash         sql.NullString
		status       string
		errMsg       sql.NullString
		entityType   sql.NullString
		entityID     sql.NullInt64
	)
	err := row.Scan(&e.FilePath, &lastSynced, &lastModified, &hash,
		&status, &errMsg, &entityType, &entityID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
	}

	e.Status = Status(status)
	e.ContentHash = hash.String
	e.ErrorMessage = errMsg.String
	e.EntityType = entityType.String
	if entityID.Valid {
		e.EntityID = &entityID.Int64
	}
	if e.LastSyncedAt, err = parseTime(lastSynced); err != nil {
		return nil, fmt.Errorf("failed to parse last_synced_at: %w", err)
	}
	if e.LastFileModifiedAt, err = parseTime(lastModified); err != nil {
		return nil, fmt.Errorf("failed to parse last_file_modified_at: %w", err)
	}
	return &e, nil
}

func formatTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(timeFormat), Valid: true}
}

func parseTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(timeFormat, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt64(n *int64) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *n, Valid: true}
}
