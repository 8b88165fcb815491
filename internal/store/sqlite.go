package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// timeFormat is how timestamps are persisted. RFC 3339 with nanoseconds
// sorts lexically and round-trips through TEXT columns.
const timeFormat = time.RFC3339Nano

// dateFormat is how target dates are persisted (no time component).
const dateFormat = "2006-01-02"

// SQLiteStore is the SQLite-backed EntityStore implementation.
type SQLiteStore struct {
	conn *sql.DB
}

// NewSQLiteStore creates a store over an open database connection.
// The schema must already be initialized (db.InitSchema).
func NewSQLiteStore(conn *sql.DB) *SQLiteStore {
	return &SQLiteStore{conn: conn}
}

// GetProject returns the project with the given id, or ErrNotFound.
func (s *SQLiteStore) GetProject(ctx context.Context, id int64) (*Project, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, title, description, status, priority, score,
		       target_date, file_path, phases, created_at, updated_at
		FROM projects WHERE id = ?`, id)
	return scanProject(row)
}

// GetProjectByPath returns the project linked to the given file path,
// or ErrNotFound.
func (s *SQLiteStore) GetProjectByPath(ctx context.Context, path string) (*Project, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, title, description, status, priority, score,
		       target_date, file_path, phases, created_at, updated_at
		FROM projects WHERE file_path = ?`, path)
	return scanProject(row)
}

// CreateProject inserts a new project and sets p.ID.
// CreatedAt/UpdatedAt are set to now unless already populated.
func (s *SQLiteStore) CreateProject(ctx context.Context, p *Project) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}
	if p.Status == "" {
		p.Status = ProjectActive
	}
	if p.Priority == 0 {
		p.Priority = 2
	}

	phases, err := marshalPhases(p.Phases)
	if err != nil {
		return err
	}

	res, err := s.conn.ExecContext(ctx, `
		INSERT INTO projects (title, description, status, priority, score,
		                      target_date, file_path, phases, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Title, p.Description, string(p.Status), p.Priority, p.Score,
		formatDate(p.TargetDate), nullString(p.FilePath), phases,
		p.CreatedAt.Format(timeFormat), p.UpdatedAt.Format(timeFormat))
	if err != nil {
		return fmt.Errorf("failed to insert project: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get project id: %w", err)
	}
	p.ID = id
	return nil
}

// UpdateProject persists all mutable project fields.
// UpdatedAt is bumped to now unless the caller set it.
func (s *SQLiteStore) UpdateProject(ctx context.Context, p *Project) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}

	phases, err := marshalPhases(p.Phases)
	if err != nil {
		return err
	}

	res, err := s.conn.ExecContext(ctx, `
		UPDATE projects
		SET title = ?, description = ?, status = ?, priority = ?, score = ?,
		    target_date = ?, file_path = ?, phases = ?, updated_at = ?
		WHERE id = ?`,
		p.Title, p.Description, string(p.Status), p.Priority, p.Score,
		formatDate(p.TargetDate), nullString(p.FilePath), phases,
		p.UpdatedAt.Format(timeFormat), p.ID)
	if err != nil {
		return fmt.Errorf("failed to update project %d: %w", p.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update of project %d: %w", p.ID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListTasks returns the project's tasks ordered by line number, then id.
// Tasks without a line number (never written to a file) sort last.
func (s *SQLiteStore) ListTasks(ctx context.Context, projectID int64) ([]*Task, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, project_id, title, status, category, is_next_action,
		       marker, line_number, created_at, updated_at
		FROM tasks WHERE project_id = ?
		ORDER BY line_number IS NULL, line_number, id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks for project %d: %w", projectID, err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}
	return tasks, nil
}

// GetTaskByMarker returns the project's task carrying the given marker,
// or ErrNotFound.
func (s *SQLiteStore) GetTaskByMarker(ctx context.Context, projectID int64, mark string) (*Task, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, project_id, title, status, category, is_next_action,
		       marker, line_number, created_at, updated_at
		FROM tasks WHERE project_id = ? AND marker = ?`, projectID, mark)
	return scanTask(row)
}

// CreateTask inserts a new task and sets t.ID. The marker must already be
// assigned and unique within the project.
func (s *SQLiteStore) CreateTask(ctx context.Context, t *Task) error {
	if t.Marker == "" {
		return fmt.Errorf("task %q has no marker", t.Title)
	}

	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = now
	}
	if t.Status == "" {
		t.Status = TaskInbox
	}
	if t.Category == "" {
		t.Category = CategoryAction
	}

	res, err := s.conn.ExecContext(ctx, `
		INSERT INTO tasks (project_id, title, status, category, is_next_action,
		                   marker, line_number, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ProjectID, t.Title, string(t.Status), string(t.Category),
		boolToInt(t.IsNextAction), t.Marker, nullInt(t.LineNumber),
		t.CreatedAt.Format(timeFormat), t.UpdatedAt.Format(timeFormat))
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get task id: %w", err)
	}
	t.ID = id
	return nil
}

// UpdateTask persists all mutable task fields. The marker is intentionally
// not updatable; it is fixed for the task's lifetime.
func (s *SQLiteStore) UpdateTask(ctx context.Context, t *Task) error {
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = time.Now().UTC()
	}

	res, err := s.conn.ExecContext(ctx, `
		UPDATE tasks
		SET title = ?, status = ?, category = ?, is_next_action = ?,
		    line_number = ?, updated_at = ?
		WHERE id = ?`,
		t.Title, string(t.Status), string(t.Category), boolToInt(t.IsNextAction),
		nullInt(t.LineNumber), t.UpdatedAt.Format(timeFormat), t.ID)
	if err != nil {
		return fmt.Errorf("failed to update task %d: %w", t.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update of task %d: %w", t.ID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (*Project, error) {
	var (
		p          Project
		status     string
		targetDate sql.NullString
		filePath   sql.NullString
		phases     sql.NullString
		createdAt  string
		updatedAt  string
	)
	err := row.Scan(&p.ID, &p.Title, &p.Description, &status, &p.Priority,
		&p.Score, &targetDate, &filePath, &phases, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan project: %w", err)
	}

	p.Status = ProjectStatus(status)
	if targetDate.Valid && targetDate.String != "" {
		d, err := time.Parse(dateFormat, targetDate.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse target date %q: %w", targetDate.String, err)
		}
		p.TargetDate = &d
	}
	if filePath.Valid {
		p.FilePath = &filePath.String
	}
	if phases.Valid && phases.String != "" {
		if err := json.Unmarshal([]byte(phases.String), &p.Phases); err != nil {
			return nil, fmt.Errorf("failed to parse phases: %w", err)
		}
	}
	if p.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if p.UpdatedAt, err = time.Parse(timeFormat, updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return &p, nil
}

func scanTask(row scanner) (*Task, error) {
	var (
		t          Task
		status     string
		category   string
		isNext     int
		lineNumber sql.NullInt64
		createdAt  string
		updatedAt  string
	)
	err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &status, &category,
		&isNext, &t.Marker, &lineNumber, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan task: %w", err)
	}

	t.Status = TaskStatus(status)
	t.Category = TaskCategory(category)
	t.IsNextAction = isNext != 0
	if lineNumber.Valid {
		n := int(lineNumber.Int64)
		t.LineNumber = &n
	}
	if t.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if t.UpdatedAt, err = time.Parse(timeFormat, updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return &t, nil
}

func marshalPhases(phases []string) (sql.NullString, error) {
	if len(phases) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(phases)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal phases: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func formatDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(dateFormat), Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
