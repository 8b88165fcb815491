// Package store provides the entity store for tracked projects and their
// child tasks.
//
// The sync engine consumes the EntityStore interface; the SQLite
// implementation in this package is the reference backend and shares its
// database with the sync ledger. An API layer can substitute its own
// implementation as long as it honors the UpdatedAt contract below.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a project or task does not exist.
var ErrNotFound = errors.New("store: not found")

// ProjectStatus enumerates the lifecycle states of a project.
type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectSomeday   ProjectStatus = "someday"
	ProjectCompleted ProjectStatus = "completed"
	ProjectArchived  ProjectStatus = "archived"
)

// TaskStatus enumerates the workflow states of a task.
type TaskStatus string

const (
	TaskInbox     TaskStatus = "inbox"
	TaskNext      TaskStatus = "next"
	TaskWaiting   TaskStatus = "waiting"
	TaskCompleted TaskStatus = "completed"
)

// TaskCategory separates actionable tasks from someday/maybe items.
type TaskCategory string

const (
	CategoryAction  TaskCategory = "action"
	CategorySomeday TaskCategory = "someday"
)

// Project is a tracked entity with an optional on-disk representation.
type Project struct {
	ID          int64
	Title       string
	Description string
	Status      ProjectStatus
	Priority    int // 1 (highest) .. 4
	Score       float64
	TargetDate  *time.Time
	FilePath    *string
	Phases      []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Task is a child record of a project. Marker is the immutable token that
// joins the row to a checkbox line in the project's file; it is unique
// within the project's task set.
type Task struct {
	ID           int64
	ProjectID    int64
	Title        string
	Status       TaskStatus
	Category     TaskCategory
	IsNextAction bool
	Marker       string
	LineNumber   *int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Completed reports whether the task is in a completed state.
func (t *Task) Completed() bool {
	return t.Status == TaskCompleted
}

// EntityStore is the access layer the sync engine reconciles against.
//
// Mutations bump UpdatedAt to the current time unless the caller has
// already set it on the passed struct. The sync engine relies on this to
// stamp pulled changes with the same instant it records as the ledger's
// last_synced_at, so a pull does not look like an independent database
// edit to its own conflict detection.
type EntityStore interface {
	GetProject(ctx context.Context, id int64) (*Project, error)
	GetProjectByPath(ctx context.Context, path string) (*Project, error)
	CreateProject(ctx context.Context, p *Project) error
	UpdateProject(ctx context.Context, p *Project) error

	ListTasks(ctx context.Context, projectID int64) ([]*Task, error)
	GetTaskByMarker(ctx context.Context, projectID int64, mark string) (*Task, error)
	CreateTask(ctx context.Context, t *Task) error
	UpdateTask(ctx context.Context, t *Task) error
}
