package state

import (
	"context"
	"io"

	"github.com/ShayCichocki/quill/pkg/models"
)

// BoardStore handles board persistence.
type BoardStore interface {
	CreateBoard(ctx context.Context, b *models.Board) error
	GetBoard(ctx context.Context, id string) (*models.Board, error)
	ListBoards(ctx context.Context) ([]models.Board, error)
}

// TaskStore handles task persistence.
// UpdateTaskStatus is the only mutation of an existing task.
type TaskStore interface {
	CreateTask(ctx context.Context, t *models.Task) error
	UpdateTaskStatus(ctx context.Context, t *models.Task) error
	GetTaskFromBoard(ctx context.Context, boardID, taskID string) (*models.Task, error)
	ListTasksForBoard(ctx context.Context, boardID string) ([]models.Task, error)
}

// EntryStore handles tables and their append-only entries.
type EntryStore interface {
	CreateTable(ctx context.Context, t *models.Table) error
	GetTable(ctx context.Context, id string) (*models.Table, error)
	ListTablesForBoard(ctx context.Context, boardID string) ([]models.Table, error)
	CreateEntry(ctx context.Context, e *models.Entry) error
	GetEntriesForTask(ctx context.Context, taskID string) ([]models.Entry, error)
	GetEntriesForTable(ctx context.Context, tableID string) ([]models.Entry, error)
}

// SettingsStore handles persisted actor configuration and custom actor definitions.
type SettingsStore interface {
	GetActorConfig(ctx context.Context, t models.ActorType) (*models.ActorConfig, error)
	SaveActorConfig(ctx context.Context, c *models.ActorConfig) error
	ListActorConfigs(ctx context.Context) ([]models.ActorConfig, error)
	SaveCustomActor(ctx context.Context, a *models.CustomActor) error
	GetCustomActor(ctx context.Context, id string) (*models.CustomActor, error)
	ListCustomActors(ctx context.Context, boardID string) ([]models.CustomActor, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// Store defines the interface for engine persistence.
// Every call is individually atomic; callers never get multi-call transactions.
type Store interface {
	io.Closer
	Migrator
	BoardStore
	TaskStore
	EntryStore
	SettingsStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ Store         = (*DB)(nil)
	_ Migrator      = (*DB)(nil)
	_ BoardStore    = (*DB)(nil)
	_ TaskStore     = (*DB)(nil)
	_ EntryStore    = (*DB)(nil)
	_ SettingsStore = (*DB)(nil)
)
