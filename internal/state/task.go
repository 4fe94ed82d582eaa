package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/quill/pkg/models"
)

// Board CRUD operations

// CreateBoard creates a new board. An empty ID is filled with a fresh uuid.
func (db *DB) CreateBoard(ctx context.Context, b *models.Board) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO boards (id, name, goal, created_at)
		VALUES (?, ?, ?, ?)
	`, b.ID, b.Name, b.Goal, formatTime(b.CreatedAt))
	if err != nil {
		return fmt.Errorf("create board: %w", err)
	}
	return nil
}

// GetBoard retrieves a board by ID.
func (db *DB) GetBoard(ctx context.Context, id string) (*models.Board, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, name, goal, created_at FROM boards WHERE id = ?
	`, id)

	var b models.Board
	var goal sql.NullString
	var createdAt string
	err := row.Scan(&b.ID, &b.Name, &goal, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("board %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get board: %w", err)
	}
	b.Goal = goal.String
	b.CreatedAt, _ = parseTime(createdAt)
	return &b, nil
}

// ListBoards lists all boards, newest first.
func (db *DB) ListBoards(ctx context.Context) ([]models.Board, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, goal, created_at FROM boards ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	defer rows.Close()

	var boards []models.Board
	for rows.Next() {
		var b models.Board
		var goal sql.NullString
		var createdAt string
		if err := rows.Scan(&b.ID, &b.Name, &goal, &createdAt); err != nil {
			return nil, fmt.Errorf("scan board: %w", err)
		}
		b.Goal = goal.String
		b.CreatedAt, _ = parseTime(createdAt)
		boards = append(boards, b)
	}
	return boards, rows.Err()
}

// Task CRUD operations

const taskColumns = `id, board_id, title, description, actor_type, custom_actor_id, dependencies,
	priority, status, result, error, metadata, created_at, started_at, completed_at`

// CreateTask inserts a task with its dependencies already set.
func (db *DB) CreateTask(ctx context.Context, t *models.Task) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	if t.Status == "" {
		t.Status = models.TaskStatusPending
	}
	if t.Priority == "" {
		t.Priority = models.PriorityMedium
	}

	deps, err := json.Marshal(nonNilStrings(t.Dependencies))
	if err != nil {
		return fmt.Errorf("marshal dependencies: %w", err)
	}
	meta, err := json.Marshal(t.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.BoardID, t.Title, t.Description, string(t.ActorType), t.CustomActorID, string(deps),
		string(t.Priority), string(t.Status), nullableRaw(t.Result), t.Error, string(meta),
		formatTime(t.CreatedAt), nullableTime(t.StartedAt), nullableTime(t.CompletedAt))
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// UpdateTaskStatus persists the status fields of a task: status, result,
// error and the two timestamps. Title, description and dependencies are never rewritten.
func (db *DB) UpdateTaskStatus(ctx context.Context, t *models.Task) error {
	res, err := db.ExecContext(ctx, `
		UPDATE tasks SET status = ?, result = ?, error = ?, started_at = ?, completed_at = ?
		WHERE id = ?
	`, string(t.Status), nullableRaw(t.Result), t.Error,
		nullableTime(t.StartedAt), nullableTime(t.CompletedAt), t.ID)
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("task %s: %w", t.ID, ErrNotFound)
	}
	return nil
}

// GetTaskFromBoard retrieves a task by ID, scoped to a board.
func (db *DB) GetTaskFromBoard(ctx context.Context, boardID, taskID string) (*models.Task, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+taskColumns+` FROM tasks WHERE board_id = ? AND id = ?
	`, boardID, taskID)

	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// ListTasksForBoard lists a board's tasks in creation order.
func (db *DB) ListTasksForBoard(ctx context.Context, boardID string) ([]models.Task, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+taskColumns+` FROM tasks WHERE board_id = ? ORDER BY created_at, rowid
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	var t models.Task
	var description, customActorID, deps, result, errMsg, meta sql.NullString
	var actorType, priority, status, createdAt string
	var startedAt, completedAt sql.NullString

	err := row.Scan(&t.ID, &t.BoardID, &t.Title, &description, &actorType, &customActorID, &deps,
		&priority, &status, &result, &errMsg, &meta, &createdAt, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	t.Description = description.String
	t.ActorType = models.ActorType(actorType)
	t.CustomActorID = customActorID.String
	t.Priority = models.Priority(priority)
	t.Status = models.TaskStatus(status)
	t.Error = errMsg.String
	if result.Valid && result.String != "" {
		t.Result = json.RawMessage(result.String)
	}
	if deps.Valid && deps.String != "" {
		if err := json.Unmarshal([]byte(deps.String), &t.Dependencies); err != nil {
			return nil, fmt.Errorf("unmarshal dependencies: %w", err)
		}
	}
	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &t.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	t.CreatedAt, _ = parseTime(createdAt)
	t.StartedAt = parseNullableTime(startedAt)
	t.CompletedAt = parseNullableTime(completedAt)
	return &t, nil
}

func nullableRaw(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
