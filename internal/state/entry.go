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

// CreateTable creates a table on a board. An empty ID is filled with a fresh uuid.
func (db *DB) CreateTable(ctx context.Context, t *models.Table) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	schema, err := json.Marshal(t.Schema)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO entry_tables (id, board_id, name, description, schema, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, t.ID, t.BoardID, t.Name, t.Description, string(schema), formatTime(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

// GetTable retrieves a table by ID.
func (db *DB) GetTable(ctx context.Context, id string) (*models.Table, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, board_id, name, description, schema, created_at FROM entry_tables WHERE id = ?
	`, id)
	t, err := scanTable(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("table %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get table: %w", err)
	}
	return t, nil
}

// ListTablesForBoard lists a board's tables in creation order.
func (db *DB) ListTablesForBoard(ctx context.Context, boardID string) ([]models.Table, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, board_id, name, description, schema, created_at
		FROM entry_tables WHERE board_id = ? ORDER BY created_at, rowid
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []models.Table
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		tables = append(tables, *t)
	}
	return tables, rows.Err()
}

func scanTable(row rowScanner) (*models.Table, error) {
	var t models.Table
	var description, schema sql.NullString
	var createdAt string
	if err := row.Scan(&t.ID, &t.BoardID, &t.Name, &description, &schema, &createdAt); err != nil {
		return nil, err
	}
	t.Description = description.String
	if schema.Valid && schema.String != "" && schema.String != "null" {
		if err := json.Unmarshal([]byte(schema.String), &t.Schema); err != nil {
			return nil, fmt.Errorf("unmarshal schema: %w", err)
		}
	}
	t.CreatedAt, _ = parseTime(createdAt)
	return &t, nil
}

// CreateEntry appends an entry to a table. Entries are never updated or deleted.
func (db *DB) CreateEntry(ctx context.Context, e *models.Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if !e.Type.Valid() {
		return fmt.Errorf("create entry: invalid entry type %q", e.Type)
	}
	var meta any
	if len(e.Metadata) > 0 {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("marshal entry metadata: %w", err)
		}
		meta = string(b)
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO entries (id, table_id, task_id, type, key, value, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.TableID, e.TaskID, string(e.Type), e.Key, e.Value, meta, formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("create entry: %w", err)
	}
	return nil
}

// GetEntriesForTask returns every entry a task produced, oldest first.
func (db *DB) GetEntriesForTask(ctx context.Context, taskID string) ([]models.Entry, error) {
	return db.queryEntries(ctx, "task_id", taskID)
}

// GetEntriesForTable returns every entry of a table, oldest first.
func (db *DB) GetEntriesForTable(ctx context.Context, tableID string) ([]models.Entry, error) {
	return db.queryEntries(ctx, "table_id", tableID)
}

func (db *DB) queryEntries(ctx context.Context, column, value string) ([]models.Entry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, table_id, task_id, type, key, value, metadata, created_at
		FROM entries WHERE `+column+` = ? ORDER BY seq
	`, value)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []models.Entry
	for rows.Next() {
		var e models.Entry
		var taskID, val, meta sql.NullString
		var typ, createdAt string
		if err := rows.Scan(&e.ID, &e.TableID, &taskID, &typ, &e.Key, &val, &meta, &createdAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.TaskID = taskID.String
		e.Type = models.EntryType(typ)
		e.Value = val.String
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &e.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal entry metadata: %w", err)
			}
		}
		e.CreatedAt, _ = parseTime(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
