package models

import "time"

// EntryType classifies an artifact stored in a table.
type EntryType string

const (
	EntryResult EntryType = "result"
	EntryData   EntryType = "data"
	EntryText   EntryType = "text"
	EntryCode   EntryType = "code"
	EntryImage  EntryType = "image"
)

// Valid returns true if the entry type is a known value.
func (t EntryType) Valid() bool {
	switch t {
	case EntryResult, EntryData, EntryText, EntryCode, EntryImage:
		return true
	default:
		return false
	}
}

// Table groups entries on a board under a field-name to type schema.
type Table struct {
	ID          string            `json:"id"`
	BoardID     string            `json:"board_id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Schema      map[string]string `json:"schema,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Entry is an immutable artifact produced by a task.
type Entry struct {
	ID        string         `json:"id"`
	TableID   string         `json:"table_id"`
	TaskID    string         `json:"task_id"`
	Type      EntryType      `json:"type"`
	Key       string         `json:"key"`
	Value     string         `json:"value"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
