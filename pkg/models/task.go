package models

import (
	"encoding/json"
	"time"
)

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not started.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusInProgress indicates an actor is executing the task.
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusCompleted indicates the task finished successfully.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the last execution of the task failed.
	TaskStatusFailed TaskStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true for statuses that end an execution.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Priority is informational only. It never overrides dependency ordering.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Valid returns true if the priority is a known value.
func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	default:
		return false
	}
}

// Rank orders priorities from most to least urgent (critical = 0).
// Unknown priorities rank with medium.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityLow:
		return 3
	default:
		return 2
	}
}

// ParsePriority normalizes a raw priority string, defaulting to medium.
func ParsePriority(raw string) Priority {
	p := Priority(normalizeToken(raw))
	if !p.Valid() {
		return PriorityMedium
	}
	return p
}

// TaskMetadata carries optional execution hints attached to a task.
type TaskMetadata struct {
	// AllowedActors restricts which actor kinds the planner may use.
	AllowedActors []ActorType `json:"allowed_actors,omitempty"`
	// UseCustomPrompt makes the planner send CustomPrompt verbatim.
	UseCustomPrompt bool   `json:"use_custom_prompt,omitempty"`
	CustomPrompt    string `json:"custom_prompt,omitempty"`
	// Attempt is the retry attempt the current execution belongs to (1-indexed).
	Attempt int `json:"attempt,omitempty"`
}

// Task represents a unit of work on a board.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// BoardID is the workspace this task belongs to.
	BoardID string `json:"board_id"`
	// Title is the short description of the task.
	Title string `json:"title"`
	// Description holds the free text instructions for the actor.
	Description string `json:"description,omitempty"`
	// ActorType selects the executor for this task.
	ActorType ActorType `json:"actor_type"`
	// CustomActorID identifies the custom actor when ActorType is custom.
	CustomActorID string `json:"custom_actor_id,omitempty"`
	// Dependencies lists task IDs that must complete before this task starts.
	Dependencies []string `json:"dependencies,omitempty"`
	// Priority is informational.
	Priority Priority `json:"priority"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// Result is the structured payload produced on success.
	Result json.RawMessage `json:"result,omitempty"`
	// Error contains the last failure message while the task is failed.
	Error string `json:"error,omitempty"`
	// Metadata carries optional execution hints.
	Metadata TaskMetadata `json:"metadata,omitempty"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`
	// StartedAt is set by the engine when execution begins.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// CompletedAt is set by the engine when execution succeeds.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// DependsOn reports whether id is one of the task's dependencies.
func (t *Task) DependsOn(id string) bool {
	for _, dep := range t.Dependencies {
		if dep == id {
			return true
		}
	}
	return false
}

// IsRoot reports whether the task has no dependencies.
func (t *Task) IsRoot() bool {
	return len(t.Dependencies) == 0
}

// Clone returns a copy that shares no slices with t.
func (t *Task) Clone() *Task {
	c := *t
	c.Dependencies = append([]string(nil), t.Dependencies...)
	c.Result = append(json.RawMessage(nil), t.Result...)
	c.Metadata.AllowedActors = append([]ActorType(nil), t.Metadata.AllowedActors...)
	return &c
}

// Board is a workspace scoping tasks, tables and entries.
type Board struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Goal      string    `json:"goal,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
