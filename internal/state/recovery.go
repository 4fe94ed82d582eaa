package state

import (
	"context"
	"fmt"
	"time"

	"github.com/ShayCichocki/quill/pkg/models"
)

// InterruptedErrorMessage is stored on tasks cleaned up after an interrupted run.
const InterruptedErrorMessage = "interrupted: process exited while the task was running"

// InterruptedBoard contains information about a board whose last run stopped
// while tasks were still in progress.
type InterruptedBoard struct {
	BoardID      string
	TaskIDs      []string
	LastActivity time.Time
	Pending      int
	Completed    int
	Failed       int
}

// RecoveryManager handles detection and recovery of interrupted board runs.
type RecoveryManager struct {
	store TaskStore
}

// NewRecoveryManager creates a new RecoveryManager over the given task store.
func NewRecoveryManager(store TaskStore) *RecoveryManager {
	return &RecoveryManager{store: store}
}

// CheckForInterrupted reports the tasks of a board left in progress.
// Returns nil if the board has none.
func (rm *RecoveryManager) CheckForInterrupted(ctx context.Context, boardID string) (*InterruptedBoard, error) {
	tasks, err := rm.store.ListTasksForBoard(ctx, boardID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	info := &InterruptedBoard{BoardID: boardID}
	for _, t := range tasks {
		switch t.Status {
		case models.TaskStatusInProgress:
			info.TaskIDs = append(info.TaskIDs, t.ID)
		case models.TaskStatusPending:
			info.Pending++
		case models.TaskStatusCompleted:
			info.Completed++
		case models.TaskStatusFailed:
			info.Failed++
		}
		for _, ts := range []*time.Time{t.StartedAt, t.CompletedAt} {
			if ts != nil && ts.After(info.LastActivity) {
				info.LastActivity = *ts
			}
		}
	}

	if len(info.TaskIDs) == 0 {
		return nil, nil
	}
	return info, nil
}

// Resume puts interrupted tasks back to pending so the scheduler picks them up again.
// It returns the number of tasks reset.
func (rm *RecoveryManager) Resume(ctx context.Context, boardID string) (int, error) {
	return rm.rewrite(ctx, boardID, func(t *models.Task) {
		t.Status = models.TaskStatusPending
		t.StartedAt = nil
		t.Error = ""
	})
}

// Clean marks interrupted tasks as failed.
// It returns the number of tasks marked.
func (rm *RecoveryManager) Clean(ctx context.Context, boardID string) (int, error) {
	return rm.rewrite(ctx, boardID, func(t *models.Task) {
		t.Status = models.TaskStatusFailed
		t.Error = InterruptedErrorMessage
	})
}

func (rm *RecoveryManager) rewrite(ctx context.Context, boardID string, fn func(*models.Task)) (int, error) {
	info, err := rm.CheckForInterrupted(ctx, boardID)
	if err != nil || info == nil {
		return 0, err
	}
	for _, id := range info.TaskIDs {
		t, err := rm.store.GetTaskFromBoard(ctx, boardID, id)
		if err != nil {
			return 0, fmt.Errorf("load task %s: %w", id, err)
		}
		fn(t)
		if err := rm.store.UpdateTaskStatus(ctx, t); err != nil {
			return 0, fmt.Errorf("rewrite task %s: %w", id, err)
		}
	}
	return len(info.TaskIDs), nil
}
