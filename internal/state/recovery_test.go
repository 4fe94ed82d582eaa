package state

import (
	"context"
	"testing"
	"time"

	"github.com/ShayCichocki/quill/pkg/models"
)

func seedTasks(t *testing.T, db *DB, statuses map[string]models.TaskStatus) {
	t.Helper()
	ctx := context.Background()
	for id, status := range statuses {
		task := &models.Task{ID: id, BoardID: "board-1", Title: id, ActorType: models.ActorResearcher, Status: status}
		if status != models.TaskStatusPending {
			now := time.Now()
			task.StartedAt = &now
		}
		if err := db.CreateTask(ctx, task); err != nil {
			t.Fatalf("CreateTask(%s) failed: %v", id, err)
		}
	}
}

func TestCheckForInterrupted_NoTasks(t *testing.T) {
	db := setupTestDB(t)
	rm := NewRecoveryManager(db)

	info, err := rm.CheckForInterrupted(context.Background(), "board-1")
	if err != nil {
		t.Fatalf("CheckForInterrupted failed: %v", err)
	}
	if info != nil {
		t.Errorf("expected nil for empty board, got %+v", info)
	}
}

func TestCheckForInterrupted_CleanBoard(t *testing.T) {
	db := setupTestDB(t)
	seedTasks(t, db, map[string]models.TaskStatus{
		"a": models.TaskStatusCompleted,
		"b": models.TaskStatusFailed,
		"c": models.TaskStatusPending,
	})

	info, err := NewRecoveryManager(db).CheckForInterrupted(context.Background(), "board-1")
	if err != nil {
		t.Fatalf("CheckForInterrupted failed: %v", err)
	}
	if info != nil {
		t.Errorf("expected nil without in-progress tasks, got %+v", info)
	}
}

func TestCheckForInterrupted_InProgress(t *testing.T) {
	db := setupTestDB(t)
	seedTasks(t, db, map[string]models.TaskStatus{
		"a": models.TaskStatusCompleted,
		"b": models.TaskStatusInProgress,
		"c": models.TaskStatusPending,
	})

	info, err := NewRecoveryManager(db).CheckForInterrupted(context.Background(), "board-1")
	if err != nil {
		t.Fatalf("CheckForInterrupted failed: %v", err)
	}
	if info == nil {
		t.Fatal("expected interrupted board info")
	}
	if len(info.TaskIDs) != 1 || info.TaskIDs[0] != "b" {
		t.Errorf("TaskIDs = %v, want [b]", info.TaskIDs)
	}
	if info.Completed != 1 || info.Pending != 1 {
		t.Errorf("counts = completed %d pending %d, want 1/1", info.Completed, info.Pending)
	}
	if info.LastActivity.IsZero() {
		t.Error("LastActivity should be set")
	}
}

func TestResume_ResetsInterruptedTasks(t *testing.T) {
	db := setupTestDB(t)
	seedTasks(t, db, map[string]models.TaskStatus{"a": models.TaskStatusInProgress})
	ctx := context.Background()

	n, err := NewRecoveryManager(db).Resume(ctx, "board-1")
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Resume reset %d tasks, want 1", n)
	}

	task, err := db.GetTaskFromBoard(ctx, "board-1", "a")
	if err != nil {
		t.Fatalf("GetTaskFromBoard failed: %v", err)
	}
	if task.Status != models.TaskStatusPending {
		t.Errorf("status = %s, want pending", task.Status)
	}
	if task.StartedAt != nil {
		t.Error("StartedAt should be cleared")
	}
}

func TestClean_MarksInterruptedTasksFailed(t *testing.T) {
	db := setupTestDB(t)
	seedTasks(t, db, map[string]models.TaskStatus{
		"a": models.TaskStatusInProgress,
		"b": models.TaskStatusCompleted,
	})
	ctx := context.Background()

	n, err := NewRecoveryManager(db).Clean(ctx, "board-1")
	if err != nil {
		t.Fatalf("Clean failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Clean marked %d tasks, want 1", n)
	}

	task, _ := db.GetTaskFromBoard(ctx, "board-1", "a")
	if task.Status != models.TaskStatusFailed || task.Error != InterruptedErrorMessage {
		t.Errorf("task = %s/%q, want failed with interrupted message", task.Status, task.Error)
	}
	done, _ := db.GetTaskFromBoard(ctx, "board-1", "b")
	if done.Status != models.TaskStatusCompleted {
		t.Errorf("completed task was rewritten to %s", done.Status)
	}
}
