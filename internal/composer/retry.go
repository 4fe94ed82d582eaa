package composer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ShayCichocki/quill/internal/actor"
	"github.com/ShayCichocki/quill/pkg/models"
)

// AttemptContext carries what the previous coder attempt produced into the next one.
type AttemptContext struct {
	Attempt      int    `json:"attempt"`
	Language     string `json:"language,omitempty"`
	PreviousCode string `json:"previous_code,omitempty"`
	FailureText  string `json:"failure_text"`
}

// Render appends the previous attempt to description.
func (a *AttemptContext) Render(description string) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(description))
	fmt.Fprintf(&sb, "\n\n## Previous Attempt %d Failed\n", a.Attempt)
	sb.WriteString("Fix the cause of the failure below. Do not repeat the same mistake.\n")
	if a.PreviousCode != "" {
		fmt.Fprintf(&sb, "\nCode that failed:\n```%s\n%s\n```\n", a.Language, a.PreviousCode)
	}
	fmt.Fprintf(&sb, "\nError:\n%s\n", a.FailureText)
	return sb.String()
}

type attemptRecord struct {
	Attempt     int    `json:"attempt"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
	ElapsedMS   int64  `json:"elapsed_ms"`
	Description string `json:"description"`
}

// ExecuteTaskWithRetry runs a coder task up to the configured number of
// attempts, each with a fresh actor. A failed attempt's code and error are
// rendered into a copy of the description for the next one; the stored
// description never changes. Other actor kinds run once.
func (c *Composer) ExecuteTaskWithRetry(ctx context.Context, task *models.Task) (any, error) {
	if task.ActorType != models.ActorCoder {
		a, err := c.registry.ForTask(task)
		if err != nil {
			return nil, c.Fail(ctx, task, err)
		}
		return a.ExecuteTask(ctx, task)
	}

	log := c.Logger()
	maxAttempts := c.maxCodeAttempts()
	var (
		attemptCtx *AttemptContext
		attempts   *models.Table
		lastResult any
		lastErr    error
	)

	for n := 1; n <= maxAttempts; n++ {
		working := task.Clone()
		working.Metadata.Attempt = n
		if attemptCtx != nil {
			working.Description = attemptCtx.Render(task.Description)
		}

		coder, err := c.registry.New(models.ActorCoder, "")
		if err != nil {
			return nil, c.Fail(ctx, task, err)
		}

		start := time.Now()
		res, runErr := coder.ExecuteTask(ctx, working)
		elapsed := time.Since(start)
		syncStatus(task, working)

		// A disabled coder is a configuration error: nothing was attempted.
		if errors.Is(runErr, actor.ErrActorDisabled) {
			return res, runErr
		}

		if attempts == nil {
			if attempts, err = c.CreateTable(ctx, task.BoardID, "Attempts: "+task.Title, "coder attempts",
				map[string]string{"attempt": string(models.EntryData)}); err != nil {
				log.Errorf("create attempts table for %s: %v", task.ID, err)
			}
		}
		c.recordAttempt(ctx, attempts, task, n, working.Description, elapsed, runErr)

		if runErr == nil {
			if n > 1 {
				log.Infof("coder task %q succeeded on attempt %d", task.Title, n)
			}
			return res, nil
		}
		lastResult, lastErr = res, runErr

		if ctx.Err() != nil {
			return res, runErr
		}
		log.Warnf("coder task %q attempt %d/%d failed: %v", task.Title, n, maxAttempts, runErr)
		attemptCtx = nextAttemptContext(attemptCtx, n, res, runErr)
	}

	return lastResult, fmt.Errorf("coder task %q failed after %d attempts: %w", task.Title, maxAttempts, lastErr)
}

// nextAttemptContext keeps the most recent code seen when an attempt failed
// before producing any.
func nextAttemptContext(prev *AttemptContext, n int, res any, err error) *AttemptContext {
	next := &AttemptContext{Attempt: n, FailureText: err.Error()}
	if prev != nil {
		next.PreviousCode, next.Language = prev.PreviousCode, prev.Language
	}
	if code, ok := res.(*actor.CodeResult); ok {
		if code.Code != "" {
			next.PreviousCode, next.Language = code.Code, code.Language
		}
		if code.Error != "" {
			next.FailureText = code.Error
		}
	}
	return next
}

func syncStatus(dst, src *models.Task) {
	dst.Status = src.Status
	dst.Result = src.Result
	dst.Error = src.Error
	dst.StartedAt = src.StartedAt
	dst.CompletedAt = src.CompletedAt
}

func (c *Composer) recordAttempt(ctx context.Context, table *models.Table, task *models.Task, n int, description string, elapsed time.Duration, err error) {
	if table == nil {
		return
	}
	rec := attemptRecord{
		Attempt:     n,
		Status:      string(models.TaskStatusCompleted),
		ElapsedMS:   elapsed.Milliseconds(),
		Description: description,
	}
	if err != nil {
		rec.Status = string(models.TaskStatusFailed)
		rec.Error = err.Error()
	}
	raw, mErr := json.Marshal(rec)
	if mErr != nil {
		c.Logger().Errorf("marshal attempt %d of %s: %v", n, task.ID, mErr)
		return
	}
	_, cErr := c.CreateEntry(ctx, table.ID, task.ID, actor.Artifact{
		Type:     models.EntryData,
		Key:      fmt.Sprintf("attempt_%d", n),
		Value:    string(raw),
		Metadata: map[string]any{"attempt": n, "status": rec.Status},
	})
	if cErr != nil {
		c.Logger().Errorf("record attempt %d of %s: %v", n, task.ID, cErr)
	}
}
