package composer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ShayCichocki/quill/internal/graph"
	"github.com/ShayCichocki/quill/pkg/models"
)

// FailedTask records a task whose last execution failed.
type FailedTask struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Error string `json:"error"`
}

// RunReport summarizes one ExecuteTaskSequence call. IDs are in declaration order.
type RunReport struct {
	Completed  []string     `json:"completed"`
	Failed     []FailedTask `json:"failed"`
	Unexecuted []string     `json:"unexecuted"`
	// Aborted is true when a root failure or cancellation stopped the run.
	Aborted  bool      `json:"aborted"`
	Passes   int       `json:"passes"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
}

// Counts returns the number of completed, failed and unexecuted tasks.
func (r *RunReport) Counts() (completed, failed, unexecuted int) {
	return len(r.Completed), len(r.Failed), len(r.Unexecuted)
}

// ExecuteTaskSequence runs tasks in passes over declaration order. A task
// starts once every dependency has completed; tasks already completed seed
// the run. A pass that starts nothing ends the run. When a task without
// dependencies fails the run stops with ErrRootTaskFailed; any other failure
// leaves its dependents unexecuted. The report is returned in every case.
func (c *Composer) ExecuteTaskSequence(ctx context.Context, tasks []*models.Task) (*RunReport, error) {
	log := c.Logger()
	report := &RunReport{Started: time.Now()}

	g := graph.New()
	g.SetDebugLog(log.Debugf)
	if err := g.Build(tasks); err != nil {
		log.Warnf("task graph is not runnable as declared: %v", err)
	}
	report.Completed = append(report.Completed, g.GetCompletedIDs()...)

	failed := make(map[string]bool)
	blocked := make(map[string]bool)
	started := 0
	pacing := c.pacing()

	finish := func(err error) (*RunReport, error) {
		for _, id := range g.Order() {
			if !g.IsComplete(id) && !failed[id] {
				report.Unexecuted = append(report.Unexecuted, id)
			}
		}
		report.Finished = time.Now()
		return report, err
	}

	for {
		report.Passes++
		progress := false

		for _, id := range g.Order() {
			if g.IsComplete(id) || failed[id] || blocked[id] || !g.IsReady(id) {
				continue
			}
			task := g.GetTask(id)

			if started > 0 {
				if err := c.sleep(ctx, pacing); err != nil {
					report.Aborted = true
					return finish(err)
				}
			}
			if err := ctx.Err(); err != nil {
				report.Aborted = true
				return finish(err)
			}
			started++
			progress = true

			log.Infof("starting task %s (%s: %q)", id, task.ActorType, task.Title)
			_, err := c.runTask(ctx, task)
			if err == nil {
				g.MarkComplete(id)
				report.Completed = append(report.Completed, id)
				continue
			}

			failed[id] = true
			report.Failed = append(report.Failed, FailedTask{ID: id, Title: task.Title, Error: err.Error()})
			downstream := g.Downstream(id)
			for _, d := range downstream {
				blocked[d] = true
			}

			if task.IsRoot() {
				log.Errorf("root task %q failed, aborting run: %v", task.Title, err)
				report.Aborted = true
				return finish(fmt.Errorf("%w: %s: %w", ErrRootTaskFailed, task.Title, err))
			}
			log.Warnf("task %q failed, %d dependents will not run: %v", task.Title, len(downstream), err)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				report.Aborted = true
				return finish(err)
			}
		}

		if !progress {
			break
		}
	}
	return finish(nil)
}

// runTask executes one task with a fresh actor. Coder tasks go through the
// retry loop.
func (c *Composer) runTask(ctx context.Context, task *models.Task) (any, error) {
	if task.ActorType == models.ActorCoder {
		return c.ExecuteTaskWithRetry(ctx, task)
	}
	a, err := c.registry.ForTask(task)
	if err != nil {
		return nil, c.Fail(ctx, task, err)
	}
	return a.ExecuteTask(ctx, task)
}
