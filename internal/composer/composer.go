// Package composer drives a whole workflow: it asks the planner for a plan,
// repairs and materializes it into tasks, and executes them in dependency order.
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

// ErrRootTaskFailed aborts a run: a task without dependencies failed.
var ErrRootTaskFailed = errors.New("root task failed")

const defaultMaxCodeAttempts = 3

// Composer is the actor that runs a goal end to end.
type Composer struct {
	*actor.Base
	registry *actor.Registry

	// sleep waits out task pacing. Tests replace it.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a composer that builds its actors from registry.
func New(registry *actor.Registry) *Composer {
	c := &Composer{registry: registry, sleep: sleepCtx}
	c.Base = actor.NewBase(registry.Deps(), models.ActorComposer, c)
	return c
}

// Register adds the composer to registry so it can be built like any other actor.
func Register(registry *actor.Registry) {
	registry.Register(models.ActorComposer, func(actor.Deps, string) (actor.Actor, error) {
		return New(registry), nil
	})
}

// pacing is the delay before every task start after the first in a run.
func (c *Composer) pacing() time.Duration {
	return c.Deps().Config.Get().Engine.TaskPacing
}

func (c *Composer) maxCodeAttempts() int {
	if n := c.Deps().Config.Get().Engine.MaxCodeAttempts; n > 0 {
		return n
	}
	return defaultMaxCodeAttempts
}

// Execute implements actor.Executor. Scheduling outcomes are reported through
// the ComposeResult; only planning and persistence problems return an error.
func (c *Composer) Execute(ctx context.Context, task *models.Task) (any, error) {
	store := c.Deps().Store
	log := c.Logger()

	planTask := &models.Task{
		BoardID:     task.BoardID,
		Title:       task.Title,
		Description: task.Description,
		ActorType:   models.ActorPlanner,
		Priority:    models.PriorityCritical,
		Metadata:    task.Metadata,
	}
	planTask.Metadata.Attempt = 0
	if err := store.CreateTask(ctx, planTask); err != nil {
		return nil, fmt.Errorf("create planner task: %w", err)
	}

	planner, err := c.registry.New(models.ActorPlanner, "")
	if err != nil {
		return nil, err
	}
	out, err := planner.ExecuteTask(ctx, planTask)
	if err != nil {
		return nil, fmt.Errorf("plan %q: %w", task.Title, err)
	}
	planned, ok := out.(*actor.PlanResult)
	if !ok || planned.Plan == nil {
		return nil, fmt.Errorf("planner returned %T, want *actor.PlanResult", out)
	}
	plan := planned.Plan
	log.Infof("plan for %q: %s (strategy=%s)", task.Title, planned.Summary, planned.Strategy)

	repair := Repair(plan)
	if repair.Changed() {
		log.Infof("repaired plan with %d changes", len(repair.Steps))
		for _, step := range repair.Steps {
			log.Debugf("repair: %s", step.Detail)
		}
	}

	mat := Materialize(plan, task.BoardID)
	for _, t := range mat.Tasks {
		if err := store.CreateTask(ctx, t); err != nil {
			return nil, fmt.Errorf("create task %q: %w", t.Title, err)
		}
	}

	result := &ComposeResult{
		PlanTaskID:  planTask.ID,
		MainGoal:    plan.MainGoal,
		PlanSummary: planned.Summary,
		Strategy:    planned.Strategy,
		Fallback:    planned.Fallback,
		Repairs:     repair.Steps,
		TaskIDs:     mat.IDs,
	}
	if repair.FinalTask >= 0 {
		result.FinalTaskID = mat.IDs[repair.FinalTask]
	}

	if err := c.writePlanArtifacts(ctx, task, plan, repair, mat); err != nil {
		return nil, err
	}

	run, runErr := c.ExecuteTaskSequence(ctx, mat.Tasks)
	result.apply(run, runErr, mat.Tasks)

	if err := c.writeSummary(ctx, task, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Composer) writePlanArtifacts(ctx context.Context, task *models.Task, plan *models.TaskPlan, repair RepairReport, mat *Materialized) error {
	planJSON, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	idsJSON, err := json.Marshal(mat.IDs)
	if err != nil {
		return fmt.Errorf("marshal task ids: %w", err)
	}
	artifacts := []actor.Artifact{
		{Type: models.EntryData, Key: "repaired_plan", Value: string(planJSON)},
		{Type: models.EntryData, Key: "task_ids", Value: string(idsJSON)},
	}
	for i, step := range repair.Steps {
		artifacts = append(artifacts, actor.Artifact{
			Type:  models.EntryText,
			Key:   fmt.Sprintf("repair_%d", i+1),
			Value: step.Detail,
			Metadata: map[string]any{
				"kind":       string(step.Kind),
				"task":       step.Task,
				"dependency": step.Dependency,
			},
		})
	}
	_, err = c.WriteArtifacts(ctx, task, artifacts...)
	return err
}

func (c *Composer) writeSummary(ctx context.Context, task *models.Task, result *ComposeResult) error {
	raw, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal workflow summary: %w", err)
	}
	table, err := c.CreateTable(ctx, task.BoardID, "Workflow: "+task.Title, result.MainGoal,
		map[string]string{"workflow_summary": string(models.EntryResult), "report": string(models.EntryText)})
	if err != nil {
		return err
	}
	if _, err := c.CreateEntry(ctx, table.ID, task.ID, actor.Artifact{
		Type:  models.EntryResult,
		Key:   "workflow_summary",
		Value: string(raw),
	}); err != nil {
		return err
	}
	_, err = c.CreateEntry(ctx, table.ID, task.ID, actor.Artifact{
		Type:  models.EntryText,
		Key:   "report",
		Value: result.Report(),
	})
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func titleList(tasks []*models.Task, ids []string) string {
	byID := make(map[string]string, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t.Title
	}
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, byID[id])
	}
	return strings.Join(names, ", ")
}
