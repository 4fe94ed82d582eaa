package actor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ShayCichocki/quill/pkg/models"
)

// Planner turns a goal into a TaskPlan. It never fails on malformed output;
// see ParsePlan.
type Planner struct {
	*Base
}

// NewPlanner creates a planner.
func NewPlanner(deps Deps) *Planner {
	p := &Planner{}
	p.Base = NewBase(deps, models.ActorPlanner, p)
	return p
}

// Execute implements Executor.
func (p *Planner) Execute(ctx context.Context, task *models.Task) (any, error) {
	goal := planGoal(task)

	prompt := task.Metadata.CustomPrompt
	if !task.Metadata.UseCustomPrompt || strings.TrimSpace(prompt) == "" {
		actors, err := p.availableActors(ctx, task)
		if err != nil {
			return nil, err
		}
		extra := ""
		if task.Description != "" && task.Description != goal {
			extra = task.Description
		}
		prompt = buildPlannerPrompt(goal, extra, actors)
	}

	text, err := p.GenerateCompletion(ctx, prompt)
	if err != nil {
		return nil, err
	}

	parsed := ParsePlan(text, goal)
	for _, note := range parsed.Notes {
		p.logger.Debugf("plan parse: %s", note)
	}
	if parsed.Strategy == StrategyFallback {
		p.logger.Warnf("planner output unusable, using fallback plan for %q", goal)
	}

	result := &PlanResult{
		Plan:     parsed.Plan,
		Summary:  parsed.Plan.Summary(),
		Strategy: parsed.Strategy,
		Fallback: parsed.Strategy == StrategyFallback,
	}

	planJSON, err := json.MarshalIndent(parsed.Plan, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal plan: %w", err)
	}
	_, err = p.WriteArtifacts(ctx, task,
		Artifact{Type: models.EntryData, Key: "plan", Value: string(planJSON),
			Metadata: map[string]any{"strategy": string(parsed.Strategy)}},
		Artifact{Type: models.EntryText, Key: "summary", Value: result.Summary},
	)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func planGoal(task *models.Task) string {
	if strings.TrimSpace(task.Title) != "" {
		return strings.TrimSpace(task.Title)
	}
	return strings.TrimSpace(task.Description)
}

// availableActors lists the enabled worker kinds, restricted to the task's
// allowed set when one is given, followed by the board's enabled custom actors.
func (p *Planner) availableActors(ctx context.Context, task *models.Task) ([]string, error) {
	allowed := make(map[models.ActorType]bool, len(task.Metadata.AllowedActors))
	for _, t := range task.Metadata.AllowedActors {
		allowed[t] = true
	}
	permitted := func(t models.ActorType) bool {
		return len(allowed) == 0 || allowed[t]
	}

	var lines []string
	for _, t := range models.WorkerActorTypes() {
		if !permitted(t) {
			continue
		}
		cfg, err := ResolveConfig(ctx, p.deps, t)
		if err != nil {
			return nil, fmt.Errorf("resolve %s config: %w", t, err)
		}
		if cfg.Enabled {
			lines = append(lines, describeActor(t))
		}
	}

	if permitted(models.ActorCustom) {
		cfg, err := ResolveConfig(ctx, p.deps, models.ActorCustom)
		if err != nil {
			return nil, fmt.Errorf("resolve custom config: %w", err)
		}
		if cfg.Enabled {
			customs, err := p.deps.Store.ListCustomActors(ctx, task.BoardID)
			if err != nil {
				return nil, fmt.Errorf("list custom actors: %w", err)
			}
			for _, a := range customs {
				if a.Enabled {
					lines = append(lines, describeCustomActor(a))
				}
			}
		}
	}

	if len(lines) == 0 {
		lines = append(lines, describeActor(models.ActorResearcher))
	}
	return lines, nil
}
