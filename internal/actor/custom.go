package actor

import (
	"context"
	"fmt"
	"strings"

	"github.com/ShayCichocki/quill/pkg/models"
)

// Custom runs a user-defined actor. The definition is loaded from the store
// on every execution so edits take effect without a restart.
type Custom struct {
	*Base
	actorID string
}

// NewCustom creates an executor for the custom actor with the given id.
// A task's own CustomActorID takes precedence when set.
func NewCustom(deps Deps, actorID string) *Custom {
	c := &Custom{actorID: actorID}
	c.Base = NewBase(deps, models.ActorCustom, c)
	return c
}

// ActorID returns the custom actor id the executor was built for.
func (c *Custom) ActorID() string { return c.actorID }

// Execute implements Executor.
func (c *Custom) Execute(ctx context.Context, task *models.Task) (any, error) {
	id := task.CustomActorID
	if id == "" {
		id = c.actorID
	}
	if id == "" {
		return nil, fmt.Errorf("task %s has no custom actor id", task.ID)
	}

	def, err := c.deps.Store.GetCustomActor(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load custom actor %s: %w", id, err)
	}
	if !def.Enabled {
		return nil, fmt.Errorf("%w: custom actor %s (%s)", ErrActorDisabled, def.Name, id)
	}

	upstream, err := c.UpstreamContext(ctx, task)
	if err != nil {
		return nil, err
	}
	prompt := fmt.Sprintf(customPrompt, taskHeader(task), goalSection(c.boardGoal(ctx, task)), upstreamSection(upstream))

	text, err := c.GenerateCompletionWith(ctx, prompt, CompletionOptions{
		System:   def.Instructions,
		Provider: def.Provider,
		Model:    def.Model,
	})
	if err != nil {
		return nil, err
	}

	result := &CustomResult{ActorID: def.ID, ActorName: def.Name, Output: strings.TrimSpace(text)}
	_, err = c.WriteArtifacts(ctx, task, Artifact{
		Type:     models.EntryText,
		Key:      "output",
		Value:    result.Output,
		Metadata: map[string]any{"custom_actor_id": def.ID, "custom_actor": def.Name},
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
