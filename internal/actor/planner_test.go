package actor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/quill/pkg/models"
)

const twoStepPlan = `{"mainGoal": "Explain tides", "tasks": [
	{"title": "Research tides", "actorType": "researcher", "dependencies": []},
	{"title": "Write explainer", "actorType": "writer", "dependencies": ["0"]}
]}`

func TestPlannerListsOnlyEnabledActors(t *testing.T) {
	gw := &scriptedGateway{replies: []string{twoStepPlan}}
	deps := newTestDeps(t, gw)
	ctx := context.Background()

	require.NoError(t, deps.Store.SaveActorConfig(ctx, &models.ActorConfig{ActorType: models.ActorCoder, Enabled: false}))
	require.NoError(t, deps.Store.SaveCustomActor(ctx, &models.CustomActor{
		ID: "poet", Name: "Poet", Description: "writes verse", Instructions: "Rhyme.", Enabled: true,
	}))
	require.NoError(t, deps.Store.SaveCustomActor(ctx, &models.CustomActor{
		ID: "sleepy", Name: "Sleepy", Instructions: "Zzz.", Enabled: false,
	}))

	task := newTask(t, deps, models.ActorPlanner, "Explain tides")
	res, err := NewPlanner(deps).ExecuteTask(ctx, task)
	require.NoError(t, err)

	prompt := gw.lastCall().req.Prompt
	assert.Contains(t, prompt, "- researcher:")
	assert.Contains(t, prompt, "- writer:")
	assert.NotContains(t, prompt, "- coder:")
	assert.Contains(t, prompt, "CUSTOM:poet")
	assert.NotContains(t, prompt, "CUSTOM:sleepy")

	plan := res.(*PlanResult)
	assert.Equal(t, StrategyJSON, plan.Strategy)
	assert.False(t, plan.Fallback)
	assert.Len(t, plan.Plan.Tasks, 2)
	assert.Contains(t, plan.Summary, "Explain tides")

	entries, err := deps.Store.GetEntriesForTask(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "plan", entries[0].Key)
	assert.Equal(t, models.EntryData, entries[0].Type)
	assert.Equal(t, "summary", entries[1].Key)
}

func TestPlannerAllowedActors(t *testing.T) {
	gw := &scriptedGateway{replies: []string{twoStepPlan}}
	deps := newTestDeps(t, gw)
	ctx := context.Background()

	task := newTask(t, deps, models.ActorPlanner, "Explain tides")
	task.Metadata.AllowedActors = []models.ActorType{models.ActorAnalyst}
	_, err := NewPlanner(deps).ExecuteTask(ctx, task)
	require.NoError(t, err)

	prompt := gw.lastCall().req.Prompt
	assert.Contains(t, prompt, "- analyst:")
	assert.NotContains(t, prompt, "- researcher:")
	assert.NotContains(t, prompt, "- writer:")
}

func TestPlannerCustomPromptIsVerbatim(t *testing.T) {
	gw := &scriptedGateway{replies: []string{twoStepPlan}}
	deps := newTestDeps(t, gw)

	task := newTask(t, deps, models.ActorPlanner, "Explain tides")
	task.Metadata.UseCustomPrompt = true
	task.Metadata.CustomPrompt = "Return a plan for tides as JSON."
	_, err := NewPlanner(deps).ExecuteTask(context.Background(), task)
	require.NoError(t, err)

	assert.Equal(t, "Return a plan for tides as JSON.", gw.lastCall().req.Prompt)
}

func TestPlannerFallbackCompletesTask(t *testing.T) {
	gw := &scriptedGateway{replies: []string{"Sorry, I can't produce JSON today."}}
	deps := newTestDeps(t, gw)
	ctx := context.Background()

	task := newTask(t, deps, models.ActorPlanner, "Explain tides")
	res, err := NewPlanner(deps).ExecuteTask(ctx, task)
	require.NoError(t, err)

	plan := res.(*PlanResult)
	assert.True(t, plan.Fallback)
	assert.Equal(t, StrategyFallback, plan.Strategy)
	assert.Equal(t, "Explain tides", plan.Plan.MainGoal)

	stored, err := deps.Store.GetTaskFromBoard(ctx, task.BoardID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, stored.Status)
}
