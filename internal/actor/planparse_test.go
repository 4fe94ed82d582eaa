package actor

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/quill/pkg/models"
)

func TestParsePlanValidJSON(t *testing.T) {
	raw := `Here is the plan:
{
  "mainGoal": "Ship the report",
  "tasks": [
    {"title": "Research", "description": "find data", "actorType": "researcher", "dependencies": [], "priority": "high"},
    {"title": "Write", "description": "write it", "actorType": "writer", "dependencies": [0], "priority": "urgent", "estimatedCompletion": "10m"}
  ]
}
Let me know if you need changes.`

	got := ParsePlan(raw, "ignored")
	require.Equal(t, StrategyJSON, got.Strategy)
	assert.Equal(t, "Ship the report", got.Plan.MainGoal)
	require.Len(t, got.Plan.Tasks, 2)

	write := got.Plan.Tasks[1]
	assert.Equal(t, models.ActorWriter, write.ActorType)
	assert.Equal(t, []string{"0"}, write.Dependencies, "numeric dependencies become strings")
	assert.Equal(t, models.PriorityMedium, write.Priority, "unknown priority defaults to medium")
	assert.Equal(t, "10m", write.EstimatedCompletion)
	assert.Equal(t, models.PriorityHigh, got.Plan.Tasks[0].Priority)
}

func TestParsePlanFencedWithTrailingCommas(t *testing.T) {
	raw := "```json\n{\n  \"mainGoal\": \"Goal\",\n  \"tasks\": [\n    {\"title\": \"A\", \"actorType\": \"analyst\", \"dependencies\": [],},\n  ],\n}\n```"

	got := ParsePlan(raw, "fallback goal")
	require.Equal(t, StrategyRepaired, got.Strategy)
	assert.Equal(t, "Goal", got.Plan.MainGoal)
	require.Len(t, got.Plan.Tasks, 1)
	assert.Equal(t, models.ActorAnalyst, got.Plan.Tasks[0].ActorType)
}

func TestParsePlanSingleQuotesAndBareKeys(t *testing.T) {
	raw := `{mainGoal: 'Plan a trip', tasks: [{title: 'Book flights', actorType: 'researcher', dependencies: ['0'], description: "don't overpay"}]}`

	got := ParsePlan(raw, "x")
	require.Equal(t, StrategyRepaired, got.Strategy)
	assert.Equal(t, "Plan a trip", got.Plan.MainGoal)
	require.Len(t, got.Plan.Tasks, 1)
	assert.Equal(t, "Book flights", got.Plan.Tasks[0].Title)
	assert.Equal(t, "don't overpay", got.Plan.Tasks[0].Description)
}

func TestParsePlanTruncated(t *testing.T) {
	raw := `{"mainGoal": "Goal", "tasks": [{"title": "A", "actorType": "coder"}, {"title": "B", "actorType": "writer", "dependencies": [0`

	got := ParsePlan(raw, "x")
	require.Equal(t, StrategyRepaired, got.Strategy)
	require.Len(t, got.Plan.Tasks, 2)
	assert.Equal(t, []string{"0"}, got.Plan.Tasks[1].Dependencies)
}

func TestParsePlanFieldScan(t *testing.T) {
	raw := `{"mainGoal": "Goal" "tasks": [{"title": "A" "actorType": "coder"} {"title": "B" "actorType": "writer" "dependencies": [0]}]}`

	got := ParsePlan(raw, "x")
	require.Equal(t, StrategyFields, got.Strategy)
	require.Len(t, got.Plan.Tasks, 2)
	assert.Equal(t, "A", got.Plan.Tasks[0].Title)
	assert.Equal(t, models.ActorCoder, got.Plan.Tasks[0].ActorType)
	assert.Equal(t, "B", got.Plan.Tasks[1].Title)
	assert.Equal(t, []string{"0"}, got.Plan.Tasks[1].Dependencies)
}

func TestParsePlanGarbageFallsBack(t *testing.T) {
	for _, raw := range []string{"", "I cannot help with that.", `{"mainGoal": ""}`, `{"tasks": []}`} {
		got := ParsePlan(raw, "Learn Go")
		require.Equal(t, StrategyFallback, got.Strategy, raw)
		require.Len(t, got.Plan.Tasks, 2)
		assert.Equal(t, "Learn Go", got.Plan.MainGoal)
		assert.Equal(t, models.ActorResearcher, got.Plan.Tasks[0].ActorType)
		assert.Empty(t, got.Plan.Tasks[0].Dependencies)
		assert.Equal(t, models.ActorAnalyst, got.Plan.Tasks[1].ActorType)
		assert.Equal(t, []string{"0"}, got.Plan.Tasks[1].Dependencies)
	}
}

func TestParsePlanActorNormalization(t *testing.T) {
	raw := `{"mainGoal": "G", "tasks": [
		{"title": "a", "actorType": "CUSTOM:poet-1"},
		{"title": "b", "actorType": "planner"},
		{"title": "c", "actorType": "wizard"},
		{"title": "d", "actorType": "custom", "customActorId": "critic"},
		{"title": "e", "actorType": "Coder", "dependencies": "1"}
	]}`

	got := ParsePlan(raw, "x")
	require.Equal(t, StrategyJSON, got.Strategy)
	tasks := got.Plan.Tasks
	require.Len(t, tasks, 5)

	assert.Equal(t, models.ActorCustom, tasks[0].ActorType)
	assert.Equal(t, "poet-1", tasks[0].CustomActorID)
	assert.Equal(t, "CUSTOM:poet-1", tasks[0].ActorRef())
	assert.Equal(t, models.ActorResearcher, tasks[1].ActorType)
	assert.Equal(t, models.ActorResearcher, tasks[2].ActorType)
	assert.Equal(t, models.ActorCustom, tasks[3].ActorType)
	assert.Equal(t, "critic", tasks[3].CustomActorID)
	assert.Equal(t, models.ActorCoder, tasks[4].ActorType)
	assert.Equal(t, []string{"1"}, tasks[4].Dependencies)
	assert.Len(t, got.Notes, 2)
}

func TestRepairHelpers(t *testing.T) {
	assert.Equal(t, `{"a": "it's"}`, singleToDouble(`{'a': 'it\'s'}`))
	assert.Equal(t, `{"a": [1, 2]}`, outsideStrings(`{"a": [1, 2,]}`, func(s string) string {
		return trailingComma.ReplaceAllString(s, "$1")
	}))
	assert.Equal(t, `{"a": ", }"}`, outsideStrings(`{"a": ", }"}`, func(s string) string {
		return trailingComma.ReplaceAllString(s, "$1")
	}), "commas inside strings are kept")
	assert.Equal(t, `{"a": ["x"]}`, closeTruncated(`{"a": ["x`))
	assert.Equal(t, `{"a":null}`, closeTruncated(`{"a":`))
}

func TestFallbackPlanMultibyteGoal(t *testing.T) {
	goal := "a" + strings.Repeat("数据分析", 10)
	plan := FallbackPlan(goal)

	title := plan.Tasks[0].Title
	assert.True(t, utf8.ValidString(title), "title %q", title)
	assert.True(t, strings.HasPrefix(title, "Research: a数据分析"))
	assert.True(t, strings.HasSuffix(title, "..."))
}

func TestRunePrefix(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"aé", 2, "a"},
		{"aé", 3, "aé"},
		{"数据", 4, "数"},
		{"数据", 2, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, runePrefix(tt.in, tt.n), "runePrefix(%q, %d)", tt.in, tt.n)
	}
}
