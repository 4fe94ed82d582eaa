package composer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/quill/pkg/models"
)

func TestMaterialize(t *testing.T) {
	plan := &models.TaskPlan{
		MainGoal: "goal",
		Tasks: []models.PlannedTask{
			{Title: "collect", ActorType: models.ActorResearcher, Priority: models.PriorityHigh},
			{Title: "crunch", ActorType: models.ActorCoder, Dependencies: []string{"0", "9", "1"}},
			{Title: "tell", ActorType: models.ActorCustom, CustomActorID: "poet", Dependencies: []string{"1", "0"}, Priority: "URGENT"},
		},
	}

	m := Materialize(plan, "board-7")
	require.Len(t, m.Tasks, 3)
	require.Len(t, m.IDs, 3)
	assert.NotEqual(t, m.IDs[0], m.IDs[1])

	for i, task := range m.Tasks {
		assert.Equal(t, m.IDs[i], task.ID)
		assert.Equal(t, "board-7", task.BoardID)
		assert.Equal(t, models.TaskStatusPending, task.Status)
		assert.False(t, task.CreatedAt.IsZero())
	}

	assert.Empty(t, m.Tasks[0].Dependencies)
	assert.Equal(t, []string{m.IDs[0]}, m.Tasks[1].Dependencies)
	assert.Equal(t, []string{m.IDs[1], m.IDs[0]}, m.Tasks[2].Dependencies)
	assert.Equal(t, "poet", m.Tasks[2].CustomActorID)
	assert.Equal(t, models.PriorityHigh, m.Tasks[0].Priority)
	assert.Equal(t, models.PriorityMedium, m.Tasks[2].Priority)
}
