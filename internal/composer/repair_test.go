package composer

import (
	"errors"
	"math/rand"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/quill/internal/graph"
	"github.com/ShayCichocki/quill/pkg/models"
)

func planOf(deps ...[]string) *models.TaskPlan {
	plan := &models.TaskPlan{MainGoal: "goal"}
	for i, d := range deps {
		plan.Tasks = append(plan.Tasks, models.PlannedTask{
			Title:        "task " + strconv.Itoa(i),
			ActorType:    models.ActorResearcher,
			Dependencies: d,
			Priority:     models.PriorityMedium,
		})
	}
	return plan
}

func TestRepairDropsInvalidReferences(t *testing.T) {
	plan := planOf(nil, []string{"5", "x", "-1", "1", "0", "0"})

	report := Repair(plan)
	assert.Equal(t, []string{"0"}, plan.Tasks[1].Dependencies)
	assert.Equal(t, 3, report.Count(RepairInvalidReference))
	assert.Equal(t, 1, report.Count(RepairSelfReference))
	assert.Equal(t, 1, report.Count(RepairDuplicate))
	assert.Equal(t, 1, report.FinalTask)
}

func TestRepairMutualCycle(t *testing.T) {
	plan := planOf([]string{"1"}, []string{"0"})

	report := Repair(plan)
	assert.Equal(t, 1, report.Count(RepairCycleBroken))
	assert.Empty(t, plan.Tasks[0].Dependencies)
	assert.Equal(t, []string{"0"}, plan.Tasks[1].Dependencies, "exactly one edge remains")
}

func TestRepairLongCycle(t *testing.T) {
	// 0 -> 2 -> 1 -> 0, plus 3 -> 2.
	plan := planOf([]string{"2"}, []string{"0"}, []string{"1"}, []string{"2"})

	report := Repair(plan)
	require.Equal(t, 1, report.Count(RepairCycleBroken))
	step := report.Steps[0]
	assert.Equal(t, 0, step.Task)
	assert.Equal(t, 2, step.Dependency)
	assert.Empty(t, plan.Tasks[0].Dependencies)
}

func TestRepairThreeIndependentNodes(t *testing.T) {
	plan := planOf(nil, nil, nil)

	report := Repair(plan)
	assert.Contains(t, plan.Tasks[1].Dependencies, "0")
	assert.Contains(t, plan.Tasks[2].Dependencies, "0")
	assert.Empty(t, plan.Tasks[0].Dependencies)
	assert.Equal(t, 2, report.Count(RepairIsolatedAttached))
	assert.Equal(t, 2, report.FinalTask)
}

func TestRepairIsolatedAttachToRoot(t *testing.T) {
	plan := planOf(nil, []string{"0"}, nil)

	report := Repair(plan)
	assert.Equal(t, []string{"0"}, plan.Tasks[2].Dependencies[:1])
	assert.Equal(t, 1, report.Count(RepairIsolatedAttached))
	// Terminals 1 and 2 converge on 2.
	assert.Equal(t, 2, report.FinalTask)
	assert.Contains(t, plan.Tasks[2].Dependencies, "1")
}

func TestRepairPriorityTiers(t *testing.T) {
	plan := planOf(nil, nil, nil, nil)
	plan.Tasks[0].Priority = models.PriorityLow
	plan.Tasks[1].Priority = models.PriorityHigh
	plan.Tasks[2].Priority = models.PriorityHigh
	plan.Tasks[3].Priority = models.PriorityMedium

	report := Repair(plan)
	assert.Empty(t, plan.Tasks[1].Dependencies, "highest priority node anchors")
	assert.Equal(t, []string{"1"}, plan.Tasks[2].Dependencies)
	assert.Equal(t, []string{"2"}, plan.Tasks[3].Dependencies)
	assert.Equal(t, []string{"3"}, plan.Tasks[0].Dependencies)
	assert.Equal(t, 0, report.FinalTask)
	assert.Zero(t, report.Count(RepairTerminalUnified))
}

func TestRepairPrefersIntegrationTerminal(t *testing.T) {
	plan := planOf(nil, []string{"0"}, []string{"0"})
	plan.Tasks[1].Title = "Integrate the findings"
	plan.Tasks[2].Title = "Side report"

	report := Repair(plan)
	assert.Equal(t, 1, report.FinalTask)
	assert.Equal(t, []string{"0", "2"}, plan.Tasks[1].Dependencies)
	assert.Equal(t, 1, report.Count(RepairTerminalUnified))
}

func TestRepairSingleTask(t *testing.T) {
	plan := planOf([]string{"0"})

	report := Repair(plan)
	assert.Empty(t, plan.Tasks[0].Dependencies)
	assert.Equal(t, 0, report.FinalTask)

	empty := &models.TaskPlan{MainGoal: "nothing"}
	assert.Equal(t, -1, Repair(empty).FinalTask)
}

// Randomized plans with back references and junk always repair into an
// acyclic graph with one terminal and no isolated nodes.
func TestRepairRandomizedPlans(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	priorities := []models.Priority{models.PriorityCritical, models.PriorityHigh, models.PriorityMedium, models.PriorityLow}

	for round := 0; round < 300; round++ {
		n := 2 + rng.Intn(11)
		plan := &models.TaskPlan{MainGoal: "random"}
		for i := 0; i < n; i++ {
			var deps []string
			for k := rng.Intn(4); k > 0; k-- {
				switch rng.Intn(6) {
				case 0:
					deps = append(deps, "junk")
				case 1:
					deps = append(deps, strconv.Itoa(n+rng.Intn(3)))
				default:
					deps = append(deps, strconv.Itoa(rng.Intn(n)))
				}
			}
			plan.Tasks = append(plan.Tasks, models.PlannedTask{
				Title:        "t" + strconv.Itoa(i),
				ActorType:    models.ActorResearcher,
				Dependencies: deps,
				Priority:     priorities[rng.Intn(len(priorities))],
			})
		}

		report := Repair(plan)
		mat := Materialize(plan, "board")

		g := graph.New()
		err := g.Build(mat.Tasks)
		require.False(t, errors.Is(err, graph.ErrCycleDetected), "round %d: cycle after repair", round)
		require.NoError(t, err, "round %d", round)

		terminals := g.Terminals()
		require.Len(t, terminals, 1, "round %d: terminals %v", round, terminals)
		assert.Equal(t, mat.IDs[report.FinalTask], terminals[0], "round %d", round)

		for _, id := range g.Order() {
			isolated := len(g.GetDependencies(id)) == 0 && len(g.GetDependents(id)) == 0
			require.False(t, isolated, "round %d: %s isolated", round, id)
		}
	}
}
