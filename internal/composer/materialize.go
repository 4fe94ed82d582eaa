package composer

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/quill/pkg/models"
)

// Materialized is a plan turned into tasks. IDs maps plan index to task id.
type Materialized struct {
	Tasks []*models.Task
	IDs   []string
}

// Materialize turns each planned task into a pending task with a fresh id and
// resolves index dependencies to ids. References that are not valid indices
// are dropped; run Repair first to have them recorded.
func Materialize(plan *models.TaskPlan, boardID string) *Materialized {
	m := &Materialized{
		Tasks: make([]*models.Task, len(plan.Tasks)),
		IDs:   make([]string, len(plan.Tasks)),
	}
	for i := range plan.Tasks {
		m.IDs[i] = uuid.NewString()
	}

	now := time.Now()
	for i, pt := range plan.Tasks {
		deps := make([]string, 0, len(pt.Dependencies))
		for _, raw := range pt.Dependencies {
			idx, err := strconv.Atoi(raw)
			if err != nil || idx < 0 || idx >= len(plan.Tasks) || idx == i {
				continue
			}
			deps = append(deps, m.IDs[idx])
		}
		m.Tasks[i] = &models.Task{
			ID:            m.IDs[i],
			BoardID:       boardID,
			Title:         pt.Title,
			Description:   pt.Description,
			ActorType:     pt.ActorType,
			CustomActorID: pt.CustomActorID,
			Dependencies:  deps,
			Priority:      models.ParsePriority(string(pt.Priority)),
			Status:        models.TaskStatusPending,
			CreatedAt:     now,
		}
	}
	return m
}
