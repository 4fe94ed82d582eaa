package models

import (
	"fmt"
	"strings"
)

// PlannedTask is one node of a plan before materialization.
// Dependencies are indices into the same plan, kept as strings.
type PlannedTask struct {
	Title               string    `json:"title"`
	Description         string    `json:"description"`
	ActorType           ActorType `json:"actorType"`
	CustomActorID       string    `json:"customActorId,omitempty"`
	Dependencies        []string  `json:"dependencies"`
	Priority            Priority  `json:"priority"`
	EstimatedCompletion string    `json:"estimatedCompletion,omitempty"`
}

// ActorRef renders the actor reference the way planner output spells it.
func (p PlannedTask) ActorRef() string {
	if p.ActorType == ActorCustom {
		return CustomActorPrefix + p.CustomActorID
	}
	return string(p.ActorType)
}

// TaskPlan is the planner's output.
type TaskPlan struct {
	MainGoal string        `json:"mainGoal"`
	Tasks    []PlannedTask `json:"tasks"`
}

// Summary returns a one-line human readable description of the plan.
func (p *TaskPlan) Summary() string {
	if p == nil {
		return "empty plan"
	}
	counts := make(map[ActorType]int)
	var order []ActorType
	for _, t := range p.Tasks {
		if counts[t.ActorType] == 0 {
			order = append(order, t.ActorType)
		}
		counts[t.ActorType]++
	}
	parts := make([]string, 0, len(order))
	for _, a := range order {
		parts = append(parts, fmt.Sprintf("%d %s", counts[a], a))
	}
	return fmt.Sprintf("%q: %d tasks (%s)", p.MainGoal, len(p.Tasks), strings.Join(parts, ", "))
}
