// Package graph provides an ordered dependency graph for task scheduling.
package graph

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ShayCichocki/quill/pkg/models"
)

// ErrCycleDetected indicates a circular dependency was found in the task graph.
var ErrCycleDetected = errors.New("circular dependency detected")

// ErrUnknownDependency indicates a task depends on an id outside the graph.
var ErrUnknownDependency = errors.New("unknown dependency")

// DependencyGraph represents a directed graph of task dependencies.
// Tasks are nodes, and edges represent "blocked by" relationships.
// Iteration always follows the order tasks were given to Build.
type DependencyGraph struct {
	mu sync.RWMutex
	// order is the declaration order of task IDs.
	order []string
	// nodes maps task ID to the task itself.
	nodes map[string]*models.Task
	// edges maps task ID to IDs of tasks it depends on (is blocked by).
	edges map[string][]string
	// completed tracks which tasks have been marked complete.
	completed map[string]bool
	debugLog  func(format string, args ...interface{})
}

// New creates a new empty dependency graph.
func New() *DependencyGraph {
	return &DependencyGraph{
		nodes:     make(map[string]*models.Task),
		edges:     make(map[string][]string),
		completed: make(map[string]bool),
		debugLog:  func(format string, args ...interface{}) {},
	}
}

// SetDebugLog sets the debug logging function.
func (g *DependencyGraph) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		g.debugLog = fn
	}
}

// Build constructs the dependency graph from a slice of tasks.
// Tasks already completed are marked complete. The graph is always built;
// the returned error reports unknown dependencies or a cycle.
func (g *DependencyGraph) Build(tasks []*models.Task) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.debugLog("[graph.Build] building graph from %d tasks", len(tasks))

	for _, task := range tasks {
		if _, dup := g.nodes[task.ID]; !dup {
			g.order = append(g.order, task.ID)
		}
		g.nodes[task.ID] = task
		g.edges[task.ID] = nil
		if task.Status == models.TaskStatusCompleted {
			g.completed[task.ID] = true
		}
	}

	var errs []error
	for _, task := range tasks {
		for _, depID := range task.Dependencies {
			if _, exists := g.nodes[depID]; !exists {
				errs = append(errs, fmt.Errorf("task %s depends on %s: %w", task.ID, depID, ErrUnknownDependency))
			}
			g.edges[task.ID] = append(g.edges[task.ID], depID)
		}
	}

	if g.hasCycleLocked() {
		errs = append(errs, ErrCycleDetected)
	}

	g.debugLog("[graph.Build] graph built with %d nodes", len(g.nodes))
	return errors.Join(errs...)
}

// hasCycleLocked is the internal implementation that assumes the lock is held.
// Uses depth-first search with coloring to detect back edges.
func (g *DependencyGraph) hasCycleLocked() bool {
	// 0 = white (unvisited), 1 = gray (in progress), 2 = black (done).
	colors := make(map[string]int, len(g.nodes))

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1
		for _, depID := range g.edges[id] {
			if _, known := g.nodes[depID]; !known {
				continue
			}
			switch colors[depID] {
			case 1:
				return true
			case 0:
				if visit(depID) {
					return true
				}
			}
		}
		colors[id] = 2
		return false
	}

	for _, id := range g.order {
		if colors[id] == 0 && visit(id) {
			return true
		}
	}
	return false
}

// TopologicalSort returns task IDs in an order where all dependencies
// come before the tasks that depend on them. Ties keep declaration order.
func (g *DependencyGraph) TopologicalSort() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.hasCycleLocked() {
		return nil, ErrCycleDetected
	}

	visited := make(map[string]bool)
	result := make([]string, 0, len(g.order))

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, depID := range g.edges[id] {
			if _, known := g.nodes[depID]; known {
				visit(depID)
			}
		}
		result = append(result, id)
	}

	for _, id := range g.order {
		visit(id)
	}
	return result, nil
}

// IsReady reports whether every dependency of a task is complete.
// A dependency outside the graph is never satisfied.
func (g *DependencyGraph) IsReady(taskID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.isReadyLocked(taskID)
}

func (g *DependencyGraph) isReadyLocked(taskID string) bool {
	for _, depID := range g.edges[taskID] {
		if !g.completed[depID] {
			return false
		}
	}
	return true
}

// MarkComplete marks a task as completed in the graph.
func (g *DependencyGraph) MarkComplete(taskID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.debugLog("[graph.MarkComplete] %s", taskID)
	g.completed[taskID] = true
}

// IsComplete reports whether a task was marked complete.
func (g *DependencyGraph) IsComplete(taskID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.completed[taskID]
}

// GetTask returns the task for a given ID, or nil if not found.
func (g *DependencyGraph) GetTask(taskID string) *models.Task {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[taskID]
}

// Order returns the task IDs in declaration order.
func (g *DependencyGraph) Order() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.order...)
}

// GetDependencies returns the IDs of tasks that the given task depends on.
func (g *DependencyGraph) GetDependencies(taskID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.edges[taskID]...)
}

// GetDependents returns, in declaration order, the IDs of tasks that depend on the given task.
func (g *DependencyGraph) GetDependents(taskID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.dependentsLocked(taskID)
}

func (g *DependencyGraph) dependentsLocked(taskID string) []string {
	var dependents []string
	for _, id := range g.order {
		for _, depID := range g.edges[id] {
			if depID == taskID {
				dependents = append(dependents, id)
				break
			}
		}
	}
	return dependents
}

// Downstream returns every task that transitively depends on the given task.
func (g *DependencyGraph) Downstream(taskID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := map[string]bool{taskID: true}
	queue := []string{taskID}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, d := range g.dependentsLocked(cur) {
			if !seen[d] {
				seen[d] = true
				queue = append(queue, d)
			}
		}
	}

	var out []string
	for _, id := range g.order {
		if id != taskID && seen[id] {
			out = append(out, id)
		}
	}
	return out
}

// Roots returns the tasks without dependencies, in declaration order.
func (g *DependencyGraph) Roots() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var roots []string
	for _, id := range g.order {
		if len(g.edges[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// Terminals returns the tasks nothing depends on, in declaration order.
func (g *DependencyGraph) Terminals() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	hasDependents := make(map[string]bool)
	for _, deps := range g.edges {
		for _, d := range deps {
			hasDependents[d] = true
		}
	}
	var terminals []string
	for _, id := range g.order {
		if !hasDependents[id] {
			terminals = append(terminals, id)
		}
	}
	return terminals
}

// GetCompletedIDs returns the IDs of all tasks marked as completed, in declaration order.
func (g *DependencyGraph) GetCompletedIDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ids []string
	for _, id := range g.order {
		if g.completed[id] {
			ids = append(ids, id)
		}
	}
	return ids
}
