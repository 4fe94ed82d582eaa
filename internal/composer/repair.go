package composer

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ShayCichocki/quill/pkg/models"
)

// RepairKind classifies one change made to a plan's dependency graph.
type RepairKind string

const (
	RepairInvalidReference RepairKind = "invalid_reference"
	RepairSelfReference    RepairKind = "self_reference"
	RepairDuplicate        RepairKind = "duplicate_dependency"
	RepairCycleBroken      RepairKind = "cycle_broken"
	RepairIsolatedAttached RepairKind = "isolated_attached"
	RepairTerminalUnified  RepairKind = "terminal_unified"
)

// RepairStep is one change. Dependency is -1 when the reference was not a valid index.
type RepairStep struct {
	Kind       RepairKind `json:"kind"`
	Task       int        `json:"task"`
	Dependency int        `json:"dependency"`
	Raw        string     `json:"raw,omitempty"`
	Detail     string     `json:"detail"`
}

// RepairReport lists every change Repair made, in order.
type RepairReport struct {
	Steps []RepairStep `json:"steps"`
	// FinalTask is the index of the single terminal node, or -1 for an empty plan.
	FinalTask int `json:"final_task"`
}

// Count returns the number of steps of a kind.
func (r RepairReport) Count(kind RepairKind) int {
	n := 0
	for _, s := range r.Steps {
		if s.Kind == kind {
			n++
		}
	}
	return n
}

// Changed reports whether any dependency was modified.
func (r RepairReport) Changed() bool { return len(r.Steps) > 0 }

var finalTitleHints = []string{"integrat", "final", "complet"}

// Repair rewrites the plan's dependencies in place so that the graph
// references only valid indices, is acyclic, has no isolated nodes and
// converges on a single terminal node. Plans with fewer than two tasks only
// get reference cleanup.
func Repair(plan *models.TaskPlan) RepairReport {
	n := len(plan.Tasks)
	report := RepairReport{FinalTask: n - 1}
	if n == 0 {
		return report
	}

	r := &repairer{plan: plan, deps: make([][]int, n), report: &report}
	r.cleanReferences()
	r.breakCycles()
	if n >= 2 {
		r.attachIsolated()
		report.FinalTask = r.unifyTerminals()
	} else {
		report.FinalTask = 0
	}
	r.writeBack()
	return report
}

type repairer struct {
	plan   *models.TaskPlan
	deps   [][]int
	report *RepairReport
}

func (r *repairer) record(kind RepairKind, task, dep int, raw, format string, args ...any) {
	r.report.Steps = append(r.report.Steps, RepairStep{
		Kind:       kind,
		Task:       task,
		Dependency: dep,
		Raw:        raw,
		Detail:     fmt.Sprintf(format, args...),
	})
}

// cleanReferences drops non-numeric, out-of-range, self and duplicate references.
func (r *repairer) cleanReferences() {
	n := len(r.plan.Tasks)
	for i, t := range r.plan.Tasks {
		seen := make(map[int]bool)
		for _, raw := range t.Dependencies {
			idx, err := strconv.Atoi(strings.TrimSpace(raw))
			switch {
			case err != nil || idx < 0 || idx >= n:
				r.record(RepairInvalidReference, i, -1, raw, "task %d: dropped invalid dependency %q", i, raw)
			case idx == i:
				r.record(RepairSelfReference, i, idx, raw, "task %d: dropped dependency on itself", i)
			case seen[idx]:
				r.record(RepairDuplicate, i, idx, raw, "task %d: dropped duplicate dependency on %d", i, idx)
			default:
				seen[idx] = true
				r.deps[i] = append(r.deps[i], idx)
			}
		}
	}
}

// breakCycles removes one edge per detected cycle until the graph is acyclic.
// The removed edge is the cycle's forward reference (a task depending on a
// later task) with the smallest (task, dependency) pair. Every cycle has one.
func (r *repairer) breakCycles() {
	for {
		cycle := r.findCycle()
		if cycle == nil {
			return
		}
		from, to := -1, -1
		for k := 0; k < len(cycle); k++ {
			a, b := cycle[k], cycle[(k+1)%len(cycle)]
			if a < b && (from < 0 || a < from || (a == from && b < to)) {
				from, to = a, b
			}
		}
		r.removeEdge(from, to)
		r.record(RepairCycleBroken, from, to, "", "task %d: removed dependency on %d to break cycle %v", from, to, cycle)
	}
}

// findCycle returns the nodes of one cycle in edge order (each depends on the
// next, the last on the first), or nil.
func (r *repairer) findCycle() []int {
	n := len(r.deps)
	const (
		white = iota
		gray
		black
	)
	color := make([]int, n)
	var path []int
	var found []int

	var visit func(u int) bool
	visit = func(u int) bool {
		color[u] = gray
		path = append(path, u)
		for _, v := range r.deps[u] {
			switch color[v] {
			case gray:
				for k, p := range path {
					if p == v {
						found = append([]int(nil), path[k:]...)
						break
					}
				}
				return true
			case white:
				if visit(v) {
					return true
				}
			}
		}
		path = path[:len(path)-1]
		color[u] = black
		return false
	}

	for u := 0; u < n; u++ {
		if color[u] == white && visit(u) {
			return found
		}
	}
	return nil
}

func (r *repairer) removeEdge(from, to int) {
	kept := r.deps[from][:0]
	for _, d := range r.deps[from] {
		if d != to {
			kept = append(kept, d)
		}
	}
	r.deps[from] = kept
}

func (r *repairer) hasDependents() []bool {
	out := make([]bool, len(r.deps))
	for _, ds := range r.deps {
		for _, d := range ds {
			out[d] = true
		}
	}
	return out
}

// attachIsolated connects nodes with neither dependencies nor dependents.
// They hang off the first root when one exists; otherwise they are chained
// by priority tiers.
func (r *repairer) attachIsolated() {
	dependents := r.hasDependents()
	var isolated []int
	root := -1
	for i := range r.deps {
		if len(r.deps[i]) != 0 {
			continue
		}
		if dependents[i] {
			if root < 0 {
				root = i
			}
			continue
		}
		isolated = append(isolated, i)
	}
	if len(isolated) == 0 {
		return
	}

	if root >= 0 {
		for _, i := range isolated {
			r.deps[i] = append(r.deps[i], root)
			r.record(RepairIsolatedAttached, i, root, "", "task %d: isolated, now depends on root %d", i, root)
		}
		return
	}

	sort.SliceStable(isolated, func(a, b int) bool {
		pa := r.plan.Tasks[isolated[a]].Priority.Rank()
		pb := r.plan.Tasks[isolated[b]].Priority.Rank()
		if pa != pb {
			return pa < pb
		}
		return isolated[a] < isolated[b]
	})

	anchor := isolated[0]
	tierOf := func(i int) int { return r.plan.Tasks[i].Priority.Rank() }
	prevLast := anchor
	currentTier := tierOf(anchor)
	tierLast := anchor
	for _, i := range isolated[1:] {
		if t := tierOf(i); t != currentTier {
			currentTier = t
			prevLast = tierLast
		}
		target := prevLast
		if currentTier == tierOf(anchor) {
			target = anchor
		}
		r.deps[i] = append(r.deps[i], target)
		r.record(RepairIsolatedAttached, i, target, "", "task %d: isolated, now depends on %d (priority tier)", i, target)
		tierLast = i
	}
}

// unifyTerminals makes one terminal node depend on every other terminal and
// returns its index.
func (r *repairer) unifyTerminals() int {
	dependents := r.hasDependents()
	var terminals []int
	for i := range r.deps {
		if !dependents[i] {
			terminals = append(terminals, i)
		}
	}
	if len(terminals) == 0 {
		return len(r.deps) - 1
	}

	final := terminals[len(terminals)-1]
	for k := len(terminals) - 1; k >= 0; k-- {
		title := strings.ToLower(r.plan.Tasks[terminals[k]].Title)
		if containsAny(title, finalTitleHints) {
			final = terminals[k]
			break
		}
	}

	for _, t := range terminals {
		if t == final {
			continue
		}
		r.deps[final] = append(r.deps[final], t)
		r.record(RepairTerminalUnified, final, t, "", "task %d: final task now depends on terminal %d", final, t)
	}
	return final
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func (r *repairer) writeBack() {
	for i := range r.plan.Tasks {
		deps := make([]string, 0, len(r.deps[i]))
		for _, d := range r.deps[i] {
			deps = append(deps, strconv.Itoa(d))
		}
		r.plan.Tasks[i].Dependencies = deps
	}
}
