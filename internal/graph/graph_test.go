package graph

import (
	"errors"
	"reflect"
	"testing"

	"github.com/ShayCichocki/quill/pkg/models"
)

func task(id string, deps ...string) *models.Task {
	return &models.Task{ID: id, Title: id, Status: models.TaskStatusPending, Dependencies: deps}
}

func TestNew(t *testing.T) {
	g := New()
	if n := len(g.Order()); n != 0 {
		t.Errorf("expected empty graph, got %d tasks", n)
	}
}

func TestBuildWithDependencies(t *testing.T) {
	g := New()
	err := g.Build([]*models.Task{
		task("a"),
		task("b", "a"),
		task("c", "a", "b"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if deps := g.GetDependencies("c"); len(deps) != 2 {
		t.Errorf("expected 2 dependencies for c, got %d", len(deps))
	}
	if got := g.GetDependents("a"); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Errorf("GetDependents(a) = %v, want [b c]", got)
	}
	if got := g.Roots(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("Roots() = %v, want [a]", got)
	}
	if got := g.Terminals(); !reflect.DeepEqual(got, []string{"c"}) {
		t.Errorf("Terminals() = %v, want [c]", got)
	}
}

func TestBuildUnknownDependency(t *testing.T) {
	g := New()
	err := g.Build([]*models.Task{task("a", "ghost")})
	if !errors.Is(err, ErrUnknownDependency) {
		t.Fatalf("expected ErrUnknownDependency, got %v", err)
	}
	if n := len(g.Order()); n != 1 {
		t.Errorf("graph should still be built, got %d tasks", n)
	}
	if g.IsReady("a") {
		t.Error("a task with an unknown dependency is never ready")
	}
}

func TestCycleDetection(t *testing.T) {
	g := New()
	err := g.Build([]*models.Task{task("a", "b"), task("b", "a")})
	if !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("expected ErrCycleDetected, got %v", err)
	}
	if _, err := g.TopologicalSort(); !errors.Is(err, ErrCycleDetected) {
		t.Errorf("TopologicalSort error = %v, want ErrCycleDetected", err)
	}
}

func TestTopologicalSortKeepsDeclarationOrder(t *testing.T) {
	g := New()
	if err := g.Build([]*models.Task{task("x"), task("y", "z"), task("z")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"x", "z", "y"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TopologicalSort() = %v, want %v", got, want)
	}
}

func TestReadiness(t *testing.T) {
	g := New()
	done := task("a")
	done.Status = models.TaskStatusCompleted
	if err := g.Build([]*models.Task{done, task("b", "a"), task("c", "b")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !g.IsComplete("a") || !g.IsReady("b") {
		t.Error("completed tasks should seed the graph and unblock b")
	}
	if g.IsReady("c") {
		t.Error("c should wait for b")
	}

	g.MarkComplete("b")
	if !g.IsReady("c") {
		t.Error("c should be ready after b completes")
	}
	if got := g.GetCompletedIDs(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("GetCompletedIDs() = %v, want [a b]", got)
	}
}

func TestDownstream(t *testing.T) {
	g := New()
	if err := g.Build([]*models.Task{
		task("a"),
		task("b", "a"),
		task("c", "b"),
		task("d"),
		task("e", "c", "d"),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := g.Downstream("b"); !reflect.DeepEqual(got, []string{"c", "e"}) {
		t.Errorf("Downstream(b) = %v, want [c e]", got)
	}
	if got := g.Downstream("e"); len(got) != 0 {
		t.Errorf("Downstream(e) = %v, want none", got)
	}
}
