package actor

import (
	"fmt"
	"sync"

	"github.com/ShayCichocki/quill/pkg/models"
)

// Constructor builds a fresh actor. customID is only meaningful for custom actors.
type Constructor func(deps Deps, customID string) (Actor, error)

// Registry maps actor kinds to constructors.
type Registry struct {
	deps Deps

	mu    sync.RWMutex
	ctors map[models.ActorType]Constructor
}

// NewRegistry creates a registry with the planner and every worker kind registered.
func NewRegistry(deps Deps) *Registry {
	r := &Registry{deps: deps, ctors: make(map[models.ActorType]Constructor)}
	r.Register(models.ActorPlanner, func(d Deps, _ string) (Actor, error) { return NewPlanner(d), nil })
	r.Register(models.ActorResearcher, func(d Deps, _ string) (Actor, error) { return NewResearcher(d), nil })
	r.Register(models.ActorAnalyst, func(d Deps, _ string) (Actor, error) { return NewAnalyst(d), nil })
	r.Register(models.ActorCoder, func(d Deps, _ string) (Actor, error) { return NewCoder(d), nil })
	r.Register(models.ActorSummarizer, func(d Deps, _ string) (Actor, error) { return NewSummarizer(d), nil })
	r.Register(models.ActorWriter, func(d Deps, _ string) (Actor, error) { return NewWriter(d), nil })
	r.Register(models.ActorCustom, func(d Deps, id string) (Actor, error) {
		if id == "" {
			return nil, fmt.Errorf("custom actor requires an id")
		}
		return NewCustom(d, id), nil
	})
	return r
}

// Register adds or replaces the constructor for an actor kind.
func (r *Registry) Register(t models.ActorType, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[t] = ctor
}

// Deps returns the collaborators handed to every constructor.
func (r *Registry) Deps() Deps { return r.deps }

// New builds a fresh actor of kind t.
func (r *Registry) New(t models.ActorType, customID string) (Actor, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[t]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no actor registered for %q", t)
	}
	return ctor(r.deps, customID)
}

// ForTask builds a fresh actor for the task's kind.
func (r *Registry) ForTask(task *models.Task) (Actor, error) {
	return r.New(task.ActorType, task.CustomActorID)
}
