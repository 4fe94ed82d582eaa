// Package actor implements the executors that run tasks: the shared
// lifecycle in Base plus the planner and the specialized actors.
package actor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ShayCichocki/quill/internal/config"
	"github.com/ShayCichocki/quill/internal/gateway"
	"github.com/ShayCichocki/quill/internal/kernel"
	"github.com/ShayCichocki/quill/internal/logging"
	"github.com/ShayCichocki/quill/internal/ratequeue"
	"github.com/ShayCichocki/quill/internal/state"
	"github.com/ShayCichocki/quill/pkg/models"
)

var (
	// ErrActorDisabled is returned when a disabled actor is asked to run a task.
	// Task state is never touched in that case.
	ErrActorDisabled = errors.New("actor disabled")

	// ErrResultFailure marks an execution that finished but reported an
	// unsuccessful outcome (code that ran and failed).
	ErrResultFailure = errors.New("execution reported failure")
)

// Actor runs tasks of one kind.
type Actor interface {
	Type() models.ActorType
	// ExecuteTask runs the full lifecycle for task and returns the typed result.
	ExecuteTask(ctx context.Context, task *models.Task) (any, error)
	// Fail records err on task and moves it to failed.
	Fail(ctx context.Context, task *models.Task, err error) error
}

// Executor is the actor-specific step of the lifecycle.
type Executor interface {
	Execute(ctx context.Context, task *models.Task) (any, error)
}

// Failer is implemented by results that can report a failed outcome
// without the execution itself returning an error.
type Failer interface {
	Failure() error
}

// Deps are the collaborators every actor shares. One Queue serves the whole process.
type Deps struct {
	Store   state.Store
	Gateway gateway.Gateway
	Queue   *ratequeue.Queue
	Config  *config.Live
	Backend kernel.Backend
	Kernels kernel.Resolver
	Logger  *logging.Logger
}

// Base carries the lifecycle shared by every actor.
type Base struct {
	deps      Deps
	actorType models.ActorType
	exec      Executor
	logger    *logging.Logger

	mu        sync.Mutex
	lastFile  models.ActorConfig
	lastKnown *models.ActorConfig
	current   *models.ActorConfig
}

// NewBase creates the lifecycle for an actor kind. exec is the actor-specific step.
func NewBase(deps Deps, t models.ActorType, exec Executor) *Base {
	if deps.Config == nil {
		deps.Config = config.NewLive(nil)
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	return &Base{
		deps:      deps,
		actorType: t,
		exec:      exec,
		logger:    deps.Logger.With("actor." + string(t)),
	}
}

// Type implements Actor.
func (b *Base) Type() models.ActorType { return b.actorType }

// Deps returns the collaborators the actor was built with.
func (b *Base) Deps() Deps { return b.deps }

// Logger returns the actor's component logger.
func (b *Base) Logger() *logging.Logger { return b.logger }

// ExecuteTask implements Actor.
func (b *Base) ExecuteTask(ctx context.Context, task *models.Task) (any, error) {
	if !b.knownConfig().Enabled {
		return nil, fmt.Errorf("%w: %s", ErrActorDisabled, b.actorType)
	}

	cfg, err := b.reloadConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("reload %s config: %w", b.actorType, err)
	}
	if !cfg.Enabled {
		return nil, fmt.Errorf("%w: %s", ErrActorDisabled, b.actorType)
	}

	now := time.Now()
	task.Status = models.TaskStatusInProgress
	task.StartedAt = &now
	task.CompletedAt = nil
	task.Error = ""
	if err := b.deps.Store.UpdateTaskStatus(ctx, task); err != nil {
		return nil, fmt.Errorf("mark task %s in progress: %w", task.ID, err)
	}
	b.logger.Debugf("executing task %s (%q)", task.ID, task.Title)

	result, execErr := b.exec.Execute(ctx, task)
	if execErr != nil {
		return nil, b.Fail(ctx, task, execErr)
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return nil, b.Fail(ctx, task, fmt.Errorf("marshal result: %w", err))
	}
	task.Result = raw

	if f, ok := result.(Failer); ok {
		if failure := f.Failure(); failure != nil {
			task.Status = models.TaskStatusFailed
			task.Error = failure.Error()
			if err := b.deps.Store.UpdateTaskStatus(ctx, task); err != nil {
				return result, fmt.Errorf("mark task %s failed: %w", task.ID, err)
			}
			b.logger.Infof("task %s finished with a failing result: %v", task.ID, failure)
			return result, fmt.Errorf("task %s: %w: %w", task.ID, ErrResultFailure, failure)
		}
	}

	done := time.Now()
	task.Status = models.TaskStatusCompleted
	task.CompletedAt = &done
	if err := b.deps.Store.UpdateTaskStatus(ctx, task); err != nil {
		return result, fmt.Errorf("mark task %s completed: %w", task.ID, err)
	}
	b.logger.Debugf("task %s completed", task.ID)
	return result, nil
}

// Fail implements Actor. The returned error wraps cause.
func (b *Base) Fail(ctx context.Context, task *models.Task, cause error) error {
	task.Status = models.TaskStatusFailed
	task.Error = cause.Error()
	task.CompletedAt = nil
	if err := b.deps.Store.UpdateTaskStatus(ctx, task); err != nil {
		b.logger.Errorf("record failure of task %s: %v", task.ID, err)
		return fmt.Errorf("task %s: %w (recording failure: %v)", task.ID, cause, err)
	}
	b.logger.Infof("task %s failed: %v", task.ID, cause)
	return fmt.Errorf("task %s: %w", task.ID, cause)
}

// Config returns the configuration the actor resolved at its last reload.
func (b *Base) Config() models.ActorConfig {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current != nil {
		return *b.current
	}
	return b.fileConfigLocked()
}

func (b *Base) knownConfig() models.ActorConfig {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.lastKnown != nil {
		return *b.lastKnown
	}
	return b.fileConfigLocked()
}

func (b *Base) fileConfigLocked() models.ActorConfig {
	return b.deps.Config.ActorDefaults(b.actorType)
}

// reloadConfig layers the live config file (built-in defaults included), then
// the last known config, then the persisted row. The last known layer is
// dropped once the file layer changes, and it stands in for the row when the
// store cannot be read.
func (b *Base) reloadConfig(ctx context.Context) (models.ActorConfig, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	file := b.fileConfigLocked()
	cfg := file
	if b.lastKnown != nil && b.lastFile == file {
		cfg = cfg.Merge(*b.lastKnown)
	}

	persisted, err := b.deps.Store.GetActorConfig(ctx, b.actorType)
	switch {
	case err == nil:
		cfg = cfg.Merge(*persisted)
	case errors.Is(err, state.ErrNotFound):
	case b.lastKnown != nil:
		b.logger.Warnf("using last known config: %v", err)
	default:
		return models.ActorConfig{}, err
	}

	b.lastFile = file
	b.lastKnown = &cfg
	b.current = &cfg
	return cfg, nil
}

// ResolveConfig returns the effective configuration for an actor kind
// without executing anything. The planner uses it to list enabled actors.
func ResolveConfig(ctx context.Context, deps Deps, t models.ActorType) (models.ActorConfig, error) {
	live := deps.Config
	if live == nil {
		live = config.NewLive(nil)
	}
	cfg := live.ActorDefaults(t)
	persisted, err := deps.Store.GetActorConfig(ctx, t)
	if err == nil {
		return cfg.Merge(*persisted), nil
	}
	if errors.Is(err, state.ErrNotFound) {
		return cfg, nil
	}
	return cfg, err
}
