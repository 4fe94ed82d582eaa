package composer

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/quill/internal/actor"
	"github.com/ShayCichocki/quill/internal/config"
	"github.com/ShayCichocki/quill/internal/gateway"
	"github.com/ShayCichocki/quill/internal/kernel"
	"github.com/ShayCichocki/quill/internal/logging"
	"github.com/ShayCichocki/quill/internal/ratequeue"
	"github.com/ShayCichocki/quill/internal/state"
	"github.com/ShayCichocki/quill/pkg/models"
)

// routingGateway answers each prompt with the reply of the first matching route.
type routingGateway struct {
	mu      sync.Mutex
	routes  []route
	prompts []string
}

type route struct {
	contains string
	replies  []string
}

func (g *routingGateway) on(contains string, replies ...string) *routingGateway {
	g.routes = append(g.routes, route{contains: contains, replies: replies})
	return g
}

func (g *routingGateway) Generate(ctx context.Context, providerID, credential string, req gateway.Request, modelHint, safetyHint string) (*gateway.Response, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, req.Prompt)
	for i := range g.routes {
		r := &g.routes[i]
		if !strings.Contains(req.Prompt, r.contains) {
			continue
		}
		text := r.replies[0]
		if len(r.replies) > 1 {
			r.replies = r.replies[1:]
		}
		return &gateway.Response{Text: text}, nil
	}
	return &gateway.Response{Text: "Done.\n- ok"}, nil
}

func (g *routingGateway) promptsContaining(s string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []string
	for _, p := range g.prompts {
		if strings.Contains(p, s) {
			out = append(out, p)
		}
	}
	return out
}

type staticKernels struct{}

func (staticKernels) KernelFor(ctx context.Context, language string) (*kernel.Kernel, error) {
	return &kernel.Kernel{Language: kernel.NormalizeLanguage(language), Command: "python3"}, nil
}

type scriptedBackend struct {
	mu   sync.Mutex
	runs []*kernel.Execution
}

func (b *scriptedBackend) Execute(ctx context.Context, k *kernel.Kernel, code string) (*kernel.Execution, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.runs) == 0 {
		return &kernel.Execution{Success: true, Output: "ok"}, nil
	}
	run := b.runs[0]
	b.runs = b.runs[1:]
	return run, nil
}

func newTestDeps(t *testing.T, gw gateway.Gateway) actor.Deps {
	t.Helper()
	db, err := state.Open(filepath.Join(t.TempDir(), "quill.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })

	cfg := config.Default()
	cfg.Engine.TaskPacing = 0
	return actor.Deps{
		Store:   db,
		Gateway: gw,
		Queue:   ratequeue.New(0, logging.NopLogger()),
		Config:  config.NewLive(cfg),
		Backend: &scriptedBackend{},
		Kernels: staticKernels{},
		Logger:  logging.NopLogger(),
	}
}

func newTestComposer(t *testing.T, deps actor.Deps) (*Composer, *actor.Registry) {
	t.Helper()
	reg := actor.NewRegistry(deps)
	Register(reg)
	return New(reg), reg
}

// execFunc adapts a function to actor.Executor.
type execFunc func(ctx context.Context, task *models.Task) (any, error)

func (f execFunc) Execute(ctx context.Context, task *models.Task) (any, error) { return f(ctx, task) }

// recorder registers a fake researcher that records execution order and
// fails the titles it is told to.
type recorder struct {
	mu    sync.Mutex
	order []string
	fail  map[string]error
}

func (r *recorder) install(reg *actor.Registry) {
	reg.Register(models.ActorResearcher, func(d actor.Deps, _ string) (actor.Actor, error) {
		return actor.NewBase(d, models.ActorResearcher, execFunc(func(ctx context.Context, task *models.Task) (any, error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.order = append(r.order, task.Title)
			if err := r.fail[task.Title]; err != nil {
				return nil, err
			}
			return map[string]string{"output": task.Title + " done"}, nil
		})), nil
	})
}

func persistTasks(t *testing.T, deps actor.Deps, tasks ...*models.Task) {
	t.Helper()
	for _, task := range tasks {
		if task.BoardID == "" {
			task.BoardID = "board-1"
		}
		if task.ActorType == "" {
			task.ActorType = models.ActorResearcher
		}
		require.NoError(t, deps.Store.CreateTask(context.Background(), task))
	}
}
