package actor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ShayCichocki/quill/internal/gateway"
	"github.com/ShayCichocki/quill/pkg/models"
)

// CompletionOptions override the actor config for a single call.
type CompletionOptions struct {
	// System is appended to the configured instructions.
	System   string
	Provider string
	Model    string
}

// GenerateCompletion sends prompt through the shared rate-limited queue using
// the actor's resolved provider, model and safety settings.
func (b *Base) GenerateCompletion(ctx context.Context, prompt string) (string, error) {
	return b.GenerateCompletionWith(ctx, prompt, CompletionOptions{})
}

// GenerateCompletionWith is GenerateCompletion with per-call overrides.
func (b *Base) GenerateCompletionWith(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	if b.deps.Gateway == nil {
		return "", errors.New("no generation gateway configured")
	}
	cfg := b.Config()

	provider := cfg.Provider
	if opts.Provider != "" {
		provider = opts.Provider
	}
	model := cfg.Model
	if opts.Model != "" {
		model = opts.Model
	}
	req := gateway.Request{
		Prompt:      prompt,
		System:      joinNonEmpty("\n\n", cfg.Instructions, opts.System),
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}
	credential := b.deps.Config.Credential(provider)

	var resp *gateway.Response
	call := func(ctx context.Context) error {
		var err error
		resp, err = b.deps.Gateway.Generate(ctx, provider, credential, req, model, cfg.Safety)
		return err
	}

	var err error
	if b.deps.Queue != nil {
		err = b.deps.Queue.Enqueue(ctx, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", fmt.Errorf("%s generation: %w", b.actorType, err)
	}
	b.logger.Debugf("generated %d chars (model=%s)", len(resp.Text), resp.Model)
	return resp.Text, nil
}

func joinNonEmpty(sep string, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

// Artifact is one entry an actor writes for a task.
type Artifact struct {
	Type     models.EntryType
	Key      string
	Value    string
	Metadata map[string]any
}

// CreateTable creates a table on the task's board.
func (b *Base) CreateTable(ctx context.Context, boardID, name, description string, schema map[string]string) (*models.Table, error) {
	table := &models.Table{
		BoardID:     boardID,
		Name:        name,
		Description: description,
		Schema:      schema,
	}
	if err := b.deps.Store.CreateTable(ctx, table); err != nil {
		return nil, fmt.Errorf("create table %q: %w", name, err)
	}
	return table, nil
}

// CreateEntry appends an entry produced by task to a table.
func (b *Base) CreateEntry(ctx context.Context, tableID, taskID string, a Artifact) (*models.Entry, error) {
	entry := &models.Entry{
		TableID:  tableID,
		TaskID:   taskID,
		Type:     a.Type,
		Key:      a.Key,
		Value:    a.Value,
		Metadata: a.Metadata,
	}
	if err := b.deps.Store.CreateEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("create entry %q: %w", a.Key, err)
	}
	return entry, nil
}

// WriteArtifacts creates a per-task table named after the actor and the task
// and appends artifacts to it in order.
func (b *Base) WriteArtifacts(ctx context.Context, task *models.Task, artifacts ...Artifact) (*models.Table, error) {
	schema := make(map[string]string, len(artifacts))
	for _, a := range artifacts {
		schema[a.Key] = string(a.Type)
	}
	name := fmt.Sprintf("%s: %s", titleCase(string(b.actorType)), task.Title)
	table, err := b.CreateTable(ctx, task.BoardID, name, task.Description, schema)
	if err != nil {
		return nil, err
	}
	for _, a := range artifacts {
		if a.Metadata == nil {
			a.Metadata = map[string]any{}
		}
		a.Metadata["actor"] = string(b.actorType)
		if task.Metadata.Attempt > 0 {
			a.Metadata["attempt"] = task.Metadata.Attempt
		}
		if _, err := b.CreateEntry(ctx, table.ID, task.ID, a); err != nil {
			return table, err
		}
	}
	return table, nil
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

const (
	maxUpstreamChars = 12000
	maxEntryChars    = 3000
)

// UpstreamContext renders the artifacts of a task's dependencies as prompt
// context, in dependency order. The output is bounded.
func (b *Base) UpstreamContext(ctx context.Context, task *models.Task) (string, error) {
	if len(task.Dependencies) == 0 {
		return "", nil
	}

	var sb strings.Builder
	for _, depID := range task.Dependencies {
		dep, err := b.deps.Store.GetTaskFromBoard(ctx, task.BoardID, depID)
		if err != nil {
			return "", fmt.Errorf("load dependency %s: %w", depID, err)
		}
		entries, err := b.deps.Store.GetEntriesForTask(ctx, depID)
		if err != nil {
			return "", fmt.Errorf("load entries of %s: %w", depID, err)
		}

		fmt.Fprintf(&sb, "### %s (%s)\n", dep.Title, dep.ActorType)
		wrote := false
		for _, e := range entries {
			if e.Type == models.EntryResult || e.Type == models.EntryImage {
				continue
			}
			fmt.Fprintf(&sb, "[%s] %s\n%s\n\n", e.Type, e.Key, truncate(e.Value, maxEntryChars))
			wrote = true
		}
		if !wrote && len(dep.Result) > 0 {
			sb.WriteString(truncate(string(dep.Result), maxEntryChars))
			sb.WriteString("\n\n")
		}
		if sb.Len() >= maxUpstreamChars {
			break
		}
	}
	return truncate(strings.TrimSpace(sb.String()), maxUpstreamChars), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return runePrefix(s, n) + "\n...[truncated]"
}

// boardGoal returns the goal of the task's board, or "" when it has none.
func (b *Base) boardGoal(ctx context.Context, task *models.Task) string {
	board, err := b.deps.Store.GetBoard(ctx, task.BoardID)
	if err != nil {
		return ""
	}
	return board.Goal
}
