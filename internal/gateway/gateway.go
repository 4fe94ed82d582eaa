// Package gateway routes text-generation requests to the configured provider.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrUnknownProvider is returned when no provider is registered under an id.
var ErrUnknownProvider = errors.New("unknown provider")

// Request is a single text-generation call.
type Request struct {
	Prompt string
	// System holds actor instructions sent as a system prompt.
	System      string
	MaxTokens   int
	Temperature float64
}

// Response is the generated text plus usage.
type Response struct {
	Text         string
	Model        string
	InputTokens  int64
	OutputTokens int64
}

// Gateway is the generation contract used by actors.
type Gateway interface {
	Generate(ctx context.Context, providerID, credential string, req Request, modelHint, safetyHint string) (*Response, error)
}

// Provider is one backend behind the Router.
type Provider interface {
	Name() string
	Complete(ctx context.Context, credential string, req Request, model string) (*Response, error)
}

// Router dispatches generation requests by provider id and tracks token usage.
type Router struct {
	mu              sync.RWMutex
	providers       map[string]Provider
	defaultProvider string
	tracker         *TokenTracker
}

// NewRouter creates a router over the given providers.
// The first provider is the default for requests that name none.
func NewRouter(providers ...Provider) *Router {
	r := &Router{
		providers: make(map[string]Provider),
		tracker:   NewTokenTracker(),
	}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces a provider.
func (r *Router) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := strings.ToLower(p.Name())
	r.providers[name] = p
	if r.defaultProvider == "" {
		r.defaultProvider = name
	}
}

// SetDefault selects the provider used when a request names none.
func (r *Router) SetDefault(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultProvider = strings.ToLower(name)
}

// Tracker returns the router's token tracker.
func (r *Router) Tracker() *TokenTracker {
	return r.tracker
}

// Generate implements Gateway. The safety hint is rendered into the system prompt.
func (r *Router) Generate(ctx context.Context, providerID, credential string, req Request, modelHint, safetyHint string) (*Response, error) {
	r.mu.RLock()
	name := strings.ToLower(strings.TrimSpace(providerID))
	if name == "" {
		name = r.defaultProvider
	}
	p, ok := r.providers[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, providerID)
	}

	req.System = joinSystem(SafetyInstruction(safetyHint), req.System)

	resp, err := p.Complete(ctx, credential, req, strings.TrimSpace(modelHint))
	if err != nil {
		return nil, fmt.Errorf("%s generate: %w", name, err)
	}
	r.tracker.Add(resp.InputTokens, resp.OutputTokens)
	return resp, nil
}

// SafetyInstruction renders a safety level as a system instruction.
// Unknown levels are passed through verbatim so custom policies work.
func SafetyInstruction(hint string) string {
	switch strings.ToLower(strings.TrimSpace(hint)) {
	case "", "off", "none":
		return ""
	case "standard":
		return "Decline requests for clearly harmful content and keep answers factual."
	case "strict":
		return "Decline anything potentially harmful, avoid speculation, and flag uncertain claims explicitly."
	default:
		return strings.TrimSpace(hint)
	}
}

func joinSystem(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}

// TokenTracker tracks token usage across generation calls.
type TokenTracker struct {
	mu        sync.Mutex
	inputTok  int64
	outputTok int64
	calls     int
}

// NewTokenTracker creates a new token tracker.
func NewTokenTracker() *TokenTracker {
	return &TokenTracker{}
}

// Add records token usage from one call.
func (t *TokenTracker) Add(input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputTok += input
	t.outputTok += output
	t.calls++
}

// Total returns the total input and output tokens tracked.
func (t *TokenTracker) Total() (input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inputTok, t.outputTok
}

// Calls returns the number of calls recorded.
func (t *TokenTracker) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}
