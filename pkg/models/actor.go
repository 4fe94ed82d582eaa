package models

import (
	"strings"
	"time"
)

// ActorType is the closed set of executor kinds.
type ActorType string

const (
	ActorPlanner    ActorType = "planner"
	ActorResearcher ActorType = "researcher"
	ActorAnalyst    ActorType = "analyst"
	ActorCoder      ActorType = "coder"
	ActorComposer   ActorType = "composer"
	ActorSummarizer ActorType = "summarizer"
	ActorWriter     ActorType = "writer"
	ActorCustom     ActorType = "custom"
)

// CustomActorPrefix marks a custom actor reference in planner output ("CUSTOM:<id>").
const CustomActorPrefix = "CUSTOM:"

// AllActorTypes lists every actor kind in a stable order.
func AllActorTypes() []ActorType {
	return []ActorType{
		ActorPlanner, ActorResearcher, ActorAnalyst, ActorCoder,
		ActorComposer, ActorSummarizer, ActorWriter, ActorCustom,
	}
}

// WorkerActorTypes lists the actor kinds a plan node may be assigned to.
func WorkerActorTypes() []ActorType {
	return []ActorType{ActorResearcher, ActorAnalyst, ActorCoder, ActorSummarizer, ActorWriter}
}

// Valid returns true if the actor type is a known value.
func (a ActorType) Valid() bool {
	for _, t := range AllActorTypes() {
		if a == t {
			return true
		}
	}
	return false
}

// ParseActorType splits a raw actor reference into a type and optional custom actor id.
// "CUSTOM:abc" yields (custom, "abc"). Unknown values return ok=false.
func ParseActorType(raw string) (ActorType, string, bool) {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) >= len(CustomActorPrefix) && strings.EqualFold(trimmed[:len(CustomActorPrefix)], CustomActorPrefix) {
		id := strings.TrimSpace(trimmed[len(CustomActorPrefix):])
		if id == "" {
			return "", "", false
		}
		return ActorCustom, id, true
	}
	t := ActorType(normalizeToken(trimmed))
	if !t.Valid() {
		return "", "", false
	}
	return t, "", true
}

// ActorConfig holds the effective settings for one actor kind.
type ActorConfig struct {
	ActorType   ActorType `json:"actor_type"`
	Enabled     bool      `json:"enabled"`
	Provider    string    `json:"provider,omitempty"`
	Model       string    `json:"model,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Safety      string    `json:"safety,omitempty"`
	// Instructions are prepended to every prompt the actor sends.
	Instructions string    `json:"instructions,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

// Merge overlays o on top of c. String fields override when non-empty, numeric
// fields when positive. Enabled always comes from o.
func (c ActorConfig) Merge(o ActorConfig) ActorConfig {
	out := c
	out.Enabled = o.Enabled
	if o.Provider != "" {
		out.Provider = o.Provider
	}
	if o.Model != "" {
		out.Model = o.Model
	}
	if o.Temperature > 0 {
		out.Temperature = o.Temperature
	}
	if o.MaxTokens > 0 {
		out.MaxTokens = o.MaxTokens
	}
	if o.Safety != "" {
		out.Safety = o.Safety
	}
	if o.Instructions != "" {
		out.Instructions = o.Instructions
	}
	if !o.UpdatedAt.IsZero() {
		out.UpdatedAt = o.UpdatedAt
	}
	return out
}

// CustomActor is a user-defined actor resolved by id at execution time.
type CustomActor struct {
	ID           string    `json:"id" yaml:"id"`
	BoardID      string    `json:"board_id,omitempty" yaml:"board_id,omitempty"`
	Name         string    `json:"name" yaml:"name"`
	Description  string    `json:"description,omitempty" yaml:"description,omitempty"`
	Instructions string    `json:"instructions" yaml:"instructions"`
	Provider     string    `json:"provider,omitempty" yaml:"provider,omitempty"`
	Model        string    `json:"model,omitempty" yaml:"model,omitempty"`
	Enabled      bool      `json:"enabled" yaml:"enabled"`
	CreatedAt    time.Time `json:"created_at" yaml:"-"`
}

func normalizeToken(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
