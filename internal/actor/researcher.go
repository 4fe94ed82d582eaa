package actor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ShayCichocki/quill/pkg/models"
)

// Researcher gathers information about a task.
type Researcher struct {
	*Base
}

// NewResearcher creates a researcher.
func NewResearcher(deps Deps) *Researcher {
	r := &Researcher{}
	r.Base = NewBase(deps, models.ActorResearcher, r)
	return r
}

// Execute implements Executor.
func (r *Researcher) Execute(ctx context.Context, task *models.Task) (any, error) {
	upstream, err := r.UpstreamContext(ctx, task)
	if err != nil {
		return nil, err
	}
	prompt := fmt.Sprintf(researchPrompt, taskHeader(task), goalSection(r.boardGoal(ctx, task)), upstreamSection(upstream))

	text, err := r.GenerateCompletion(ctx, prompt)
	if err != nil {
		return nil, err
	}

	result := &ResearchResult{
		Findings:  text,
		KeyPoints: extractSection(text, "key point"),
		Sources:   extractURLs(text),
	}
	if len(result.KeyPoints) == 0 {
		result.KeyPoints = extractBullets(text)
	}

	artifacts := []Artifact{{Type: models.EntryText, Key: "findings", Value: text}}
	if len(result.KeyPoints) > 0 {
		raw, _ := json.Marshal(result.KeyPoints)
		artifacts = append(artifacts, Artifact{Type: models.EntryData, Key: "key_points", Value: string(raw)})
	}
	if len(result.Sources) > 0 {
		raw, _ := json.Marshal(result.Sources)
		artifacts = append(artifacts, Artifact{Type: models.EntryData, Key: "sources", Value: string(raw)})
	}
	if _, err := r.WriteArtifacts(ctx, task, artifacts...); err != nil {
		return nil, err
	}
	return result, nil
}
