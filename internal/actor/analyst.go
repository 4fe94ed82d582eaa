package actor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ShayCichocki/quill/pkg/models"
)

// Analyst interprets upstream results.
type Analyst struct {
	*Base
}

// NewAnalyst creates an analyst.
func NewAnalyst(deps Deps) *Analyst {
	a := &Analyst{}
	a.Base = NewBase(deps, models.ActorAnalyst, a)
	return a
}

// Execute implements Executor.
func (a *Analyst) Execute(ctx context.Context, task *models.Task) (any, error) {
	upstream, err := a.UpstreamContext(ctx, task)
	if err != nil {
		return nil, err
	}
	prompt := fmt.Sprintf(analysisPrompt, taskHeader(task), goalSection(a.boardGoal(ctx, task)), upstreamSection(upstream))

	text, err := a.GenerateCompletion(ctx, prompt)
	if err != nil {
		return nil, err
	}
	result := parseAnalysis(text)

	artifacts := []Artifact{{Type: models.EntryText, Key: "analysis", Value: result.Analysis}}
	if len(result.Insights) > 0 {
		raw, _ := json.Marshal(result.Insights)
		artifacts = append(artifacts, Artifact{Type: models.EntryData, Key: "insights", Value: string(raw)})
	}
	if len(result.Recommendations) > 0 {
		raw, _ := json.Marshal(result.Recommendations)
		artifacts = append(artifacts, Artifact{Type: models.EntryData, Key: "recommendations", Value: string(raw)})
	}
	if _, err := a.WriteArtifacts(ctx, task, artifacts...); err != nil {
		return nil, err
	}
	return result, nil
}

// parseAnalysis reads the JSON shape the prompt asks for and falls back to
// markdown sections when the output is prose.
func parseAnalysis(text string) *AnalysisResult {
	for _, candidate := range jsonObjectCandidates(text) {
		var r AnalysisResult
		if err := json.Unmarshal([]byte(candidate), &r); err == nil && strings.TrimSpace(r.Analysis) != "" {
			return &r
		}
	}
	return &AnalysisResult{
		Analysis:        strings.TrimSpace(text),
		Insights:        extractSection(text, "insight"),
		Recommendations: extractSection(text, "recommendation"),
	}
}
