package actor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ShayCichocki/quill/pkg/models"
)

// Summarizer condenses upstream results.
type Summarizer struct {
	*Base
}

// NewSummarizer creates a summarizer.
func NewSummarizer(deps Deps) *Summarizer {
	s := &Summarizer{}
	s.Base = NewBase(deps, models.ActorSummarizer, s)
	return s
}

// Execute implements Executor.
func (s *Summarizer) Execute(ctx context.Context, task *models.Task) (any, error) {
	upstream, err := s.UpstreamContext(ctx, task)
	if err != nil {
		return nil, err
	}
	prompt := fmt.Sprintf(summaryPrompt, taskHeader(task), goalSection(s.boardGoal(ctx, task)), upstreamSection(upstream))

	text, err := s.GenerateCompletion(ctx, prompt)
	if err != nil {
		return nil, err
	}

	result := &SummaryResult{
		Summary:    leadingParagraph(text),
		Highlights: extractBullets(text),
	}
	if result.Summary == "" {
		result.Summary = strings.TrimSpace(text)
	}

	artifacts := []Artifact{{Type: models.EntryText, Key: "summary", Value: result.Summary}}
	if len(result.Highlights) > 0 {
		raw, _ := json.Marshal(result.Highlights)
		artifacts = append(artifacts, Artifact{Type: models.EntryData, Key: "highlights", Value: string(raw)})
	}
	if _, err := s.WriteArtifacts(ctx, task, artifacts...); err != nil {
		return nil, err
	}
	return result, nil
}
