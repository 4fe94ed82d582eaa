package actor

import (
	"errors"

	"github.com/ShayCichocki/quill/pkg/models"
)

// PlanStrategy names the parse stage that produced a plan.
type PlanStrategy string

const (
	StrategyJSON     PlanStrategy = "json"
	StrategyRepaired PlanStrategy = "repaired"
	StrategyFields   PlanStrategy = "fields"
	StrategyFallback PlanStrategy = "fallback"
)

// PlanResult is the planner's result.
type PlanResult struct {
	Plan     *models.TaskPlan `json:"plan"`
	Summary  string           `json:"summary"`
	Strategy PlanStrategy     `json:"strategy"`
	// Fallback is true when the plan was synthesized because the output was unusable.
	Fallback bool `json:"fallback"`
}

// ResearchResult is the researcher's result.
type ResearchResult struct {
	Findings  string   `json:"findings"`
	KeyPoints []string `json:"key_points,omitempty"`
	Sources   []string `json:"sources,omitempty"`
}

// AnalysisResult is the analyst's result.
type AnalysisResult struct {
	Analysis        string   `json:"analysis"`
	Insights        []string `json:"insights,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// CodeResult is the coder's result. A result with Success=false fails the task.
type CodeResult struct {
	Code        string `json:"code"`
	Language    string `json:"language"`
	Explanation string `json:"explanation,omitempty"`
	Output      string `json:"output,omitempty"`
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
	Executed    bool   `json:"executed"`
}

// Failure implements Failer.
func (r *CodeResult) Failure() error {
	if r.Success {
		return nil
	}
	if r.Error == "" {
		return errors.New("code execution failed")
	}
	return errors.New(r.Error)
}

// SummaryResult is the summarizer's result.
type SummaryResult struct {
	Summary    string   `json:"summary"`
	Highlights []string `json:"highlights,omitempty"`
}

// WritingResult is the writer's result.
type WritingResult struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	WordCount int    `json:"word_count"`
}

// CustomResult is a custom actor's result.
type CustomResult struct {
	ActorID   string `json:"actor_id"`
	ActorName string `json:"actor_name"`
	Output    string `json:"output"`
}
