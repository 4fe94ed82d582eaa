package composer

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"github.com/ShayCichocki/quill/internal/actor"
	"github.com/ShayCichocki/quill/pkg/models"
)

// ComposeResult is the composer's result and the persisted workflow summary.
type ComposeResult struct {
	PlanTaskID  string             `json:"plan_task_id"`
	MainGoal    string             `json:"main_goal"`
	PlanSummary string             `json:"plan_summary"`
	Strategy    actor.PlanStrategy `json:"strategy"`
	Fallback    bool               `json:"fallback"`
	Repairs     []RepairStep       `json:"repairs,omitempty"`
	TaskIDs     []string           `json:"task_ids"`
	Run         *RunReport         `json:"run"`

	FinalTaskID string            `json:"final_task_id"`
	FinalStatus models.TaskStatus `json:"final_status"`
	FinalOutput string            `json:"final_output,omitempty"`
	RunError    string            `json:"run_error,omitempty"`

	runErr     error
	failedList string
}

// outputFields are the result fields tried, in order, for a readable final output.
var outputFields = []string{"content", "summary", "analysis", "findings", "output", "code"}

const maxFinalOutput = 2000

func (r *ComposeResult) apply(run *RunReport, runErr error, tasks []*models.Task) {
	r.Run = run
	r.runErr = runErr
	if runErr != nil {
		r.RunError = runErr.Error()
	}
	if run != nil {
		ids := make([]string, 0, len(run.Failed))
		for _, f := range run.Failed {
			ids = append(ids, f.ID)
		}
		r.failedList = titleList(tasks, ids)
	}

	for _, t := range tasks {
		if t.ID != r.FinalTaskID {
			continue
		}
		r.FinalStatus = t.Status
		if t.Status == models.TaskStatusCompleted {
			r.FinalOutput = finalOutput(t.Result)
		}
	}
}

func finalOutput(raw []byte) string {
	for _, f := range outputFields {
		if v := gjson.GetBytes(raw, f); v.Exists() && v.String() != "" {
			return truncateOutput(v.String())
		}
	}
	return truncateOutput(string(raw))
}

func truncateOutput(s string) string {
	if len(s) <= maxFinalOutput {
		return s
	}
	n := maxFinalOutput
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

// Failure implements actor.Failer: the workflow failed unless its final task completed.
func (r *ComposeResult) Failure() error {
	if r.FinalStatus == models.TaskStatusCompleted && r.runErr == nil {
		return nil
	}
	if r.runErr != nil {
		return r.runErr
	}
	completed, failed, unexecuted := r.counts()
	msg := fmt.Sprintf("final task did not complete (%d completed, %d failed, %d unexecuted)", completed, failed, unexecuted)
	if r.failedList != "" {
		msg += ": failed " + r.failedList
	}
	return errors.New(msg)
}

func (r *ComposeResult) counts() (completed, failed, unexecuted int) {
	if r.Run == nil {
		return 0, 0, 0
	}
	return r.Run.Counts()
}

// Report renders a short plain-text summary of the run.
func (r *ComposeResult) Report() string {
	completed, failed, unexecuted := r.counts()
	var sb strings.Builder
	fmt.Fprintf(&sb, "Goal: %s\n", r.MainGoal)
	fmt.Fprintf(&sb, "Plan: %s\n", r.PlanSummary)
	if r.Fallback {
		sb.WriteString("Plan source: fallback (planner output could not be parsed)\n")
	}
	if len(r.Repairs) > 0 {
		fmt.Fprintf(&sb, "Repairs: %d\n", len(r.Repairs))
	}
	fmt.Fprintf(&sb, "Completed: %d  Failed: %d  Unexecuted: %d\n", completed, failed, unexecuted)
	if r.failedList != "" {
		fmt.Fprintf(&sb, "Failed tasks: %s\n", r.failedList)
	}
	if r.RunError != "" {
		fmt.Fprintf(&sb, "Stopped: %s\n", r.RunError)
	}
	if r.FinalOutput != "" {
		fmt.Fprintf(&sb, "\n%s\n", r.FinalOutput)
	}
	return strings.TrimRight(sb.String(), "\n")
}
