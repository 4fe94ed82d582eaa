package actor

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ShayCichocki/quill/internal/kernel"
	"github.com/ShayCichocki/quill/pkg/models"
)

const defaultCodeLanguage = "python"

var languageHint = regexp.MustCompile(`(?i)\b(python3?|javascript|node(?:js)?|bash|shell|sh)\b`)

// Coder writes code for a task and runs it on a kernel.
type Coder struct {
	*Base
}

// NewCoder creates a coder.
func NewCoder(deps Deps) *Coder {
	c := &Coder{}
	c.Base = NewBase(deps, models.ActorCoder, c)
	return c
}

// Execute implements Executor. Code that fails to run produces a CodeResult
// with Success=false rather than an error.
func (c *Coder) Execute(ctx context.Context, task *models.Task) (any, error) {
	if c.deps.Backend == nil || c.deps.Kernels == nil {
		return nil, errors.New("no code execution backend configured")
	}

	upstream, err := c.UpstreamContext(ctx, task)
	if err != nil {
		return nil, err
	}
	want := requestedLanguage(task)
	prompt := fmt.Sprintf(codePrompt, want, taskHeader(task), goalSection(c.boardGoal(ctx, task)), upstreamSection(upstream))

	text, err := c.GenerateCompletion(ctx, prompt)
	if err != nil {
		return nil, err
	}

	code, lang, explanation, ok := extractCodeBlock(text, want)
	result := &CodeResult{Code: code, Language: kernel.NormalizeLanguage(lang), Explanation: explanation}
	if result.Language == "" {
		result.Language = want
	}

	if !ok || strings.TrimSpace(code) == "" {
		result.Error = "response contained no fenced code block"
	} else {
		c.run(ctx, result)
	}

	artifacts := []Artifact{
		{Type: models.EntryCode, Key: "code", Value: result.Code, Metadata: map[string]any{"language": result.Language}},
	}
	if result.Explanation != "" {
		artifacts = append(artifacts, Artifact{Type: models.EntryText, Key: "explanation", Value: result.Explanation})
	}
	output := result.Output
	if !result.Success {
		output = strings.TrimSpace(output + "\n" + result.Error)
	}
	artifacts = append(artifacts, Artifact{
		Type:     models.EntryText,
		Key:      "output",
		Value:    output,
		Metadata: map[string]any{"success": result.Success, "executed": result.Executed},
	})
	if _, err := c.WriteArtifacts(ctx, task, artifacts...); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Coder) run(ctx context.Context, result *CodeResult) {
	k, err := c.deps.Kernels.KernelFor(ctx, result.Language)
	if err != nil {
		result.Error = err.Error()
		return
	}
	ran, err := c.deps.Backend.Execute(ctx, k, result.Code)
	if err != nil {
		result.Error = fmt.Sprintf("execute on %s kernel: %v", k.Language, err)
		return
	}
	result.Executed = true
	result.Output = ran.Output
	result.Success = ran.Success
	result.Error = ran.Error
	c.logger.Debugf("%s code ran in %s (success=%v)", k.Language, ran.Duration, ran.Success)
}

// requestedLanguage returns the language named in the task, or python.
func requestedLanguage(task *models.Task) string {
	if m := languageHint.FindString(task.Title + " " + task.Description); m != "" {
		return kernel.NormalizeLanguage(m)
	}
	return defaultCodeLanguage
}
