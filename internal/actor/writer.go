package actor

import (
	"context"
	"fmt"
	"strings"

	"github.com/ShayCichocki/quill/pkg/models"
)

// Writer produces long-form documents.
type Writer struct {
	*Base
}

// NewWriter creates a writer.
func NewWriter(deps Deps) *Writer {
	w := &Writer{}
	w.Base = NewBase(deps, models.ActorWriter, w)
	return w
}

// Execute implements Executor.
func (w *Writer) Execute(ctx context.Context, task *models.Task) (any, error) {
	upstream, err := w.UpstreamContext(ctx, task)
	if err != nil {
		return nil, err
	}
	prompt := fmt.Sprintf(writingPrompt, taskHeader(task), goalSection(w.boardGoal(ctx, task)), upstreamSection(upstream))

	text, err := w.GenerateCompletion(ctx, prompt)
	if err != nil {
		return nil, err
	}
	content := strings.TrimSpace(text)

	title := firstHeading(content)
	if title == "" {
		title = task.Title
	}
	result := &WritingResult{Title: title, Content: content, WordCount: wordCount(content)}

	_, err = w.WriteArtifacts(ctx, task, Artifact{
		Type:     models.EntryText,
		Key:      "document",
		Value:    content,
		Metadata: map[string]any{"title": title, "word_count": result.WordCount},
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
