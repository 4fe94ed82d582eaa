package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/quill/internal/composer"
	"github.com/ShayCichocki/quill/pkg/models"
)

var (
	runBoard      string
	runActors     string
	runPromptFile string
)

var runCmd = &cobra.Command{
	Use:   "run <goal>",
	Short: "Plan and execute a goal",
	Long: `Run a goal through the composer.

The planner turns the goal into tasks, the plan is repaired into a single
connected dependency graph, and every task runs once its dependencies have
completed. Coder tasks are retried with the previous attempt's error.

  --actors      Restrict the planner to these actor kinds (comma separated)
  --prompt-file Send this file to the planner verbatim instead of the built-in prompt
  --board       Run on an existing board instead of creating one`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGoal,
}

func init() {
	runCmd.Flags().StringVar(&runBoard, "board", "", "Existing board ID")
	runCmd.Flags().StringVar(&runActors, "actors", "", "Allowed actor kinds, e.g. researcher,coder")
	runCmd.Flags().StringVar(&runPromptFile, "prompt-file", "", "Custom planner prompt")
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			fmt.Println("\nReceived interrupt, stopping before the next task...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func runGoal(cmd *cobra.Command, args []string) error {
	goal := strings.TrimSpace(strings.Join(args, " "))
	if goal == "" {
		return errors.New("goal is empty")
	}

	meta, err := runMetadata()
	if err != nil {
		return err
	}

	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := signalContext()
	defer cancel()

	board, err := boardFor(ctx, e, goal)
	if err != nil {
		return err
	}

	task := &models.Task{
		BoardID:     board.ID,
		Title:       goal,
		Description: goal,
		ActorType:   models.ActorComposer,
		Priority:    models.PriorityCritical,
		Metadata:    meta,
	}
	if err := e.db.CreateTask(ctx, task); err != nil {
		return fmt.Errorf("create composer task: %w", err)
	}

	fmt.Printf("%s Board %s\n", color.CyanString("▶"), board.ID)
	start := time.Now()
	out, runErr := e.composer.ExecuteTask(ctx, task)

	res, ok := out.(*composer.ComposeResult)
	if !ok {
		if runErr == nil {
			runErr = fmt.Errorf("composer returned %T", out)
		}
		return runErr
	}
	printRunSummary(e, board.ID, res, time.Since(start))
	return runErr
}

func runMetadata() (models.TaskMetadata, error) {
	var meta models.TaskMetadata
	for _, raw := range splitList(runActors) {
		t, _, ok := models.ParseActorType(raw)
		if !ok {
			return meta, fmt.Errorf("unknown actor kind %q", raw)
		}
		meta.AllowedActors = append(meta.AllowedActors, t)
	}
	if runPromptFile != "" {
		data, err := os.ReadFile(runPromptFile)
		if err != nil {
			return meta, fmt.Errorf("read prompt file: %w", err)
		}
		meta.UseCustomPrompt = true
		meta.CustomPrompt = string(data)
	}
	return meta, nil
}

func boardFor(ctx context.Context, e *engine, goal string) (*models.Board, error) {
	if runBoard != "" {
		board, err := e.db.GetBoard(ctx, runBoard)
		if err != nil {
			return nil, fmt.Errorf("get board %s: %w", runBoard, err)
		}
		return board, nil
	}
	board := &models.Board{Name: boardName(goal), Goal: goal}
	if err := e.db.CreateBoard(ctx, board); err != nil {
		return nil, fmt.Errorf("create board: %w", err)
	}
	return board, nil
}

func boardName(goal string) string {
	const max = 48
	if len(goal) <= max {
		return goal
	}
	return strings.TrimSpace(goal[:max]) + "..."
}

var (
	summaryBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
	summaryTitle = lipgloss.NewStyle().Bold(true)
	summaryLabel = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

func printRunSummary(e *engine, boardID string, res *composer.ComposeResult, elapsed time.Duration) {
	completed, failed, unexecuted := 0, 0, 0
	if res.Run != nil {
		completed, failed, unexecuted = res.Run.Counts()
	}

	border := lipgloss.Color("42")
	title := "Workflow complete"
	if res.Failure() != nil {
		border = lipgloss.Color("196")
		title = "Workflow failed"
	}

	in, outTokens := e.router.Tracker().Total()
	stats := e.queue.Stats()

	var lines []string
	lines = append(lines, summaryTitle.Render(title))
	row := func(label, value string) {
		lines = append(lines, summaryLabel.Render(fmt.Sprintf("%-11s", label))+value)
	}
	row("Goal", res.MainGoal)
	row("Board", boardID)
	row("Tasks", fmt.Sprintf("%s completed  %s failed  %s unexecuted",
		color.GreenString("%d", completed), color.RedString("%d", failed), color.YellowString("%d", unexecuted)))
	if len(res.Repairs) > 0 {
		row("Repairs", fmt.Sprintf("%d", len(res.Repairs)))
	}
	if res.Fallback {
		row("Plan", "fallback plan (planner output unreadable)")
	}
	row("Calls", fmt.Sprintf("%d (%d in / %d out tokens)", stats.Calls, in, outTokens))
	row("Elapsed", elapsed.Round(time.Second).String())
	if res.RunError != "" {
		row("Stopped", res.RunError)
	}

	fmt.Println()
	fmt.Println(summaryBox.BorderForeground(border).Render(strings.Join(lines, "\n")))
	if res.FinalOutput != "" {
		fmt.Println()
		fmt.Println(res.FinalOutput)
	}
}
