package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/quill/internal/config"
	"github.com/ShayCichocki/quill/internal/graph"
	"github.com/ShayCichocki/quill/internal/state"
	"github.com/ShayCichocki/quill/pkg/models"
)

var statusCmd = &cobra.Command{
	Use:   "status [board-id]",
	Short: "Show boards and task progress",
	Long: `Display the state of quill boards.

Without arguments, lists every board with its task counts.
With a board ID, lists that board's tasks and their status.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func openStoreOnly() (*state.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return openStore(cfg)
}

func runStatus(cmd *cobra.Command, args []string) error {
	db, err := openStoreOnly()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	if len(args) == 1 {
		return displayBoard(ctx, db, args[0])
	}

	boards, err := db.ListBoards(ctx)
	if err != nil {
		return fmt.Errorf("list boards: %w", err)
	}
	if len(boards) == 0 {
		fmt.Println("No boards yet. Run 'quill run <goal>' to start.")
		return nil
	}
	for _, b := range boards {
		tasks, err := db.ListTasksForBoard(ctx, b.ID)
		if err != nil {
			return fmt.Errorf("list tasks for %s: %w", b.ID, err)
		}
		counts := make(map[models.TaskStatus]int)
		for _, t := range tasks {
			counts[t.Status]++
		}
		fmt.Printf("%s  %s  (%s ago)\n", color.CyanString(b.ID), b.Name, formatDuration(time.Since(b.CreatedAt)))
		fmt.Printf("  %s completed  %s failed  %s running  %s pending\n",
			color.GreenString("%d", counts[models.TaskStatusCompleted]),
			color.RedString("%d", counts[models.TaskStatusFailed]),
			color.YellowString("%d", counts[models.TaskStatusInProgress]),
			color.New(color.Faint).Sprintf("%d", counts[models.TaskStatusPending]))
	}
	return nil
}

func displayBoard(ctx context.Context, db *state.DB, boardID string) error {
	board, err := db.GetBoard(ctx, boardID)
	if err != nil {
		return fmt.Errorf("get board: %w", err)
	}
	tasks, err := db.ListTasksForBoard(ctx, boardID)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}

	fmt.Printf("Board %s\n", board.ID)
	if board.Goal != "" {
		fmt.Printf("  Goal: %s\n", board.Goal)
	}
	fmt.Printf("  Tasks: %d\n\n", len(tasks))
	for _, row := range taskOutline(tasks) {
		t := row.Task
		symbol, attr := statusGlyph(t.Status)
		line := fmt.Sprintf("%s [%s] %s", t.ID, actorLabel(*t), t.Title)
		if row.Role != "" {
			line += " " + color.New(color.Bold).Sprintf("(%s)", row.Role)
		}
		if t.StartedAt != nil && t.CompletedAt != nil {
			line += fmt.Sprintf(" (%s)", formatDuration(t.CompletedAt.Sub(*t.StartedAt)))
		}
		printStatus(symbol, line, attr)
		if len(row.After) > 0 {
			fmt.Printf("    after: %s\n", strings.Join(row.After, ", "))
		}
		if t.Error != "" {
			fmt.Printf("    %s\n", color.RedString(t.Error))
		}
	}
	return nil
}

// outlineRow is one task line of a board listing.
type outlineRow struct {
	Task *models.Task
	// Role is "root" for a worker task without dependencies that others
	// wait on, "final" for the single task the workflow converges on.
	Role string
	// After lists the titles of the task's dependencies.
	After []string
}

// taskOutline lists the planner and composer tasks first, then the worker
// tasks with every dependency ahead of its dependents. Workers whose graph
// does not validate keep declaration order.
func taskOutline(tasks []models.Task) []outlineRow {
	var rows []outlineRow
	var workers []*models.Task
	for i := range tasks {
		t := &tasks[i]
		if t.ActorType == models.ActorPlanner || t.ActorType == models.ActorComposer {
			rows = append(rows, outlineRow{Task: t})
			continue
		}
		workers = append(workers, t)
	}

	g := graph.New()
	if err := g.Build(workers); err != nil {
		for _, t := range workers {
			rows = append(rows, outlineRow{Task: t})
		}
		return rows
	}
	order, err := g.TopologicalSort()
	if err != nil {
		order = g.Order()
	}

	roles := make(map[string]string)
	for _, id := range g.Roots() {
		if len(g.GetDependents(id)) > 0 {
			roles[id] = "root"
		}
	}
	if terminals := g.Terminals(); len(terminals) == 1 && len(workers) > 1 {
		roles[terminals[0]] = "final"
	}

	for _, id := range order {
		row := outlineRow{Task: g.GetTask(id), Role: roles[id]}
		for _, dep := range g.GetDependencies(id) {
			row.After = append(row.After, g.GetTask(dep).Title)
		}
		rows = append(rows, row)
	}
	return rows
}

func statusGlyph(s models.TaskStatus) (string, color.Attribute) {
	switch s {
	case models.TaskStatusCompleted:
		return "✓", color.FgGreen
	case models.TaskStatusFailed:
		return "✗", color.FgRed
	case models.TaskStatusInProgress:
		return "●", color.FgYellow
	default:
		return "○", color.FgWhite
	}
}

func actorLabel(t models.Task) string {
	if t.ActorType == models.ActorCustom && t.CustomActorID != "" {
		return models.CustomActorPrefix + t.CustomActorID
	}
	return string(t.ActorType)
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// maskedKey shows where a provider key comes from without printing it.
func maskedKey(cfg *config.Config, provider string) string {
	key, _ := config.GetAPIKey(cfg, provider)
	return fmt.Sprintf("%s (%s)", config.MaskAPIKey(key), config.GetAPIKeySource(cfg, provider))
}
