package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/quill/internal/state"
	"github.com/ShayCichocki/quill/pkg/models"
)

var resumeClean bool

var resumeCmd = &cobra.Command{
	Use:   "resume <board-id>",
	Short: "Continue a board whose run was interrupted",
	Long: `Resume the unfinished tasks of a board.

Tasks left in progress by an interrupted run are reset to pending, then every
task that has not completed runs again in dependency order. Completed tasks
are kept. With --clean the interrupted tasks are marked failed instead and
nothing runs.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	resumeCmd.Flags().BoolVar(&resumeClean, "clean", false, "Mark interrupted tasks failed instead of resuming")
}

func runResume(cmd *cobra.Command, args []string) error {
	boardID := args[0]

	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := signalContext()
	defer cancel()

	rm := state.NewRecoveryManager(e.db)
	info, err := rm.CheckForInterrupted(ctx, boardID)
	if err != nil {
		return err
	}

	if resumeClean {
		n, err := rm.Clean(ctx, boardID)
		if err != nil {
			return err
		}
		printStatus("✓", fmt.Sprintf("Marked %d interrupted tasks failed", n), color.FgGreen)
		return nil
	}

	if info != nil {
		n, err := rm.Resume(ctx, boardID)
		if err != nil {
			return err
		}
		printStatus("↺", fmt.Sprintf("Reset %d interrupted tasks", n), color.FgYellow)
	}

	stored, err := e.db.ListTasksForBoard(ctx, boardID)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	var tasks []*models.Task
	for i := range stored {
		t := &stored[i]
		// Planner and composer rows describe the run itself.
		if t.ActorType == models.ActorPlanner || t.ActorType == models.ActorComposer {
			continue
		}
		if t.Status == models.TaskStatusFailed {
			t.Status = models.TaskStatusPending
		}
		tasks = append(tasks, t)
	}
	if len(tasks) == 0 {
		fmt.Println("Nothing to resume.")
		return nil
	}

	report, runErr := e.composer.ExecuteTaskSequence(ctx, tasks)
	completed, failed, unexecuted := report.Counts()
	fmt.Printf("%s completed  %s failed  %s unexecuted\n",
		color.GreenString("%d", completed), color.RedString("%d", failed), color.YellowString("%d", unexecuted))
	for _, f := range report.Failed {
		printStatus("✗", fmt.Sprintf("%s: %s", f.Title, f.Error), color.FgRed)
	}
	return runErr
}

// printStatus prints a status line with color
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}
