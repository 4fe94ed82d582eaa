package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	entriesTask string
	entriesFull bool
)

var entriesCmd = &cobra.Command{
	Use:   "entries <board-id>",
	Short: "Show the tables and entries recorded on a board",
	Args:  cobra.ExactArgs(1),
	RunE:  runEntries,
}

func init() {
	entriesCmd.Flags().StringVar(&entriesTask, "task", "", "Only entries written by this task")
	entriesCmd.Flags().BoolVar(&entriesFull, "full", false, "Print entry values untruncated")
}

func runEntries(cmd *cobra.Command, args []string) error {
	db, err := openStoreOnly()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	tables, err := db.ListTablesForBoard(ctx, args[0])
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}
	if len(tables) == 0 {
		fmt.Println("No tables on this board.")
		return nil
	}

	for _, tbl := range tables {
		entries, err := db.GetEntriesForTable(ctx, tbl.ID)
		if err != nil {
			return fmt.Errorf("entries of %s: %w", tbl.Name, err)
		}
		printed := false
		for _, e := range entries {
			if entriesTask != "" && e.TaskID != entriesTask {
				continue
			}
			if !printed {
				fmt.Println(color.New(color.Bold).Sprint(tbl.Name))
				printed = true
			}
			fmt.Printf("  %s %s\n", color.CyanString(e.Key), color.New(color.Faint).Sprintf("[%s]", e.Type))
			for _, line := range strings.Split(preview(e.Value), "\n") {
				fmt.Printf("    %s\n", line)
			}
		}
		if printed {
			fmt.Println()
		}
	}
	return nil
}

func preview(s string) string {
	s = strings.TrimSpace(s)
	if entriesFull {
		return s
	}
	const maxLines, maxChars = 8, 600
	if len(s) > maxChars {
		s = s[:maxChars] + "..."
	}
	lines := strings.Split(s, "\n")
	if len(lines) > maxLines {
		lines = append(lines[:maxLines], fmt.Sprintf("... (%d more lines)", len(lines)-maxLines))
	}
	return strings.Join(lines, "\n")
}
