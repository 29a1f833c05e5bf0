package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kirillkom/ride-progress/internal/core/domain"
)

var (
	historyLimit   int
	historyDetails bool
)

var historyCmd = &cobra.Command{
	Use:     "history",
	Aliases: []string{"ls", "list"},
	Short:   "Show the snapshot timeline",
	Long: `Show saved snapshots, newest first.

Snapshots without a capture time are listed after dated ones, ordered by
when they were added.

EXAMPLES:

  ridectl history           # Last 20 snapshots
  ridectl history -n 0      # Everything
  ridectl history --details # Include extracted metrics`,
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := app.Timeline.List(cmd.Context(), session(), historyLimit)
		if err != nil {
			return fmt.Errorf("failed to load timeline: %w", err)
		}
		if len(entries) == 0 {
			fmt.Println("No snapshots yet. Import a screenshot with 'ridectl import'.")
			return nil
		}

		faint := color.New(color.Faint)
		for _, entry := range entries {
			snap := entry.Snapshot
			fmt.Printf("%s  %s  %s  %s\n",
				faint.Sprint(snap.ID),
				padRight(captureLabel(snap), 16),
				padRight(string(snap.ScreenType), 16),
				faint.Sprintf("%s, confidence %.2f", snap.Origin, snap.OverallConfidence))
			if historyDetails {
				for _, line := range detailLines(entry.Detail) {
					fmt.Println("    " + line)
				}
			}
		}
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a snapshot with its stored image",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.Timeline.Delete(cmd.Context(), session(), args[0]); err != nil {
			return fmt.Errorf("failed to delete %s: %s", args[0], domain.Reason(err))
		}
		color.Green("✓ Deleted %s", args[0])
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Add a demo progress report when the timeline is empty",
	RunE: func(cmd *cobra.Command, args []string) error {
		seeded, err := app.Seed.SeedIfEmpty(cmd.Context(), session())
		if err != nil {
			return err
		}
		if !seeded {
			fmt.Println("Timeline already has snapshots; nothing seeded.")
			return nil
		}
		color.Green("✓ Demo snapshot added")
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Max snapshots to show (0 for all)")
	historyCmd.Flags().BoolVarP(&historyDetails, "details", "d", false, "Print extracted metrics")
	rootCmd.AddCommand(historyCmd, deleteCmd, seedCmd)
}
