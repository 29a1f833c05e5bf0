package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kirillkom/ride-progress/internal/core/domain"
)

var compareCmd = &cobra.Command{
	Use:   "compare <id>",
	Short: "Show what changed since the previous snapshot of the same screen",
	Long: `Compare a snapshot with the closest earlier snapshot of the same screen
type. Metrics that only ever grow are shown only when they increased; the
rest are shown whenever they moved.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		comparison, err := app.Compare.Compare(cmd.Context(), session(), args[0])
		if err != nil {
			return fmt.Errorf("failed to compare %s: %s", args[0], domain.Reason(err))
		}
		if !comparison.Available {
			msg := comparison.Message
			if msg == "" {
				msg = "No previous snapshot to compare with."
			}
			fmt.Println(msg)
			return nil
		}
		if len(comparison.Deltas) == 0 {
			fmt.Printf("No changes since %s.\n", comparison.ReferenceID)
			return nil
		}

		fmt.Printf("Since %s:\n", comparison.ReferenceID)
		for _, d := range comparison.Deltas {
			switch d.Direction {
			case domain.DirectionUp:
				color.Green("  ▲ %s", d.Text)
			case domain.DirectionDown:
				color.Red("  ▼ %s", d.Text)
			default:
				fmt.Printf("  • %s\n", d.Text)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(compareCmd)
}
