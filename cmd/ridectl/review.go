package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kirillkom/ride-progress/internal/core/domain"
)

var reviewOutput string

var reviewCmd = &cobra.Command{
	Use:   "review <id>",
	Short: "Generate the coach's spoken review of a snapshot",
	Long: `Ask the review model for a short coach-style comment on a snapshot and its
predecessor, then synthesize it to speech. The text is printed; use -o to
keep the audio. Reviews are stored and reused on later calls.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		review, err := app.Reviews.Review(cmd.Context(), session(), args[0])
		if err != nil {
			return fmt.Errorf("failed to review %s: %s", args[0], domain.Reason(err))
		}
		fmt.Println(review.Text)
		if reviewOutput == "" || len(review.Audio) == 0 {
			return nil
		}
		if err := os.WriteFile(reviewOutput, review.Audio, 0o644); err != nil {
			return fmt.Errorf("failed to write audio: %w", err)
		}
		color.Green("✓ Audio written to %s", reviewOutput)
		return nil
	},
}

func init() {
	reviewCmd.Flags().StringVarP(&reviewOutput, "output", "o", "", "Write the MP3 audio to this file")
	rootCmd.AddCommand(reviewCmd)
}
