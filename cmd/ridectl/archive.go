package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	exportFormat  string
	exportOutput  string
	restoreFormat string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the timeline to JSON, YAML, CSV or XLSX",
	Long: `Export every snapshot of the rider.

JSON and YAML archives carry the full extraction and can be restored.
CSV and XLSX hold one row per snapshot with the headline metrics.

EXAMPLES:

  ridectl export > backup.json
  ridectl export --format xlsx -o progress.xlsx`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := archiveFormat(exportFormat, exportOutput)
		if err != nil {
			return err
		}

		var out io.Writer = os.Stdout
		if exportOutput != "" {
			f, err := os.Create(exportOutput)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", exportOutput, err)
			}
			defer f.Close()
			out = f
		}
		if err := app.Archive.Export(cmd.Context(), session(), format, out); err != nil {
			return fmt.Errorf("failed to export: %w", err)
		}
		if exportOutput != "" {
			color.Green("✓ Exported %s to %s", format, exportOutput)
		}
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <file>",
	Short: "Import snapshots from a JSON or YAML archive",
	Long: `Restore snapshots from an archive written by 'ridectl export'.

Snapshots whose screenshot hash is already in the timeline are counted as
duplicates and skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := archiveFormat(restoreFormat, args[0])
		if err != nil {
			return err
		}
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", args[0], err)
		}
		defer f.Close()

		result, err := app.Archive.Restore(cmd.Context(), session(), format, f)
		if err != nil {
			return fmt.Errorf("failed to restore: %w", err)
		}
		color.Green("✓ %d imported", result.Imported)
		if result.Duplicates > 0 {
			color.Yellow("• %d duplicates skipped", result.Duplicates)
		}
		if result.Failed > 0 {
			color.Red("✗ %d failed", result.Failed)
			for _, msg := range result.Errors {
				fmt.Println("    " + msg)
			}
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "", "json, yaml, csv or xlsx (default from --output extension, else json)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to file instead of stdout")
	restoreCmd.Flags().StringVarP(&restoreFormat, "format", "f", "", "Archive format (default from file extension)")
	rootCmd.AddCommand(exportCmd, restoreCmd)
}
