package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kirillkom/ride-progress/internal/core/domain"
)

var importSave bool

var importCmd = &cobra.Command{
	Use:   "import <screenshot>...",
	Short: "Read screenshots into snapshot drafts",
	Long: `Read one or more screenshots with the vision model.

Each file is hashed first; screenshots already in the timeline are reported
as duplicates and skipped. Without --save the extracted values are printed
for review only. The file's modification time is used as the capture time
when the image has no EXIF date.

EXAMPLES:

  ridectl import ride.png                 # Preview the extraction
  ridectl import shots/*.png --save       # Save every readable screenshot`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		sess := session()
		var saved, duplicates, failed int

		for _, path := range args {
			upload, err := readUpload(path)
			if err != nil {
				color.Red("✗ %s: %v", path, err)
				failed++
				continue
			}

			draft, err := app.Importer.Prepare(ctx, sess, upload)
			if err != nil {
				color.Red("✗ %s: %s", upload.Filename, domain.Reason(err))
				failed++
				continue
			}
			if draft.Status == domain.ImportDuplicate {
				color.Yellow("• %s: already imported (%s)", upload.Filename, draft.DuplicateOf)
				duplicates++
				continue
			}

			printDraft(draft)
			if !importSave {
				continue
			}
			snap, err := app.Importer.Save(ctx, sess, *draft)
			if err != nil {
				color.Red("✗ %s: %s", upload.Filename, domain.Reason(err))
				failed++
				continue
			}
			color.Green("✓ Saved %s as %s", upload.Filename, snap.ID)
			saved++
		}

		fmt.Printf("\n%d saved, %d duplicates, %d failed\n", saved, duplicates, failed)
		if failed > 0 && saved == 0 && duplicates == 0 {
			return fmt.Errorf("no screenshot could be imported")
		}
		return nil
	},
}

func init() {
	importCmd.Flags().BoolVarP(&importSave, "save", "s", false, "Save each prepared snapshot")
	rootCmd.AddCommand(importCmd)
}

func readUpload(path string) (domain.Upload, error) {
	info, err := os.Stat(path)
	if err != nil {
		return domain.Upload{}, err
	}
	if info.IsDir() {
		return domain.Upload{}, fmt.Errorf("is a directory")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Upload{}, err
	}
	modTime := info.ModTime()
	return domain.Upload{
		Filename: filepath.Base(path),
		Data:     data,
		ModTime:  &modTime,
	}, nil
}

func printDraft(draft *domain.Draft) {
	faint := color.New(color.Faint)
	screen := draft.Extraction.ScreenType
	fmt.Printf("%s  %s  confidence %.2f\n",
		color.CyanString(draft.Filename),
		padRight(string(screen), 16),
		draft.Extraction.Confidence.Overall)
	if draft.Warning != "" {
		color.Yellow("  ! %s", draft.Warning)
	} else if draft.NeedsReview {
		color.Yellow("  ! low confidence, check the values")
	}
	if meta := draft.Extraction.ImageMetadata; meta.CapturedAt != nil {
		faint.Printf("  captured %s (%s)\n", meta.CapturedAt.Format("2006-01-02 15:04"), meta.Source)
	}
	for _, line := range detailLines(draft.Extraction.Detail) {
		fmt.Println("  " + line)
	}
}
