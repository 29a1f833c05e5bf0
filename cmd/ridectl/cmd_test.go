package main

import (
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/ride-progress/internal/core/domain"
	"github.com/kirillkom/ride-progress/internal/core/usecase"
)

func TestArchiveFormat(t *testing.T) {
	tests := []struct {
		name     string
		explicit string
		path     string
		want     domain.ExportFormat
		wantErr  bool
	}{
		{name: "explicit wins", explicit: "csv", path: "out.json", want: domain.ExportCSV},
		{name: "from extension", path: "progress.xlsx", want: domain.ExportXLSX},
		{name: "yml alias", path: "backup.yml", want: domain.ExportYAML},
		{name: "default json", want: domain.ExportJSON},
		{name: "unknown", explicit: "pdf", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := archiveFormat(tt.explicit, tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("archiveFormat() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Fatalf("archiveFormat() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCaptureLabel(t *testing.T) {
	captured := time.Date(2026, 1, 31, 8, 30, 0, 0, time.UTC)
	if got := captureLabel(domain.Snapshot{CapturedAt: &captured}); got != "2026-01-31 08:30" {
		t.Fatalf("unexpected label %q", got)
	}
	created := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	if got := captureLabel(domain.Snapshot{CreatedAt: created}); got != "added 2026-02-01" {
		t.Fatalf("unexpected fallback label %q", got)
	}
}

func TestDetailLinesListsCarriedMetrics(t *testing.T) {
	lines := detailLines(usecase.SeedExtraction().Detail)
	joined := strings.Join(lines, "\n")
	if !strings.Contains(joined, "FTP") || !strings.Contains(joined, "210 W") {
		t.Fatalf("expected FTP line, got:\n%s", joined)
	}
	for _, line := range lines {
		if strings.HasPrefix(line, "Avg Power") {
			t.Fatalf("progress report must not list ride menu metrics: %q", line)
		}
	}
}

func TestPadRight(t *testing.T) {
	if got := padRight("ftp", 6); got != "ftp   " {
		t.Fatalf("padRight() = %q", got)
	}
	if got := padRight("training_score", 4); got != "training_score" {
		t.Fatalf("padRight() must not truncate, got %q", got)
	}
}
