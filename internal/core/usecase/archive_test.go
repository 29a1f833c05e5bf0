package usecase

import (
	"bytes"
	"context"
	"encoding/csv"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/ride-progress/internal/core/domain"
)

func seededTimeline(t *testing.T) (*memoryRepo, *TimelineUseCase, domain.Session) {
	t.Helper()
	repo := newMemoryRepo()
	sess := domain.NewSession("rider-1", "")
	base := time.Date(2025, 2, 8, 11, 5, 30, 0, time.UTC)
	hashA, hashB := "hash-a", "hash-b"
	offset := 60

	mustInsert(t, repo, sess, domain.Snapshot{
		ID: "p1", CreatedAt: base, CapturedAt: ptrTime(base), TimezoneOffsetMinutes: &offset,
		Metadata:   domain.ImageMetadata{Source: domain.MetadataSourceEXIF, CapturedAt: ptrTime(base), TimezoneOffsetMinutes: &offset},
		Origin:     domain.OriginUpload,
		ScreenType: domain.ScreenProgressReport, ImageHash: &hashA, OverallConfidence: 0.9,
	}, SeedExtraction().Detail)
	mustInsert(t, repo, sess, domain.Snapshot{
		ID: "r1", CreatedAt: base.Add(time.Hour), CapturedAt: ptrTime(base.Add(time.Hour)),
		Metadata:   domain.ImageMetadata{Source: domain.MetadataSourceFile},
		Origin:     domain.OriginUpload,
		ScreenType: domain.ScreenRideMenu, ImageHash: &hashB, OverallConfidence: 0.8,
	}, &domain.RideMenu{
		Rider:    domain.RiderProfile{Name: "A. Rider", WeightKg: ptrFloat(72)},
		ThisRide: domain.RideStats{DistanceKm: 25.4, Power5sW: 640},
		Totals:   domain.LifetimeTotals{TotalDistanceKm: 5425.4},
	})
	return repo, NewTimelineUseCase(repo, nil, nil, nil), sess
}

type pair struct {
	Snapshot domain.Snapshot
	Detail   domain.Detail
}

func comparablePairs(t *testing.T, history HistorySource, sess domain.Session) []pair {
	t.Helper()
	entries, err := history.History(context.Background(), sess)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	out := make([]pair, 0, len(entries))
	for _, e := range entries {
		snap := e.Snapshot
		snap.ID = ""
		snap.UserID = ""
		snap.Origin = ""
		snap.CreatedAt = snap.CreatedAt.UTC()
		if snap.CapturedAt != nil {
			c := snap.CapturedAt.UTC()
			snap.CapturedAt = &c
		}
		snap.Metadata.CapturedAt = nil
		out = append(out, pair{Snapshot: snap, Detail: e.Detail})
	}
	return out
}

func TestArchiveRoundTripReproducesSnapshots(t *testing.T) {
	for _, format := range []domain.ExportFormat{domain.ExportJSON, domain.ExportYAML} {
		t.Run(string(format), func(t *testing.T) {
			_, source, sess := seededTimeline(t)
			exporter := NewArchiveUseCase(newMemoryRepo(), source)

			var buf bytes.Buffer
			if err := exporter.Export(context.Background(), sess, format, &buf); err != nil {
				t.Fatalf("Export() error = %v", err)
			}

			target := newMemoryRepo()
			targetTimeline := NewTimelineUseCase(target, nil, nil, nil)
			restorer := NewArchiveUseCase(target, targetTimeline)
			result, err := restorer.Restore(context.Background(), sess, format, bytes.NewReader(buf.Bytes()))
			if err != nil {
				t.Fatalf("Restore() error = %v", err)
			}
			if result.Imported != 2 || result.Failed != 0 {
				t.Fatalf("unexpected restore result %+v", result)
			}

			want := comparablePairs(t, source, sess)
			got := comparablePairs(t, targetTimeline, sess)
			if !reflect.DeepEqual(want, got) {
				t.Fatalf("round trip mismatch\nwant %+v\ngot  %+v", want, got)
			}
			for _, snap := range target.snaps {
				if snap.Origin != domain.OriginImport {
					t.Fatalf("expected import origin, got %s", snap.Origin)
				}
			}

			again, err := restorer.Restore(context.Background(), sess, format, bytes.NewReader(buf.Bytes()))
			if err != nil {
				t.Fatalf("second Restore() error = %v", err)
			}
			if again.Duplicates != 2 || again.Imported != 0 {
				t.Fatalf("expected duplicates on second restore, got %+v", again)
			}
		})
	}
}

func TestArchiveExportCSV(t *testing.T) {
	_, source, sess := seededTimeline(t)
	var buf bytes.Buffer
	if err := NewArchiveUseCase(nil, source).Export(context.Background(), sess, domain.ExportCSV, &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	rows, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 || strings.Join(rows[0], ",") != "date,level,ftp_w,racing_score,training_score,freshness,total_distance_km,streak_weeks" {
		t.Fatalf("unexpected csv %v", rows)
	}
	// newest first: ride menu then progress report
	if rows[1][1] != "" || rows[1][6] != "5425.4" {
		t.Fatalf("unexpected ride menu row %v", rows[1])
	}
	if rows[2][0] != "2025-02-08" || rows[2][1] != "61" || rows[2][2] != "210" || rows[2][5] != "FRESH" {
		t.Fatalf("unexpected progress row %v", rows[2])
	}
}

func TestArchiveExportXLSX(t *testing.T) {
	_, source, sess := seededTimeline(t)
	var buf bytes.Buffer
	if err := NewArchiveUseCase(nil, source).Export(context.Background(), sess, domain.ExportXLSX, &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()
	header, err := f.GetCellValue("Snapshots", "C1")
	if err != nil || header != "ftp_w" {
		t.Fatalf("expected ftp_w header, got %q (%v)", header, err)
	}
	ftp, err := f.GetCellValue("Snapshots", "C3")
	if err != nil || ftp != "210" {
		t.Fatalf("expected ftp 210, got %q (%v)", ftp, err)
	}
}

func TestArchiveRejectsUnknownFormat(t *testing.T) {
	_, source, sess := seededTimeline(t)
	uc := NewArchiveUseCase(newMemoryRepo(), source)
	if err := uc.Export(context.Background(), sess, "pdf", &bytes.Buffer{}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := uc.Restore(context.Background(), sess, domain.ExportCSV, strings.NewReader("")); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected csv restore to be rejected, got %v", err)
	}
}
