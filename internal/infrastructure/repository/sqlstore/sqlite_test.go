package sqlstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/kirillkom/ride-progress/internal/core/domain"
)

func newSQLiteRepo(t *testing.T) *SnapshotRepository {
	t.Helper()
	db, err := OpenDB(SQLite, filepath.Join(t.TempDir(), "ride.db"))
	if err != nil {
		t.Fatalf("OpenDB() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := NewSnapshotRepository(db, SQLite)
	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	return repo
}

func ptr[T any](v T) *T { return &v }

func TestSQLiteRoundTrip(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()
	sess := domain.NewSession("rider-1", "")

	older := time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 1, 9, 8, 0, 0, 0, time.UTC)

	progress := &domain.Snapshot{
		ID:                "p1",
		CreatedAt:         newer.Add(time.Hour),
		CapturedAt:        &older,
		Metadata:          domain.ImageMetadata{CapturedAt: &older, Source: domain.MetadataSourceEXIF},
		Origin:            domain.OriginUpload,
		ScreenType:        domain.ScreenProgressReport,
		ImageHash:         ptr("hash-p1"),
		ParsedData:        []byte(`{"screen_type":"progress_report"}`),
		OverallConfidence: 0.95,
	}
	report := &domain.ProgressReport{
		Level:       61,
		Career:      &domain.CareerProgress{XPCurrent: 690, XPTarget: 2234, ChallengeName: "Zwift Concept Z1"},
		Performance: &domain.Performance{FTPW: 205, Best5sW: 679},
		Fitness:     &domain.FitnessTrends{TotalDistanceKm: 5400, StreakWeeks: 48},
		Training:    &domain.TrainingStatus{TrainingScore: 23.2, FreshnessState: domain.FreshnessFresh},
	}
	if err := repo.Insert(ctx, sess, progress, report); err != nil {
		t.Fatalf("Insert(progress) error = %v", err)
	}

	ride := &domain.Snapshot{
		ID:         "r1",
		CreatedAt:  newer,
		CapturedAt: &newer,
		Origin:     domain.OriginImport,
		ScreenType: domain.ScreenRideMenu,
		ImageURL:   ptr("storage:screenshots/uploads/r1.jpg"),
		ImageHash:  ptr("hash-r1"),
	}
	menu := &domain.RideMenu{
		Rider:    domain.RiderProfile{Name: "K. Rider", WeightKg: ptr(72.5)},
		ThisRide: domain.RideStats{DistanceKm: 30.2, Power5sW: 650},
		Averages: domain.RideAverages{AvgPowerW: 180},
	}
	if err := repo.Insert(ctx, sess, ride, menu); err != nil {
		t.Fatalf("Insert(ride) error = %v", err)
	}

	dup := *progress
	dup.ID = "p2"
	if err := repo.Insert(ctx, sess, &dup, report); !domain.IsKind(err, domain.ErrDuplicateContent) {
		t.Fatalf("expected duplicate, got %v", err)
	}

	snaps, err := repo.List(ctx, sess, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(snaps) != 2 || snaps[0].ID != "r1" || snaps[1].ID != "p1" {
		t.Fatalf("unexpected order: %+v", snaps)
	}
	if snaps[1].Metadata.Source != domain.MetadataSourceEXIF || !snaps[1].CapturedAt.Equal(older) {
		t.Fatalf("metadata not round-tripped: %+v", snaps[1])
	}

	reports, err := repo.ListProgressReports(ctx, sess, []string{"p1", "r1"})
	if err != nil {
		t.Fatalf("ListProgressReports() error = %v", err)
	}
	got := reports["p1"]
	if got == nil || got.Level != 61 || got.Career.ChallengeName != "Zwift Concept Z1" || got.Performance.FTPW != 205 ||
		got.Fitness.StreakWeeks != 48 || got.Training.FreshnessState != domain.FreshnessFresh {
		t.Fatalf("unexpected progress report: %+v", got)
	}
	if _, ok := reports["r1"]; ok {
		t.Fatalf("ride menu must not appear in progress reports")
	}

	menus, err := repo.ListRideMenus(ctx, sess, []string{"r1"})
	if err != nil {
		t.Fatalf("ListRideMenus() error = %v", err)
	}
	m := menus["r1"]
	if m == nil || m.Rider.Name != "K. Rider" || m.Rider.HeightCm != nil || *m.Rider.WeightKg != 72.5 || m.ThisRide.Power5sW != 650 {
		t.Fatalf("unexpected ride menu: %+v", m)
	}

	found, err := repo.FindByHash(ctx, sess, "hash-r1")
	if err != nil || found.ID != "r1" {
		t.Fatalf("FindByHash() = %v, %v", found, err)
	}
	if _, err := repo.FindByHash(ctx, domain.NewSession("other", ""), "hash-r1"); !domain.IsKind(err, domain.ErrSnapshotNotFound) {
		t.Fatalf("hash lookup must be user scoped, got %v", err)
	}

	if err := repo.Delete(ctx, sess, "p1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	reports, err = repo.ListProgressReports(ctx, sess, []string{"p1"})
	if err != nil {
		t.Fatalf("ListProgressReports() after delete error = %v", err)
	}
	if len(reports) != 0 {
		t.Fatalf("expected detail rows to cascade, got %+v", reports)
	}
	n, err := repo.Count(ctx, sess)
	if err != nil || n != 1 {
		t.Fatalf("Count() = %d, %v", n, err)
	}
}
