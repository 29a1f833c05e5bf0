package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/kirillkom/ride-progress/internal/core/domain"
)

func TestCompareOmitsAndFramesDeltasByPolicy(t *testing.T) {
	previous := &domain.ProgressReport{
		Performance: &domain.Performance{FTPW: 205, Best5sW: 700, Best1mW: 330},
		Fitness:     &domain.FitnessTrends{TotalDistanceKm: 5400},
	}
	current := &domain.ProgressReport{
		Performance: &domain.Performance{FTPW: 210, Best5sW: 690, Best1mW: 340},
		Fitness:     &domain.FitnessTrends{TotalDistanceKm: 5400},
	}

	deltas := Compare(current, previous, domain.DefaultDeltaRules())
	byMetric := make(map[domain.MetricID]domain.Delta)
	for _, d := range deltas {
		byMetric[d.Metric] = d
	}

	ftp, ok := byMetric[domain.MetricFTP]
	if !ok {
		t.Fatalf("expected ftp delta")
	}
	if ftp.Difference != 5 || ftp.Direction != domain.DirectionUp || !ftp.ShowFromTo {
		t.Fatalf("unexpected ftp delta: %+v", ftp)
	}
	if ftp.Text != "+5 W (205 → 210)" {
		t.Fatalf("unexpected ftp text %q", ftp.Text)
	}
	if _, ok := byMetric[domain.MetricPower5s]; ok {
		t.Fatalf("decreased increase-only metric must be omitted")
	}
	if d, ok := byMetric[domain.MetricPower1m]; !ok || d.Difference != 10 {
		t.Fatalf("expected 1m power increase of 10, got %+v", d)
	}
	if d, ok := byMetric[domain.MetricTotalDistance]; !ok || d.Direction != domain.DirectionNone || d.Text != "No change" {
		t.Fatalf("expected no-change total distance, got %+v", d)
	}
	if _, ok := byMetric[domain.MetricTrainingScore]; ok {
		t.Fatalf("metric with missing section must be omitted")
	}
}

func TestCompareOmitsEqualIncreaseOnlyMetric(t *testing.T) {
	prev := &domain.ProgressReport{Performance: &domain.Performance{Best20mW: 184}}
	curr := &domain.ProgressReport{Performance: &domain.Performance{Best20mW: 184}}
	rules := []domain.DeltaRule{{Metric: domain.MetricPower20m, Label: "20m Power", Unit: "W", Policy: domain.PolicyIncreaseOnly}}

	if deltas := Compare(curr, prev, rules); len(deltas) != 0 {
		t.Fatalf("expected no deltas, got %+v", deltas)
	}
}

func TestCompareKeepsSmallDifferencesVisible(t *testing.T) {
	prev := &domain.ProgressReport{Fitness: &domain.FitnessTrends{TotalDistanceKm: 5400.31}}
	curr := &domain.ProgressReport{Fitness: &domain.FitnessTrends{TotalDistanceKm: 5400.35}}
	rules := []domain.DeltaRule{{Metric: domain.MetricTotalDistance, Label: "Total Distance", Unit: "km", Policy: domain.PolicyDirection}}

	deltas := Compare(curr, prev, rules)
	if len(deltas) != 1 {
		t.Fatalf("expected one delta, got %+v", deltas)
	}
	if deltas[0].Direction != domain.DirectionUp || deltas[0].Text != "+0.04 km" {
		t.Fatalf("unexpected delta %+v", deltas[0])
	}
}

func TestCompareFramingFollowsRule(t *testing.T) {
	prev := &domain.ProgressReport{Career: &domain.CareerProgress{XPCurrent: 1000}}
	curr := &domain.ProgressReport{Career: &domain.CareerProgress{XPCurrent: 1250}}

	framed := Compare(curr, prev, []domain.DeltaRule{{Metric: domain.MetricXP, Label: "XP", Policy: domain.PolicyDirection, ShowFromTo: true}})
	if len(framed) != 1 || framed[0].Text != "+250 (1000 → 1250)" {
		t.Fatalf("expected framed xp delta, got %+v", framed)
	}
	plain := Compare(curr, prev, []domain.DeltaRule{{Metric: domain.MetricXP, Label: "XP", Policy: domain.PolicyAlways}})
	if len(plain) != 1 || plain[0].Text != "+250" || plain[0].ShowFromTo {
		t.Fatalf("expected unframed xp delta, got %+v", plain)
	}
}

func TestFindReferenceSkipsOtherScreenTypes(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	// newest first: P2, R1, P1
	timeline := []domain.TimelineEntry{
		progressEntry("p2", base.Add(48*time.Hour), 212),
		rideEntry("r1", base.Add(24*time.Hour), 650),
		progressEntry("p1", base, 205),
	}

	ref, ok := FindReference(timeline, "p2")
	if !ok || ref.Snapshot.ID != "p1" {
		t.Fatalf("expected p1 as reference, got %+v ok=%v", ref.Snapshot.ID, ok)
	}
	if _, ok := FindReference(timeline, "r1"); ok {
		t.Fatalf("expected no reference for the only ride menu")
	}
	if _, ok := FindReference(timeline, "p1"); ok {
		t.Fatalf("expected no reference for the oldest snapshot")
	}
}

func TestCompareUseCaseWithoutReference(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	uc := NewCompareUseCase(staticHistory{entries: []domain.TimelineEntry{
		rideEntry("r1", base.Add(time.Hour), 650),
		progressEntry("p1", base, 205),
	}}, nil)

	cmp, err := uc.Compare(context.Background(), domain.NewSession("u1", ""), "p1")
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if cmp.Available || cmp.Message != domain.NoComparisonMessage {
		t.Fatalf("expected unavailable comparison, got %+v", cmp)
	}

	_, err = uc.Compare(context.Background(), domain.NewSession("u1", ""), "missing")
	if !domain.IsKind(err, domain.ErrSnapshotNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCompareUseCaseAcrossRideMenus(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	uc := NewCompareUseCase(staticHistory{entries: []domain.TimelineEntry{
		rideEntry("r2", base.Add(48*time.Hour), 700),
		progressEntry("p1", base.Add(24*time.Hour), 205),
		rideEntry("r1", base, 650),
	}}, nil)

	cmp, err := uc.Compare(context.Background(), domain.NewSession("u1", ""), "r2")
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if !cmp.Available || cmp.ReferenceID != "r1" {
		t.Fatalf("expected r1 reference, got %+v", cmp)
	}
	if len(cmp.Deltas) == 0 || cmp.Deltas[0].Metric != domain.MetricPower5s || cmp.Deltas[0].Difference != 50 {
		t.Fatalf("expected 5s power delta of 50, got %+v", cmp.Deltas)
	}
}
