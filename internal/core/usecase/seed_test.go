package usecase

import (
	"context"
	"testing"

	"github.com/kirillkom/ride-progress/internal/core/domain"
)

func TestSeedIfEmptyCreatesOnce(t *testing.T) {
	uc, repo, _, _ := newImportFixture(&extractorFake{})
	seed := NewSeedUseCase(repo, uc)
	sess := domain.NewSession("rider-1", "")

	created, err := seed.SeedIfEmpty(context.Background(), sess)
	if err != nil || !created {
		t.Fatalf("expected seed to be created, got %v (%v)", created, err)
	}
	created, err = seed.SeedIfEmpty(context.Background(), sess)
	if err != nil || created {
		t.Fatalf("expected no second seed, got %v (%v)", created, err)
	}
	if len(repo.snaps) != 1 || repo.snaps[0].Origin != domain.OriginSeed {
		t.Fatalf("expected one seed snapshot, got %+v", repo.snaps)
	}
	report := repo.details[repo.snaps[0].ID].(*domain.ProgressReport)
	if report.Performance.FTPW != 210 || report.Training.FreshnessState != domain.FreshnessFresh {
		t.Fatalf("unexpected seed detail %+v", report)
	}
}
