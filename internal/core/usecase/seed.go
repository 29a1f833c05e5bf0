package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/ride-progress/internal/core/domain"
	"github.com/kirillkom/ride-progress/internal/core/ports"
)

type SeedUseCase struct {
	repo     ports.SnapshotRepository
	importer *ImportUseCase
}

func NewSeedUseCase(repo ports.SnapshotRepository, importer *ImportUseCase) *SeedUseCase {
	return &SeedUseCase{repo: repo, importer: importer}
}

// SeedIfEmpty stores one demo progress report when the user has no snapshots.
// It reports whether a snapshot was created.
func (uc *SeedUseCase) SeedIfEmpty(ctx context.Context, sess domain.Session) (bool, error) {
	count, err := uc.repo.Count(ctx, sess)
	if err != nil {
		return false, fmt.Errorf("count snapshots: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	snap, err := uc.importer.save(ctx, sess, domain.Draft{Extraction: SeedExtraction()}, domain.OriginSeed)
	if err != nil {
		return false, fmt.Errorf("insert seed snapshot: %w", err)
	}
	slog.Info("seed_snapshot_created", "snapshot_id", snap.ID, "user_id", sess.UserID)
	return true, nil
}

func SeedExtraction() domain.Extraction {
	return domain.Extraction{
		ScreenType: domain.ScreenProgressReport,
		Detail: &domain.ProgressReport{
			Level: 61,
			Career: &domain.CareerProgress{
				ThisRideXP:            690,
				XPCurrent:             2234,
				XPTarget:              8400,
				AchievementsCurrent:   27,
				AchievementsTarget:    36,
				RouteBadgesCurrent:    37,
				RouteBadgesTarget:     224,
				ChallengeName:         "Zwift Concept Z1",
				ChallengeStageCurrent: 0,
				ChallengeStageTarget:  5,
				ChallengeThisRideKm:   0,
				ChallengeProgressKm:   0,
				ChallengeTargetKm:     550,
			},
			Performance: &domain.Performance{
				Best5sW:     679,
				Best1mW:     332,
				Best5mW:     205,
				Best20mW:    184,
				FTPW:        210,
				RacingScore: 130,
			},
			Fitness: &domain.FitnessTrends{
				WeeklyThisRideKm: 35,
				WeeklyProgressKm: 113,
				WeeklyGoalKm:     113,
				StreakWeeks:      48,
				TotalDistanceKm:  5400,
				TotalElevationM:  20125,
				TotalEnergyKJ:    77230,
			},
			Training: &domain.TrainingStatus{
				TrainingScore:      23.2,
				TrainingScoreDelta: 0.9,
				FreshnessState:     domain.FreshnessFresh,
			},
		},
		ImageMetadata: domain.UnknownMetadata(),
		Confidence:    domain.Confidence{Overall: 1},
	}
}
