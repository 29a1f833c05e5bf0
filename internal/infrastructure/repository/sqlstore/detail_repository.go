package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/ride-progress/internal/core/domain"
)

func (r *SnapshotRepository) insertDetail(ctx context.Context, tx *sql.Tx, snapshotID string, detail domain.Detail) error {
	switch d := detail.(type) {
	case nil:
		return nil
	case *domain.ProgressReport:
		return r.insertProgressReport(ctx, tx, snapshotID, d)
	case *domain.RideMenu:
		return r.insertRideMenu(ctx, tx, snapshotID, d)
	default:
		return domain.WrapError(domain.ErrInvalidInput, "insert detail", fmt.Errorf("unsupported detail %T", detail))
	}
}

func (r *SnapshotRepository) insertProgressReport(ctx context.Context, tx *sql.Tx, id string, p *domain.ProgressReport) error {
	career := domain.CareerProgress{}
	if p.Career != nil {
		career = *p.Career
	}
	_, err := tx.ExecContext(ctx, r.dialect.rebind(`
INSERT INTO progress_report_metrics (
	snapshot_id, level, this_ride_xp, xp_current, xp_target, achievements_current, achievements_target,
	route_badges_current, route_badges_target, challenge_name, challenge_stage_current, challenge_stage_target,
	challenge_this_ride_km, challenge_progress_km, challenge_target_km
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
`),
		id, p.Level, career.ThisRideXP, career.XPCurrent, career.XPTarget, career.AchievementsCurrent, career.AchievementsTarget,
		career.RouteBadgesCurrent, career.RouteBadgesTarget, career.ChallengeName, career.ChallengeStageCurrent, career.ChallengeStageTarget,
		career.ChallengeThisRideKm, career.ChallengeProgressKm, career.ChallengeTargetKm,
	)
	if err != nil {
		return fmt.Errorf("insert progress report metrics: %w", err)
	}

	if perf := p.Performance; perf != nil {
		_, err := tx.ExecContext(ctx, r.dialect.rebind(`
INSERT INTO performance_metrics (snapshot_id, best_5s_w, best_1m_w, best_5m_w, best_20m_w, ftp_w, racing_score)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`), id, perf.Best5sW, perf.Best1mW, perf.Best5mW, perf.Best20mW, perf.FTPW, perf.RacingScore)
		if err != nil {
			return fmt.Errorf("insert performance metrics: %w", err)
		}
	}

	if fit := p.Fitness; fit != nil {
		_, err := tx.ExecContext(ctx, r.dialect.rebind(`
INSERT INTO fitness_trends (
	snapshot_id, weekly_this_ride_km, weekly_progress_km, weekly_goal_km, streak_weeks,
	total_distance_km, total_elevation_m, total_energy_kj
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`), id, fit.WeeklyThisRideKm, fit.WeeklyProgressKm, fit.WeeklyGoalKm, fit.StreakWeeks,
			fit.TotalDistanceKm, fit.TotalElevationM, fit.TotalEnergyKJ)
		if err != nil {
			return fmt.Errorf("insert fitness trends: %w", err)
		}
	}

	if ts := p.Training; ts != nil {
		freshness := ts.FreshnessState
		if freshness == "" {
			freshness = domain.FreshnessUnknown
		}
		_, err := tx.ExecContext(ctx, r.dialect.rebind(`
INSERT INTO training_status (snapshot_id, training_score, training_score_delta, freshness_state)
VALUES ($1,$2,$3,$4)
`), id, ts.TrainingScore, ts.TrainingScoreDelta, string(freshness))
		if err != nil {
			return fmt.Errorf("insert training status: %w", err)
		}
	}
	return nil
}

func (r *SnapshotRepository) insertRideMenu(ctx context.Context, tx *sql.Tx, id string, m *domain.RideMenu) error {
	_, err := tx.ExecContext(ctx, r.dialect.rebind(`
INSERT INTO ride_menu_metrics (
	snapshot_id, rider_name, height_cm, weight_kg,
	ride_distance_km, ride_duration_minutes, ride_calories, ride_elevation_m,
	power_5s_w, power_1m_w, power_5m_w, power_20m_w,
	best_5s_w, best_1m_w, best_5m_w, best_20m_w,
	total_distance_km, total_time_minutes, total_calories, total_elevation_m,
	rider_score, until_next_level, avg_power_w, avg_heart_rate_bpm
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)
`),
		id, m.Rider.Name, nullableFloat(m.Rider.HeightCm), nullableFloat(m.Rider.WeightKg),
		m.ThisRide.DistanceKm, m.ThisRide.DurationMinutes, m.ThisRide.Calories, m.ThisRide.ElevationM,
		m.ThisRide.Power5sW, m.ThisRide.Power1mW, m.ThisRide.Power5mW, m.ThisRide.Power20mW,
		m.YourBest.Best5sW, m.YourBest.Best1mW, m.YourBest.Best5mW, m.YourBest.Best20mW,
		m.Totals.TotalDistanceKm, m.Totals.TotalTimeMinutes, m.Totals.TotalCalories, m.Totals.TotalElevationM,
		m.RiderScore.Score, m.RiderScore.UntilNextLevel, m.Averages.AvgPowerW, nullableFloat(m.Averages.AvgHeartRateBPM),
	)
	if err != nil {
		return fmt.Errorf("insert ride menu metrics: %w", err)
	}
	return nil
}

// ListProgressReports loads the four progress tables concurrently and joins
// them by snapshot id. Snapshots without any row are absent from the result.
func (r *SnapshotRepository) ListProgressReports(ctx context.Context, sess domain.Session, ids []string) (map[string]*domain.ProgressReport, error) {
	out := make(map[string]*domain.ProgressReport, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var (
		career   map[string]careerRow
		perf     map[string]*domain.Performance
		fitness  map[string]*domain.FitnessTrends
		training map[string]*domain.TrainingStatus
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		career, err = r.loadCareer(gctx, sess, ids)
		return err
	})
	g.Go(func() (err error) {
		perf, err = r.loadPerformance(gctx, sess, ids)
		return err
	})
	g.Go(func() (err error) {
		fitness, err = r.loadFitness(gctx, sess, ids)
		return err
	})
	g.Go(func() (err error) {
		training, err = r.loadTraining(gctx, sess, ids)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := func(id string) *domain.ProgressReport {
		p, ok := out[id]
		if !ok {
			p = &domain.ProgressReport{}
			out[id] = p
		}
		return p
	}
	for id, row := range career {
		p := report(id)
		p.Level = row.level
		p.Career = row.career
	}
	for id, v := range perf {
		report(id).Performance = v
	}
	for id, v := range fitness {
		report(id).Fitness = v
	}
	for id, v := range training {
		report(id).Training = v
	}
	return out, nil
}

type careerRow struct {
	level  int
	career *domain.CareerProgress
}

func (r *SnapshotRepository) loadCareer(ctx context.Context, sess domain.Session, ids []string) (map[string]careerRow, error) {
	out := make(map[string]careerRow, len(ids))
	err := r.queryDetail(ctx, "progress_report_metrics", `d.level, d.this_ride_xp, d.xp_current, d.xp_target,
	d.achievements_current, d.achievements_target, d.route_badges_current, d.route_badges_target, d.challenge_name,
	d.challenge_stage_current, d.challenge_stage_target, d.challenge_this_ride_km, d.challenge_progress_km, d.challenge_target_km`,
		sess, ids, func(rows *sql.Rows) error {
			var id string
			var row careerRow
			c := &domain.CareerProgress{}
			if err := rows.Scan(&id, &row.level, &c.ThisRideXP, &c.XPCurrent, &c.XPTarget,
				&c.AchievementsCurrent, &c.AchievementsTarget, &c.RouteBadgesCurrent, &c.RouteBadgesTarget, &c.ChallengeName,
				&c.ChallengeStageCurrent, &c.ChallengeStageTarget, &c.ChallengeThisRideKm, &c.ChallengeProgressKm, &c.ChallengeTargetKm,
			); err != nil {
				return err
			}
			row.career = c
			out[id] = row
			return nil
		})
	return out, err
}

func (r *SnapshotRepository) loadPerformance(ctx context.Context, sess domain.Session, ids []string) (map[string]*domain.Performance, error) {
	out := make(map[string]*domain.Performance, len(ids))
	err := r.queryDetail(ctx, "performance_metrics", `d.best_5s_w, d.best_1m_w, d.best_5m_w, d.best_20m_w, d.ftp_w, d.racing_score`,
		sess, ids, func(rows *sql.Rows) error {
			var id string
			p := &domain.Performance{}
			if err := rows.Scan(&id, &p.Best5sW, &p.Best1mW, &p.Best5mW, &p.Best20mW, &p.FTPW, &p.RacingScore); err != nil {
				return err
			}
			out[id] = p
			return nil
		})
	return out, err
}

func (r *SnapshotRepository) loadFitness(ctx context.Context, sess domain.Session, ids []string) (map[string]*domain.FitnessTrends, error) {
	out := make(map[string]*domain.FitnessTrends, len(ids))
	err := r.queryDetail(ctx, "fitness_trends", `d.weekly_this_ride_km, d.weekly_progress_km, d.weekly_goal_km, d.streak_weeks,
	d.total_distance_km, d.total_elevation_m, d.total_energy_kj`,
		sess, ids, func(rows *sql.Rows) error {
			var id string
			f := &domain.FitnessTrends{}
			if err := rows.Scan(&id, &f.WeeklyThisRideKm, &f.WeeklyProgressKm, &f.WeeklyGoalKm, &f.StreakWeeks,
				&f.TotalDistanceKm, &f.TotalElevationM, &f.TotalEnergyKJ); err != nil {
				return err
			}
			out[id] = f
			return nil
		})
	return out, err
}

func (r *SnapshotRepository) loadTraining(ctx context.Context, sess domain.Session, ids []string) (map[string]*domain.TrainingStatus, error) {
	out := make(map[string]*domain.TrainingStatus, len(ids))
	err := r.queryDetail(ctx, "training_status", `d.training_score, d.training_score_delta, d.freshness_state`,
		sess, ids, func(rows *sql.Rows) error {
			var id, freshness string
			ts := &domain.TrainingStatus{}
			if err := rows.Scan(&id, &ts.TrainingScore, &ts.TrainingScoreDelta, &freshness); err != nil {
				return err
			}
			ts.FreshnessState = domain.ParseFreshness(freshness)
			out[id] = ts
			return nil
		})
	return out, err
}

func (r *SnapshotRepository) ListRideMenus(ctx context.Context, sess domain.Session, ids []string) (map[string]*domain.RideMenu, error) {
	out := make(map[string]*domain.RideMenu, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	err := r.queryDetail(ctx, "ride_menu_metrics", `d.rider_name, d.height_cm, d.weight_kg,
	d.ride_distance_km, d.ride_duration_minutes, d.ride_calories, d.ride_elevation_m,
	d.power_5s_w, d.power_1m_w, d.power_5m_w, d.power_20m_w,
	d.best_5s_w, d.best_1m_w, d.best_5m_w, d.best_20m_w,
	d.total_distance_km, d.total_time_minutes, d.total_calories, d.total_elevation_m,
	d.rider_score, d.until_next_level, d.avg_power_w, d.avg_heart_rate_bpm`,
		sess, ids, func(rows *sql.Rows) error {
			var (
				id                    string
				height, weight, heart sql.NullFloat64
				m                     domain.RideMenu
			)
			if err := rows.Scan(&id, &m.Rider.Name, &height, &weight,
				&m.ThisRide.DistanceKm, &m.ThisRide.DurationMinutes, &m.ThisRide.Calories, &m.ThisRide.ElevationM,
				&m.ThisRide.Power5sW, &m.ThisRide.Power1mW, &m.ThisRide.Power5mW, &m.ThisRide.Power20mW,
				&m.YourBest.Best5sW, &m.YourBest.Best1mW, &m.YourBest.Best5mW, &m.YourBest.Best20mW,
				&m.Totals.TotalDistanceKm, &m.Totals.TotalTimeMinutes, &m.Totals.TotalCalories, &m.Totals.TotalElevationM,
				&m.RiderScore.Score, &m.RiderScore.UntilNextLevel, &m.Averages.AvgPowerW, &heart,
			); err != nil {
				return err
			}
			m.Rider.HeightCm = optionalFloat(height)
			m.Rider.WeightKg = optionalFloat(weight)
			m.Averages.AvgHeartRateBPM = optionalFloat(heart)
			out[id] = &m
			return nil
		})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// queryDetail selects detail rows of one table for the given snapshot ids,
// scoped to the session user through the parent row.
func (r *SnapshotRepository) queryDetail(
	ctx context.Context,
	table string,
	columns string,
	sess domain.Session,
	ids []string,
	scan func(*sql.Rows) error,
) error {
	args := make([]any, 0, len(ids)+1)
	args = append(args, sess.UserID)
	placeholders := make([]string, 0, len(ids))
	for i, id := range ids {
		placeholders = append(placeholders, "$"+strconv.Itoa(i+2))
		args = append(args, id)
	}

	query := `
SELECT d.snapshot_id, ` + columns + `
FROM ` + table + ` d
JOIN snapshots s ON s.id = d.snapshot_id
WHERE s.user_id = $1 AND d.snapshot_id IN (` + strings.Join(placeholders, ",") + `)
`
	rows, err := r.db.QueryContext(ctx, r.dialect.rebind(query), args...)
	if err != nil {
		return fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return fmt.Errorf("scan %s: %w", table, err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate %s: %w", table, err)
	}
	return nil
}
