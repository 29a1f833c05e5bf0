package usecase

import "github.com/kirillkom/ride-progress/internal/core/domain"

// MetricValue reads one metric from a detail record. ok is false when the
// variant does not carry the metric or the section is missing.
func MetricValue(detail domain.Detail, metric domain.MetricID) (float64, bool) {
	switch d := detail.(type) {
	case *domain.ProgressReport:
		return progressMetric(d, metric)
	case *domain.RideMenu:
		return rideMenuMetric(d, metric)
	default:
		return 0, false
	}
}

func progressMetric(d *domain.ProgressReport, metric domain.MetricID) (float64, bool) {
	if d == nil {
		return 0, false
	}
	perf, fit, training, career := d.Performance, d.Fitness, d.Training, d.Career

	switch metric {
	case domain.MetricFTP:
		if perf != nil {
			return perf.FTPW, true
		}
	case domain.MetricRacingScore:
		if perf != nil {
			return perf.RacingScore, true
		}
	case domain.MetricPower5s:
		if perf != nil {
			return perf.Best5sW, true
		}
	case domain.MetricPower1m:
		if perf != nil {
			return perf.Best1mW, true
		}
	case domain.MetricPower5m:
		if perf != nil {
			return perf.Best5mW, true
		}
	case domain.MetricPower20m:
		if perf != nil {
			return perf.Best20mW, true
		}
	case domain.MetricTrainingScore:
		if training != nil {
			return training.TrainingScore, true
		}
	case domain.MetricWeeklyProgress:
		if fit != nil {
			return fit.WeeklyProgressKm, true
		}
	case domain.MetricTotalDistance:
		if fit != nil {
			return fit.TotalDistanceKm, true
		}
	case domain.MetricElevation:
		if fit != nil {
			return fit.TotalElevationM, true
		}
	case domain.MetricEnergy:
		if fit != nil {
			return fit.TotalEnergyKJ, true
		}
	case domain.MetricStreak:
		if fit != nil {
			return fit.StreakWeeks, true
		}
	case domain.MetricXP:
		if career != nil {
			return career.XPCurrent, true
		}
	}
	return 0, false
}

func rideMenuMetric(d *domain.RideMenu, metric domain.MetricID) (float64, bool) {
	if d == nil {
		return 0, false
	}

	switch metric {
	case domain.MetricTotalDistance:
		return d.Totals.TotalDistanceKm, true
	case domain.MetricElevation:
		return d.Totals.TotalElevationM, true
	case domain.MetricPower5s:
		return bestOrThisRide(d.YourBest.Best5sW, d.ThisRide.Power5sW), true
	case domain.MetricPower1m:
		return bestOrThisRide(d.YourBest.Best1mW, d.ThisRide.Power1mW), true
	case domain.MetricPower5m:
		return bestOrThisRide(d.YourBest.Best5mW, d.ThisRide.Power5mW), true
	case domain.MetricPower20m:
		return bestOrThisRide(d.YourBest.Best20mW, d.ThisRide.Power20mW), true
	case domain.MetricAvgPower:
		return d.Averages.AvgPowerW, true
	case domain.MetricAvgHeartRate:
		if d.Averages.AvgHeartRateBPM != nil {
			return *d.Averages.AvgHeartRateBPM, true
		}
	case domain.MetricRiderScore:
		return d.RiderScore.Score, true
	case domain.MetricRideDistance:
		return d.ThisRide.DistanceKm, true
	}
	return 0, false
}

// bestOrThisRide prefers the all-time best and falls back to this ride's value
// when the best was not readable. A zero in both stays a reading of zero.
func bestOrThisRide(best, thisRide float64) float64 {
	if best > 0 {
		return best
	}
	return thisRide
}
