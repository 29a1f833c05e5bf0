package usecase

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/kirillkom/ride-progress/internal/core/domain"
)

type NormalizeResult struct {
	Extraction  domain.Extraction
	Parsed      bool
	NeedsReview bool
}

var numberPattern = regexp.MustCompile(`[-+]?\d*\.?\d+`)

// NormalizeExtraction turns the raw answer of the vision model into a fully
// populated extraction. It never fails: unreadable answers produce the
// all-default record with zero confidence.
func NormalizeExtraction(raw string, meta domain.ImageMetadata) NormalizeResult {
	payload, ok := decodeModelJSON(raw)
	if !ok {
		return NormalizeResult{
			Extraction:  FallbackExtraction(meta, domain.ScreenProgressReport),
			Parsed:      false,
			NeedsReview: true,
		}
	}

	screen := domain.ScreenProgressReport
	if explicit := domain.ScreenType(strings.ToLower(strings.TrimSpace(text(payload, "screen_type")))); explicit.Valid() {
		screen = explicit
	}

	var detail domain.Detail
	switch screen {
	case domain.ScreenRideMenu:
		detail = normalizeRideMenu(payload)
	default:
		detail = normalizeProgressReport(payload)
	}

	extraction := domain.Extraction{
		ScreenType:    screen,
		Detail:        detail,
		ImageMetadata: meta,
		Confidence:    domain.Confidence{Overall: clampUnit(number(section(payload, "confidence"), "overall"))},
	}
	return NormalizeResult{
		Extraction:  extraction,
		Parsed:      true,
		NeedsReview: extraction.NeedsReview(),
	}
}

// FallbackExtraction is the all-default record used when extraction is
// unavailable.
func FallbackExtraction(meta domain.ImageMetadata, screen domain.ScreenType) domain.Extraction {
	if !screen.Valid() {
		screen = domain.ScreenProgressReport
	}
	return domain.Extraction{
		ScreenType:    screen,
		Detail:        domain.EmptyDetail(screen),
		ImageMetadata: meta,
		Confidence:    domain.Confidence{Overall: 0},
	}
}

func normalizeProgressReport(payload map[string]any) *domain.ProgressReport {
	career := section(payload, "career_progress")
	perf := section(payload, "performance")
	fitness := section(payload, "fitness_trends")
	training := section(payload, "training_status")

	return &domain.ProgressReport{
		Level: integer(payload, "level"),
		Career: &domain.CareerProgress{
			ThisRideXP:            number(career, "this_ride_xp"),
			XPCurrent:             number(career, "xp_current"),
			XPTarget:              number(career, "xp_target"),
			AchievementsCurrent:   integer(career, "achievements_current"),
			AchievementsTarget:    integer(career, "achievements_target"),
			RouteBadgesCurrent:    integer(career, "route_badges_current"),
			RouteBadgesTarget:     integer(career, "route_badges_target"),
			ChallengeName:         text(career, "challenge_name"),
			ChallengeStageCurrent: integer(career, "challenge_stage_current"),
			ChallengeStageTarget:  integer(career, "challenge_stage_target"),
			ChallengeThisRideKm:   number(career, "challenge_this_ride_km"),
			ChallengeProgressKm:   number(career, "challenge_progress_km"),
			ChallengeTargetKm:     number(career, "challenge_target_km"),
		},
		Performance: &domain.Performance{
			Best5sW:     number(perf, "best_5s_w"),
			Best1mW:     number(perf, "best_1m_w"),
			Best5mW:     number(perf, "best_5m_w"),
			Best20mW:    number(perf, "best_20m_w"),
			FTPW:        number(perf, "ftp_w"),
			RacingScore: number(perf, "racing_score"),
		},
		Fitness: &domain.FitnessTrends{
			WeeklyThisRideKm: number(fitness, "weekly_this_ride_km"),
			WeeklyProgressKm: number(fitness, "weekly_progress_km"),
			WeeklyGoalKm:     number(fitness, "weekly_goal_km"),
			StreakWeeks:      number(fitness, "streak_weeks"),
			TotalDistanceKm:  number(fitness, "total_distance_km"),
			TotalElevationM:  number(fitness, "total_elevation_m"),
			TotalEnergyKJ:    number(fitness, "total_energy_kj"),
		},
		Training: &domain.TrainingStatus{
			TrainingScore:      number(training, "training_score"),
			TrainingScoreDelta: number(training, "training_score_delta"),
			FreshnessState:     domain.ParseFreshness(text(training, "freshness_state")),
		},
	}
}

func normalizeRideMenu(payload map[string]any) *domain.RideMenu {
	rider := section(payload, "rider")
	ride := section(payload, "this_ride")
	best := section(payload, "your_best")
	totals := section(payload, "totals")
	score := section(payload, "rider_score")
	dist := section(payload, "distributions")

	return &domain.RideMenu{
		Rider: domain.RiderProfile{
			Name:     text(rider, "name"),
			HeightCm: optionalNumber(rider, "height_cm"),
			WeightKg: optionalNumber(rider, "weight_kg"),
		},
		ThisRide: domain.RideStats{
			DistanceKm:      number(ride, "distance_km"),
			DurationMinutes: number(ride, "duration_minutes"),
			Calories:        number(ride, "calories"),
			ElevationM:      number(ride, "elevation_m"),
			Power5sW:        number(ride, "power_5s_w"),
			Power1mW:        number(ride, "power_1m_w"),
			Power5mW:        number(ride, "power_5m_w"),
			Power20mW:       number(ride, "power_20m_w"),
		},
		YourBest: domain.BestPower{
			Best5sW:  number(best, "best_5s_w"),
			Best1mW:  number(best, "best_1m_w"),
			Best5mW:  number(best, "best_5m_w"),
			Best20mW: number(best, "best_20m_w"),
		},
		Totals: domain.LifetimeTotals{
			TotalDistanceKm:  number(totals, "total_distance_km"),
			TotalTimeMinutes: number(totals, "total_time_minutes"),
			TotalCalories:    number(totals, "total_calories"),
			TotalElevationM:  number(totals, "total_elevation_m"),
		},
		RiderScore: domain.RiderScore{
			Score:          number(score, "score"),
			UntilNextLevel: number(score, "until_next_level"),
		},
		Averages: domain.RideAverages{
			AvgPowerW:       number(dist, "avg_power_w"),
			AvgHeartRateBPM: optionalNumber(dist, "avg_heart_rate_bpm"),
		},
	}
}

// decodeModelJSON strips markdown fences and parses the outermost JSON object.
func decodeModelJSON(raw string) (map[string]any, bool) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.ReplaceAll(cleaned, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return nil, false
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &payload); err != nil {
		return nil, false
	}
	return payload, payload != nil
}

func section(payload map[string]any, key string) map[string]any {
	out, _ := payload[key].(map[string]any)
	return out
}

func text(payload map[string]any, key string) string {
	switch v := payload[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func number(payload map[string]any, key string) float64 {
	v, _ := numberValue(payload, key)
	return v
}

func integer(payload map[string]any, key string) int {
	return int(math.Round(number(payload, key)))
}

func optionalNumber(payload map[string]any, key string) *float64 {
	v, ok := numberValue(payload, key)
	if !ok {
		return nil
	}
	return &v
}

// numberValue accepts JSON numbers and numeric strings such as "77,230" or
// "210 W".
func numberValue(payload map[string]any, key string) (float64, bool) {
	switch v := payload[key].(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	case string:
		match := numberPattern.FindString(strings.ReplaceAll(v, ",", ""))
		if match == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(match, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func clampUnit(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
