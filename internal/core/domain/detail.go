package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Detail is the variant-specific metric record of a snapshot. The only
// implementations are *ProgressReport and *RideMenu; consumers switch on the
// concrete type.
type Detail interface {
	ScreenType() ScreenType
	sealedDetail()
}

type CareerProgress struct {
	ThisRideXP            float64 `json:"this_ride_xp"`
	XPCurrent             float64 `json:"xp_current"`
	XPTarget              float64 `json:"xp_target"`
	AchievementsCurrent   int     `json:"achievements_current"`
	AchievementsTarget    int     `json:"achievements_target"`
	RouteBadgesCurrent    int     `json:"route_badges_current"`
	RouteBadgesTarget     int     `json:"route_badges_target"`
	ChallengeName         string  `json:"challenge_name"`
	ChallengeStageCurrent int     `json:"challenge_stage_current"`
	ChallengeStageTarget  int     `json:"challenge_stage_target"`
	ChallengeThisRideKm   float64 `json:"challenge_this_ride_km"`
	ChallengeProgressKm   float64 `json:"challenge_progress_km"`
	ChallengeTargetKm     float64 `json:"challenge_target_km"`
}

type Performance struct {
	Best5sW     float64 `json:"best_5s_w"`
	Best1mW     float64 `json:"best_1m_w"`
	Best5mW     float64 `json:"best_5m_w"`
	Best20mW    float64 `json:"best_20m_w"`
	FTPW        float64 `json:"ftp_w"`
	RacingScore float64 `json:"racing_score"`
}

type FitnessTrends struct {
	WeeklyThisRideKm float64 `json:"weekly_this_ride_km"`
	WeeklyProgressKm float64 `json:"weekly_progress_km"`
	WeeklyGoalKm     float64 `json:"weekly_goal_km"`
	StreakWeeks      float64 `json:"streak_weeks"`
	TotalDistanceKm  float64 `json:"total_distance_km"`
	TotalElevationM  float64 `json:"total_elevation_m"`
	TotalEnergyKJ    float64 `json:"total_energy_kj"`
}

type FreshnessState string

const (
	FreshnessFresh   FreshnessState = "FRESH"
	FreshnessTired   FreshnessState = "TIRED"
	FreshnessUnknown FreshnessState = "UNKNOWN"
)

type TrainingStatus struct {
	TrainingScore      float64        `json:"training_score"`
	TrainingScoreDelta float64        `json:"training_score_delta"`
	FreshnessState     FreshnessState `json:"freshness_state"`
}

// ProgressReport holds the four sections of a progress report screen. A nil
// section means the stored row is missing.
type ProgressReport struct {
	Level       int             `json:"level"`
	Career      *CareerProgress `json:"career_progress"`
	Performance *Performance    `json:"performance"`
	Fitness     *FitnessTrends  `json:"fitness_trends"`
	Training    *TrainingStatus `json:"training_status"`
}

func (*ProgressReport) ScreenType() ScreenType { return ScreenProgressReport }
func (*ProgressReport) sealedDetail()          {}

type RiderProfile struct {
	Name     string   `json:"name"`
	HeightCm *float64 `json:"height_cm"`
	WeightKg *float64 `json:"weight_kg"`
}

type RideStats struct {
	DistanceKm      float64 `json:"distance_km"`
	DurationMinutes float64 `json:"duration_minutes"`
	Calories        float64 `json:"calories"`
	ElevationM      float64 `json:"elevation_m"`
	Power5sW        float64 `json:"power_5s_w"`
	Power1mW        float64 `json:"power_1m_w"`
	Power5mW        float64 `json:"power_5m_w"`
	Power20mW       float64 `json:"power_20m_w"`
}

type BestPower struct {
	Best5sW  float64 `json:"best_5s_w"`
	Best1mW  float64 `json:"best_1m_w"`
	Best5mW  float64 `json:"best_5m_w"`
	Best20mW float64 `json:"best_20m_w"`
}

type LifetimeTotals struct {
	TotalDistanceKm  float64 `json:"total_distance_km"`
	TotalTimeMinutes float64 `json:"total_time_minutes"`
	TotalCalories    float64 `json:"total_calories"`
	TotalElevationM  float64 `json:"total_elevation_m"`
}

type RiderScore struct {
	Score          float64 `json:"score"`
	UntilNextLevel float64 `json:"until_next_level"`
}

type RideAverages struct {
	AvgPowerW       float64  `json:"avg_power_w"`
	AvgHeartRateBPM *float64 `json:"avg_heart_rate_bpm"`
}

// RideMenu is the post-ride summary screen.
type RideMenu struct {
	Rider      RiderProfile   `json:"rider"`
	ThisRide   RideStats      `json:"this_ride"`
	YourBest   BestPower      `json:"your_best"`
	Totals     LifetimeTotals `json:"totals"`
	RiderScore RiderScore     `json:"rider_score"`
	Averages   RideAverages   `json:"distributions"`
}

func (*RideMenu) ScreenType() ScreenType { return ScreenRideMenu }
func (*RideMenu) sealedDetail()          {}

// DecodeDetail decodes a detail record of the given screen type. An empty or
// null payload yields a nil detail.
func DecodeDetail(screen ScreenType, data []byte) (Detail, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	switch screen {
	case ScreenProgressReport:
		var out ProgressReport
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return nil, fmt.Errorf("decode progress report: %w", err)
		}
		return &out, nil
	case ScreenRideMenu:
		var out RideMenu
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return nil, fmt.Errorf("decode ride menu: %w", err)
		}
		return &out, nil
	default:
		return nil, fmt.Errorf("%w: unknown screen type %q", ErrInvalidInput, screen)
	}
}

// EmptyDetail returns an all-default record for the given screen type.
func EmptyDetail(screen ScreenType) Detail {
	if screen == ScreenRideMenu {
		return &RideMenu{}
	}
	return &ProgressReport{
		Career:      &CareerProgress{},
		Performance: &Performance{},
		Fitness:     &FitnessTrends{},
		Training:    &TrainingStatus{},
	}
}

// ParseFreshness upper-cases the freshness label; an empty label is UNKNOWN.
func ParseFreshness(raw string) FreshnessState {
	v := strings.ToUpper(strings.TrimSpace(raw))
	if v == "" {
		return FreshnessUnknown
	}
	return FreshnessState(v)
}
