package gateway

import "strings"

const noReviewText = "No review generated."

const extractionPrompt = `You are analyzing a Zwift screenshot. It is either a Progress Report screen or a post-ride menu screen.
Extract ALL visible metrics into exactly one of the JSON structures below and set "screen_type" accordingly.

IMPORTANT:
- Remove thousands separators from numbers (e.g. "77,230" -> 77230)
- Power values are in watts (W)
- Distance in km, elevation in m, energy in kJ, duration in minutes
- If a value is not visible or unclear, use 0 (or null where shown) and set confidence lower
- Return ONLY valid JSON, no markdown
- Do not guess timestamps; leave image_metadata as shown

Progress Report:
{
  "screen_type": "progress_report",
  "level": 0,
  "career_progress": {
    "this_ride_xp": 0, "xp_current": 0, "xp_target": 0,
    "achievements_current": 0, "achievements_target": 0,
    "route_badges_current": 0, "route_badges_target": 0,
    "challenge_name": "", "challenge_stage_current": 0, "challenge_stage_target": 0,
    "challenge_this_ride_km": 0, "challenge_progress_km": 0, "challenge_target_km": 0
  },
  "performance": {
    "best_5s_w": 0, "best_1m_w": 0, "best_5m_w": 0, "best_20m_w": 0, "ftp_w": 0, "racing_score": 0
  },
  "fitness_trends": {
    "weekly_this_ride_km": 0, "weekly_progress_km": 0, "weekly_goal_km": 0, "streak_weeks": 0,
    "total_distance_km": 0, "total_elevation_m": 0, "total_energy_kj": 0
  },
  "training_status": {
    "training_score": 0, "training_score_delta": 0, "freshness_state": ""
  },
  "image_metadata": {"captured_at": null, "timezone_offset_minutes": null, "metadata_source": "unknown"},
  "confidence": {"overall": 0.0}
}

Ride menu:
{
  "screen_type": "ride_menu",
  "rider": {"name": "", "height_cm": null, "weight_kg": null},
  "this_ride": {
    "distance_km": 0, "duration_minutes": 0, "calories": 0, "elevation_m": 0,
    "power_5s_w": 0, "power_1m_w": 0, "power_5m_w": 0, "power_20m_w": 0
  },
  "your_best": {"best_5s_w": 0, "best_1m_w": 0, "best_5m_w": 0, "best_20m_w": 0},
  "totals": {"total_distance_km": 0, "total_time_minutes": 0, "total_calories": 0, "total_elevation_m": 0},
  "rider_score": {"score": 0, "until_next_level": 0},
  "distributions": {"avg_power_w": 0, "avg_heart_rate_bpm": null},
  "image_metadata": {"captured_at": null, "timezone_offset_minutes": null, "metadata_source": "unknown"},
  "confidence": {"overall": 0.0}
}`

const reviewSystemPrompt = `You are an enthusiastic, knowledgeable Zwift cycling coach giving a punchy spoken voice review.
Keep it under 120 words. Use natural spoken language, no bullet points, no markdown, no asterisks.
Be encouraging but honest. Highlight the most interesting delta or achievement. End with a motivational closer.`

func buildReviewPrompt(current, previous string) string {
	var section string
	if strings.TrimSpace(previous) != "" {
		section = "PREVIOUS RIDE:\n" + previous + "\n\nCURRENT RIDE:\n" + current
	} else {
		section = "CURRENT RIDE:\n" + current + "\n\n(No previous ride available for comparison.)"
	}
	return "Give a spoken voice review comparing these two Zwift rides:\n\n" + section
}
