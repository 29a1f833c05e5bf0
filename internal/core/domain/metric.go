package domain

type MetricID string

const (
	MetricFTP            MetricID = "ftp"
	MetricTrainingScore  MetricID = "training_score"
	MetricWeeklyProgress MetricID = "weekly_progress"
	MetricTotalDistance  MetricID = "total_distance"
	MetricElevation      MetricID = "elevation"
	MetricEnergy         MetricID = "energy"
	MetricPower5s        MetricID = "power_5s"
	MetricPower1m        MetricID = "power_1m"
	MetricPower5m        MetricID = "power_5m"
	MetricPower20m       MetricID = "power_20m"
	MetricRacingScore    MetricID = "racing_score"
	MetricXP             MetricID = "xp"
	MetricStreak         MetricID = "streak"
	MetricAvgPower       MetricID = "avg_power"
	MetricAvgHeartRate   MetricID = "avg_hr"
	MetricRiderScore     MetricID = "rider_score"
	MetricRideDistance   MetricID = "ride_distance"
)

type MetricInfo struct {
	ID    MetricID `json:"id"`
	Label string   `json:"label"`
	Unit  string   `json:"unit"`
}

var metricCatalog = []MetricInfo{
	{ID: MetricFTP, Label: "FTP", Unit: "W"},
	{ID: MetricTrainingScore, Label: "Training Score"},
	{ID: MetricWeeklyProgress, Label: "Weekly Progress", Unit: "km"},
	{ID: MetricTotalDistance, Label: "Total Distance", Unit: "km"},
	{ID: MetricElevation, Label: "Total Elevation", Unit: "m"},
	{ID: MetricEnergy, Label: "Total Energy", Unit: "kJ"},
	{ID: MetricPower5s, Label: "5s Power", Unit: "W"},
	{ID: MetricPower1m, Label: "1m Power", Unit: "W"},
	{ID: MetricPower5m, Label: "5m Power", Unit: "W"},
	{ID: MetricPower20m, Label: "20m Power", Unit: "W"},
	{ID: MetricRacingScore, Label: "Racing Score"},
	{ID: MetricXP, Label: "XP"},
	{ID: MetricStreak, Label: "Streak", Unit: "wks"},
	{ID: MetricAvgPower, Label: "Avg Power", Unit: "W"},
	{ID: MetricAvgHeartRate, Label: "Avg Heart Rate", Unit: "bpm"},
	{ID: MetricRiderScore, Label: "Rider Score"},
	{ID: MetricRideDistance, Label: "Ride Distance", Unit: "km"},
}

func Metrics() []MetricInfo {
	out := make([]MetricInfo, len(metricCatalog))
	copy(out, metricCatalog)
	return out
}

func LookupMetric(id MetricID) (MetricInfo, bool) {
	for _, info := range metricCatalog {
		if info.ID == id {
			return info, true
		}
	}
	return MetricInfo{}, false
}
