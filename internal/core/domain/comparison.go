package domain

// DeltaPolicy decides how a metric change is displayed.
type DeltaPolicy string

const (
	// PolicyAlways shows every change, including no change.
	PolicyAlways DeltaPolicy = "always"
	// PolicyDirection shows every change with direction only.
	PolicyDirection DeltaPolicy = "direction"
	// PolicyIncreaseOnly shows only increases.
	PolicyIncreaseOnly DeltaPolicy = "increase_only"
)

func (p DeltaPolicy) Valid() bool {
	switch p {
	case PolicyAlways, PolicyDirection, PolicyIncreaseOnly:
		return true
	default:
		return false
	}
}

type DeltaRule struct {
	Metric     MetricID    `json:"metric" yaml:"metric"`
	Label      string      `json:"label" yaml:"label"`
	Unit       string      `json:"unit" yaml:"unit"`
	Policy     DeltaPolicy `json:"policy" yaml:"policy"`
	// ShowFromTo appends "(previous → current)" to the delta text.
	ShowFromTo bool        `json:"show_from_to" yaml:"show_from_to"`
}

// DefaultDeltaRules is the mapping used when no override is configured.
func DefaultDeltaRules() []DeltaRule {
	return []DeltaRule{
		{Metric: MetricFTP, Label: "FTP", Unit: "W", Policy: PolicyAlways, ShowFromTo: true},
		{Metric: MetricTrainingScore, Label: "Training Score", Policy: PolicyAlways, ShowFromTo: true},
		{Metric: MetricWeeklyProgress, Label: "Weekly Progress", Unit: "km", Policy: PolicyAlways, ShowFromTo: true},
		{Metric: MetricRacingScore, Label: "Racing Score", Policy: PolicyAlways, ShowFromTo: true},
		{Metric: MetricPower5s, Label: "5s Power", Unit: "W", Policy: PolicyIncreaseOnly},
		{Metric: MetricPower1m, Label: "1m Power", Unit: "W", Policy: PolicyIncreaseOnly},
		{Metric: MetricPower5m, Label: "5m Power", Unit: "W", Policy: PolicyIncreaseOnly},
		{Metric: MetricPower20m, Label: "20m Power", Unit: "W", Policy: PolicyIncreaseOnly},
		{Metric: MetricTotalDistance, Label: "Total Distance", Unit: "km", Policy: PolicyDirection},
		{Metric: MetricXP, Label: "XP", Policy: PolicyDirection},
		{Metric: MetricStreak, Label: "Streak", Unit: "wks", Policy: PolicyDirection},
	}
}

type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
	DirectionNone Direction = "none"
)

type Delta struct {
	Metric     MetricID    `json:"metric"`
	Label      string      `json:"label"`
	Unit       string      `json:"unit,omitempty"`
	Policy     DeltaPolicy `json:"policy"`
	Previous   float64     `json:"previous"`
	Current    float64     `json:"current"`
	Difference float64     `json:"difference"`
	Direction  Direction   `json:"direction"`
	ShowFromTo bool        `json:"show_from_to"`
	Text       string      `json:"text"`
}

const NoComparisonMessage = "no comparison available"

type Comparison struct {
	SnapshotID  string  `json:"snapshot_id"`
	ReferenceID string  `json:"reference_id,omitempty"`
	Available   bool    `json:"available"`
	Message     string  `json:"message,omitempty"`
	Deltas      []Delta `json:"deltas"`
}
