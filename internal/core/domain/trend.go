package domain

type TrendMode string

const (
	TrendTimeSeries     TrendMode = "time_series"
	TrendBetweenReports TrendMode = "between_reports"
)

func (m TrendMode) Valid() bool {
	return m == TrendTimeSeries || m == TrendBetweenReports
}

type TrendDirection string

const (
	TrendImproving TrendDirection = "improving"
	TrendDeclining TrendDirection = "declining"
	TrendStable    TrendDirection = "stable"
)

// StableSlopeThreshold is the absolute slope at or below which a trend is
// reported as stable.
const StableSlopeThreshold = 0.01

type TrendPoint struct {
	Index      int      `json:"index"`
	SnapshotID string   `json:"snapshot_id"`
	Label      string   `json:"label"`
	Value      *float64 `json:"value"`
	Fitted     *float64 `json:"fitted,omitempty"`
}

type BetweenPoint struct {
	FromID string  `json:"from_id"`
	ToID   string  `json:"to_id"`
	Label  string  `json:"label"`
	Delta  float64 `json:"delta"`
}

type TrendLine struct {
	Slope     float64        `json:"slope"`
	Intercept float64        `json:"intercept"`
	Direction TrendDirection `json:"direction"`
}

type Trend struct {
	Metric  MetricInfo     `json:"metric"`
	Mode    TrendMode      `json:"mode"`
	Enough  bool           `json:"enough_data"`
	Message string         `json:"message,omitempty"`
	Points  []TrendPoint   `json:"points,omitempty"`
	Between []BetweenPoint `json:"between,omitempty"`
	Line    *TrendLine     `json:"line,omitempty"`
}

type VoiceReview struct {
	SnapshotID  string `json:"snapshot_id"`
	ReferenceID string `json:"reference_id,omitempty"`
	Text        string `json:"review_text"`
	Audio       []byte `json:"-"`
	MimeType    string `json:"mime_type"`
}
