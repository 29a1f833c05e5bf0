package domain

import (
	"encoding/json"
	"time"
)

type ScreenType string

const (
	ScreenProgressReport ScreenType = "progress_report"
	ScreenRideMenu       ScreenType = "ride_menu"
)

func (s ScreenType) Valid() bool {
	return s == ScreenProgressReport || s == ScreenRideMenu
}

type MetadataSource string

const (
	MetadataSourceEXIF    MetadataSource = "exif"
	MetadataSourceFile    MetadataSource = "file"
	MetadataSourceUnknown MetadataSource = "unknown"
)

type Origin string

const (
	OriginUpload Origin = "upload"
	OriginImport Origin = "import"
	OriginSeed   Origin = "seed"
)

type ImageMetadata struct {
	CapturedAt            *time.Time     `json:"captured_at"`
	TimezoneOffsetMinutes *int           `json:"timezone_offset_minutes"`
	Source                MetadataSource `json:"metadata_source"`
	CameraMake            string         `json:"camera_make,omitempty"`
	CameraModel           string         `json:"camera_model,omitempty"`
}

func UnknownMetadata() ImageMetadata {
	return ImageMetadata{Source: MetadataSourceUnknown}
}

// Snapshot is one saved screenshot. It is immutable after save.
type Snapshot struct {
	ID                    string          `json:"id"`
	UserID                string          `json:"user_id"`
	CreatedAt             time.Time       `json:"created_at"`
	CapturedAt            *time.Time      `json:"captured_at"`
	TimezoneOffsetMinutes *int            `json:"timezone_offset_minutes"`
	Metadata              ImageMetadata   `json:"metadata"`
	Origin                Origin          `json:"source"`
	ScreenType            ScreenType      `json:"screen_type"`
	ImageURL              *string         `json:"image_url"`
	ImageHash             *string         `json:"image_hash"`
	RawExtraction         json.RawMessage `json:"raw_extraction,omitempty"`
	ParsedData            json.RawMessage `json:"parsed_data,omitempty"`
	OverallConfidence     float64         `json:"overall_confidence"`
}

// EffectiveTime is the capture time when known, otherwise the upload time.
func (s Snapshot) EffectiveTime() time.Time {
	if s.CapturedAt != nil {
		return *s.CapturedAt
	}
	return s.CreatedAt
}

// TimelineEntry pairs a snapshot with its variant detail record. Detail is nil
// when the detail rows are missing.
type TimelineEntry struct {
	Snapshot Snapshot `json:"snapshot"`
	Detail   Detail   `json:"detail"`
}

func (e *TimelineEntry) UnmarshalJSON(data []byte) error {
	var wire struct {
		Snapshot Snapshot        `json:"snapshot"`
		Detail   json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	detail, err := DecodeDetail(wire.Snapshot.ScreenType, wire.Detail)
	if err != nil {
		return err
	}
	e.Snapshot = wire.Snapshot
	e.Detail = detail
	return nil
}
