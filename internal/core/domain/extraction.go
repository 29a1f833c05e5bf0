package domain

import (
	"encoding/json"
	"fmt"
)

// ReviewConfidenceThreshold is the overall confidence under which an
// extraction should be double-checked before saving.
const ReviewConfidenceThreshold = 0.85

type Confidence struct {
	Overall float64 `json:"overall"`
}

// Extraction is the normalized payload produced from a screenshot. On the wire
// the variant sections sit at the root next to screen_type.
type Extraction struct {
	ScreenType    ScreenType
	Detail        Detail
	ImageMetadata ImageMetadata
	Confidence    Confidence
}

type extractionHeader struct {
	ScreenType    ScreenType    `json:"screen_type"`
	ImageMetadata ImageMetadata `json:"image_metadata"`
	Confidence    Confidence    `json:"confidence"`
}

func (e Extraction) MarshalJSON() ([]byte, error) {
	header := extractionHeader{
		ScreenType:    e.ScreenType,
		ImageMetadata: e.ImageMetadata,
		Confidence:    e.Confidence,
	}
	switch d := e.Detail.(type) {
	case *ProgressReport:
		return json.Marshal(struct {
			extractionHeader
			*ProgressReport
		}{header, d})
	case *RideMenu:
		return json.Marshal(struct {
			extractionHeader
			*RideMenu
		}{header, d})
	case nil:
		return json.Marshal(header)
	default:
		return nil, fmt.Errorf("marshal extraction: unsupported detail %T", d)
	}
}

func (e *Extraction) UnmarshalJSON(data []byte) error {
	var header extractionHeader
	if err := json.Unmarshal(data, &header); err != nil {
		return err
	}
	detail, err := DecodeDetail(header.ScreenType, data)
	if err != nil {
		return err
	}
	e.ScreenType = header.ScreenType
	e.Detail = detail
	e.ImageMetadata = header.ImageMetadata
	e.Confidence = header.Confidence
	return nil
}

func (e Extraction) NeedsReview() bool {
	return e.Confidence.Overall < ReviewConfidenceThreshold
}
