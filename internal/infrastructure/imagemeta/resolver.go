package imagemeta

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"github.com/kirillkom/ride-progress/internal/core/domain"
)

const (
	exifTimeLayout = "2006:01:02 15:04:05"

	// OffsetTimeOriginal is not part of the field table goexif loads.
	tagOffsetTimeOriginal uint16 = 0x9011
)

// Resolver derives capture time from EXIF, then from the file modification
// time, then gives up. It never fails.
type Resolver struct{}

func New() *Resolver {
	return &Resolver{}
}

func (r *Resolver) Resolve(data []byte, modTime *time.Time) domain.ImageMetadata {
	if meta, ok := fromEXIF(data); ok {
		return meta
	}
	if modTime != nil && !modTime.IsZero() {
		captured := modTime.UTC()
		return domain.ImageMetadata{
			CapturedAt: &captured,
			Source:     domain.MetadataSourceFile,
		}
	}
	return domain.UnknownMetadata()
}

func fromEXIF(data []byte) (meta domain.ImageMetadata, ok bool) {
	if len(data) == 0 {
		return domain.ImageMetadata{}, false
	}
	defer func() {
		if rec := recover(); rec != nil {
			slog.Warn("exif_decode_panic", "error", fmt.Sprint(rec))
			meta, ok = domain.ImageMetadata{}, false
		}
	}()

	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil && x == nil {
		return domain.ImageMetadata{}, false
	}

	original := stringTag(x, exif.DateTimeOriginal)
	if original == "" {
		return domain.ImageMetadata{}, false
	}

	loc := time.UTC
	var offset *int
	if minutes, found := parseOffset(offsetTimeOriginal(x)); found {
		offset = &minutes
		loc = time.FixedZone("", minutes*60)
	}

	captured, err := time.ParseInLocation(exifTimeLayout, original, loc)
	if err != nil {
		return domain.ImageMetadata{}, false
	}

	return domain.ImageMetadata{
		CapturedAt:            &captured,
		TimezoneOffsetMinutes: offset,
		Source:                domain.MetadataSourceEXIF,
		CameraMake:            stringTag(x, exif.Make),
		CameraModel:           stringTag(x, exif.Model),
	}, true
}

func stringTag(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil {
		return ""
	}
	v, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimRight(v, "\x00"))
}

func offsetTimeOriginal(x *exif.Exif) string {
	if x.Tiff == nil || len(x.Raw) == 0 {
		return ""
	}
	ptr, err := x.Get(exif.ExifIFDPointer)
	if err != nil {
		return ""
	}
	at, err := ptr.Int64(0)
	if err != nil {
		return ""
	}
	r := bytes.NewReader(x.Raw)
	if _, err := r.Seek(at, io.SeekStart); err != nil {
		return ""
	}
	dir, _, err := tiff.DecodeDir(r, x.Tiff.Order)
	if err != nil {
		return ""
	}
	for _, tag := range dir.Tags {
		if tag.Id != tagOffsetTimeOriginal {
			continue
		}
		v, err := tag.StringVal()
		if err != nil {
			return ""
		}
		return strings.TrimSpace(strings.TrimRight(v, "\x00"))
	}
	return ""
}

// parseOffset reads "+HH:MM" / "-HH:MM" into signed minutes.
func parseOffset(raw string) (int, bool) {
	if len(raw) != 6 || raw[3] != ':' {
		return 0, false
	}
	sign := 1
	switch raw[0] {
	case '+':
	case '-':
		sign = -1
	default:
		return 0, false
	}
	hours, err := strconv.Atoi(raw[1:3])
	if err != nil {
		return 0, false
	}
	minutes, err := strconv.Atoi(raw[4:6])
	if err != nil {
		return 0, false
	}
	return sign * (hours*60 + minutes), true
}
