package imagemeta

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/kirillkom/ride-progress/internal/core/domain"
)

// tiffWithCaptureTime builds a minimal little-endian TIFF whose EXIF
// sub-directory carries DateTimeOriginal and OffsetTimeOriginal.
func tiffWithCaptureTime(original, offset string) []byte {
	le := binary.LittleEndian
	buf := make([]byte, 0, 128)
	u16 := func(v uint16) { buf = le.AppendUint16(buf, v) }
	u32 := func(v uint32) { buf = le.AppendUint32(buf, v) }

	buf = append(buf, 'I', 'I')
	u16(42)
	u32(8)

	// IFD0 at 8: one entry pointing to the EXIF directory at 26.
	u16(1)
	u16(0x8769)
	u16(4)
	u32(1)
	u32(26)
	u32(0)

	originalValue := append([]byte(original), 0)
	offsetValue := append([]byte(offset), 0)
	originalAt := uint32(26 + 2 + 2*12 + 4)
	offsetAt := originalAt + uint32(len(originalValue))

	u16(2)
	u16(0x9003)
	u16(2)
	u32(uint32(len(originalValue)))
	u32(originalAt)
	u16(tagOffsetTimeOriginal)
	u16(2)
	u32(uint32(len(offsetValue)))
	u32(offsetAt)
	u32(0)

	buf = append(buf, originalValue...)
	buf = append(buf, offsetValue...)
	return buf
}

func TestResolvePrefersEXIF(t *testing.T) {
	mod := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	meta := New().Resolve(tiffWithCaptureTime("2024:03:05 07:30:00", "+02:00"), &mod)

	if meta.Source != domain.MetadataSourceEXIF {
		t.Fatalf("expected exif source, got %q", meta.Source)
	}
	if meta.CapturedAt == nil {
		t.Fatalf("expected captured_at")
	}
	want := time.Date(2024, 3, 5, 5, 30, 0, 0, time.UTC)
	if !meta.CapturedAt.Equal(want) {
		t.Fatalf("expected %v, got %v", want, meta.CapturedAt.UTC())
	}
	if meta.TimezoneOffsetMinutes == nil || *meta.TimezoneOffsetMinutes != 120 {
		t.Fatalf("expected offset 120, got %v", meta.TimezoneOffsetMinutes)
	}
}

func TestResolveFallsBackToModTime(t *testing.T) {
	mod := time.Date(2024, 6, 1, 9, 0, 0, 0, time.FixedZone("", 3600))
	meta := New().Resolve([]byte("not an image"), &mod)

	if meta.Source != domain.MetadataSourceFile {
		t.Fatalf("expected file source, got %q", meta.Source)
	}
	if meta.CapturedAt == nil || !meta.CapturedAt.Equal(mod) {
		t.Fatalf("expected mod time, got %v", meta.CapturedAt)
	}
	if meta.TimezoneOffsetMinutes != nil {
		t.Fatalf("expected no offset for file source")
	}
}

func TestResolveMalformedEXIFFailsSoft(t *testing.T) {
	mod := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	valid := tiffWithCaptureTime("2024:03:05 07:30:00", "+02:00")

	cases := []struct {
		name       string
		data       []byte
		wantSource domain.MetadataSource
	}{
		{name: "unparseable capture time", data: tiffWithCaptureTime("yesterday morning", "+02:00"), wantSource: domain.MetadataSourceFile},
		{name: "truncated exif directory", data: valid[:30], wantSource: domain.MetadataSourceFile},
		{name: "truncated header", data: valid[:6], wantSource: domain.MetadataSourceFile},
		{name: "invalid offset", data: tiffWithCaptureTime("2024:03:05 07:30:00", "UTC+2"), wantSource: domain.MetadataSourceEXIF},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			meta := New().Resolve(tc.data, &mod)
			if meta.Source != tc.wantSource {
				t.Fatalf("expected %q source, got %q", tc.wantSource, meta.Source)
			}
			if meta.CapturedAt == nil {
				t.Fatalf("expected captured_at")
			}
			if meta.TimezoneOffsetMinutes != nil {
				t.Fatalf("expected no offset, got %d", *meta.TimezoneOffsetMinutes)
			}
		})
	}
}

func TestResolveUnknownWithoutAnySource(t *testing.T) {
	meta := New().Resolve(nil, nil)
	if meta.Source != domain.MetadataSourceUnknown || meta.CapturedAt != nil {
		t.Fatalf("expected unknown metadata, got %+v", meta)
	}
}

func TestParseOffset(t *testing.T) {
	cases := map[string]struct {
		minutes int
		ok      bool
	}{
		"+02:00": {120, true},
		"-05:30": {-330, true},
		"+00:00": {0, true},
		"02:00":  {0, false},
		"+2:00":  {0, false},
		"":       {0, false},
	}
	for raw, want := range cases {
		got, ok := parseOffset(raw)
		if ok != want.ok || got != want.minutes {
			t.Fatalf("parseOffset(%q) = %d,%v want %d,%v", raw, got, ok, want.minutes, want.ok)
		}
	}
}
