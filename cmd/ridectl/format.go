package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kirillkom/ride-progress/internal/core/domain"
	"github.com/kirillkom/ride-progress/internal/core/usecase"
)

// detailLines renders every catalog metric the detail carries.
func detailLines(detail domain.Detail) []string {
	var lines []string
	for _, metric := range domain.Metrics() {
		value, ok := usecase.MetricValue(detail, metric.ID)
		if !ok {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s %s", padRight(metric.Label, 16), formatValue(value, metric.Unit)))
	}
	return lines
}

func formatValue(v float64, unit string) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if unit == "" {
		return s
	}
	return s + " " + unit
}

func captureLabel(s domain.Snapshot) string {
	if s.CapturedAt != nil {
		return s.CapturedAt.Format("2006-01-02 15:04")
	}
	return "added " + s.CreatedAt.Format("2006-01-02")
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// archiveFormat picks the explicit format or derives it from the file extension.
func archiveFormat(explicit, path string) (domain.ExportFormat, error) {
	raw := strings.ToLower(strings.TrimSpace(explicit))
	if raw == "" {
		raw = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
	if raw == "yml" {
		raw = "yaml"
	}
	if raw == "" {
		return domain.ExportJSON, nil
	}
	format := domain.ExportFormat(raw)
	if !format.Valid() {
		return "", fmt.Errorf("unsupported format %q (json, yaml, csv, xlsx)", raw)
	}
	return format, nil
}
