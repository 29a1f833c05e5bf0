package usecase

import (
	"bytes"
	"context"
	"encoding/csv"
	stdjson "encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/kirillkom/ride-progress/internal/core/domain"
	"github.com/kirillkom/ride-progress/internal/core/ports"
)

const (
	archiveVersion = 1
	archiveTool    = "ride-progress"
	xlsxSheet      = "Snapshots"
)

var tableHeader = []string{
	"date", "level", "ftp_w", "racing_score", "training_score", "freshness", "total_distance_km", "streak_weeks",
}

// Archive is the interchange document of a full export.
type Archive struct {
	Version    int                    `json:"version"`
	ExportedAt time.Time              `json:"exported_at"`
	Tool       string                 `json:"tool"`
	Snapshots  []domain.TimelineEntry `json:"snapshots"`
}

type ArchiveUseCase struct {
	repo    ports.SnapshotRepository
	history HistorySource
	now     func() time.Time
}

func NewArchiveUseCase(repo ports.SnapshotRepository, history HistorySource) *ArchiveUseCase {
	return &ArchiveUseCase{repo: repo, history: history, now: time.Now}
}

func (uc *ArchiveUseCase) Export(ctx context.Context, sess domain.Session, format domain.ExportFormat, w io.Writer) error {
	if !format.Valid() {
		return domain.WrapError(domain.ErrInvalidInput, "export", fmt.Errorf("unknown format %q", format))
	}
	timeline, err := uc.history.History(ctx, sess)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	switch format {
	case domain.ExportCSV:
		return writeCSV(w, timeline)
	case domain.ExportXLSX:
		return writeXLSX(w, timeline)
	}

	archive := Archive{
		Version:    archiveVersion,
		ExportedAt: uc.now().UTC(),
		Tool:       archiveTool,
		Snapshots:  timeline,
	}
	if format == domain.ExportYAML {
		return writeYAML(w, archive)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(archive); err != nil {
		return fmt.Errorf("encode json export: %w", err)
	}
	return nil
}

// Restore imports an interchange document. Entries whose image hash already
// exists are skipped and counted as duplicates.
func (uc *ArchiveUseCase) Restore(ctx context.Context, sess domain.Session, format domain.ExportFormat, r io.Reader) (*domain.RestoreResult, error) {
	archive, err := decodeArchive(format, r)
	if err != nil {
		return nil, err
	}

	result := &domain.RestoreResult{}
	for i, entry := range archive.Snapshots {
		err := uc.restoreEntry(ctx, sess, entry)
		switch {
		case err == nil:
			result.Imported++
		case domain.IsKind(err, domain.ErrDuplicateContent):
			result.Duplicates++
		default:
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("entry %d: %s", i, domain.Reason(err)))
		}
	}
	return result, nil
}

func (uc *ArchiveUseCase) restoreEntry(ctx context.Context, sess domain.Session, entry domain.TimelineEntry) error {
	src := entry.Snapshot
	if !src.ScreenType.Valid() {
		return domain.WrapError(domain.ErrInvalidInput, "restore snapshot", fmt.Errorf("unknown screen type %q", src.ScreenType))
	}
	if entry.Detail != nil && entry.Detail.ScreenType() != src.ScreenType {
		return domain.WrapError(domain.ErrInvalidInput, "restore snapshot", fmt.Errorf("detail does not match screen type"))
	}
	if src.ImageHash != nil && *src.ImageHash != "" {
		if _, err := uc.repo.FindByHash(ctx, sess, *src.ImageHash); err == nil {
			return domain.WrapError(domain.ErrDuplicateContent, "restore snapshot", fmt.Errorf("hash %s", *src.ImageHash))
		} else if !domain.IsKind(err, domain.ErrSnapshotNotFound) {
			return err
		}
	}

	snap := src
	snap.ID = uuid.NewString()
	snap.UserID = sess.UserID
	snap.Origin = domain.OriginImport
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = uc.now().UTC()
	}
	if snap.Metadata.Source == "" {
		snap.Metadata = domain.UnknownMetadata()
	}
	return uc.repo.Insert(ctx, sess, &snap, entry.Detail)
}

func decodeArchive(format domain.ExportFormat, r io.Reader) (*Archive, error) {
	var archive Archive
	switch format {
	case domain.ExportJSON, "":
		if err := json.NewDecoder(r).Decode(&archive); err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "decode json archive", err)
		}
	case domain.ExportYAML:
		var generic any
		if err := yaml.NewDecoder(r).Decode(&generic); err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "decode yaml archive", err)
		}
		raw, err := stdjson.Marshal(generic)
		if err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "decode yaml archive", err)
		}
		if err := json.Unmarshal(raw, &archive); err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "decode yaml archive", err)
		}
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "restore", fmt.Errorf("format %q cannot be restored", format))
	}
	return &archive, nil
}

// writeYAML goes through the JSON encoding so YAML keys match the JSON ones.
func writeYAML(w io.Writer, archive Archive) error {
	raw, err := json.Marshal(archive)
	if err != nil {
		return fmt.Errorf("encode yaml export: %w", err)
	}
	var generic any
	dec := stdjson.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&generic); err != nil {
		return fmt.Errorf("encode yaml export: %w", err)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return fmt.Errorf("encode yaml export: %w", err)
	}
	return enc.Close()
}

func writeCSV(w io.Writer, timeline []domain.TimelineEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tableHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, entry := range timeline {
		if err := cw.Write(tableRow(entry)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeXLSX(w io.Writer, timeline []domain.TimelineEntry) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return fmt.Errorf("prepare xlsx sheet: %w", err)
	}
	header := make([]any, len(tableHeader))
	for i, name := range tableHeader {
		header[i] = name
	}
	if err := f.SetSheetRow(xlsxSheet, "A1", &header); err != nil {
		return fmt.Errorf("write xlsx header: %w", err)
	}
	for i, entry := range timeline {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := tableRow(entry)
		values := make([]any, len(row))
		for j, v := range row {
			if n, err := strconv.ParseFloat(v, 64); err == nil && j > 0 {
				values[j] = n
				continue
			}
			values[j] = v
		}
		if err := f.SetSheetRow(xlsxSheet, cell, &values); err != nil {
			return fmt.Errorf("write xlsx row: %w", err)
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func tableRow(entry domain.TimelineEntry) []string {
	row := []string{entry.Snapshot.EffectiveTime().Format("2006-01-02")}
	level, freshness := "", ""
	if pr, ok := entry.Detail.(*domain.ProgressReport); ok {
		level = strconv.Itoa(pr.Level)
		if pr.Training != nil {
			freshness = string(pr.Training.FreshnessState)
		}
	}
	row = append(row,
		level,
		metricCell(entry.Detail, domain.MetricFTP),
		metricCell(entry.Detail, domain.MetricRacingScore),
		metricCell(entry.Detail, domain.MetricTrainingScore),
		freshness,
		metricCell(entry.Detail, domain.MetricTotalDistance),
		metricCell(entry.Detail, domain.MetricStreak),
	)
	return row
}

func metricCell(detail domain.Detail, metric domain.MetricID) string {
	v, ok := MetricValue(detail, metric)
	if !ok {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
