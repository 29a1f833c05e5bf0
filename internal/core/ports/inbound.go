package ports

import (
	"context"
	"io"

	"github.com/kirillkom/ride-progress/internal/core/domain"
)

// SnapshotImporter prepares a single screenshot and saves a reviewed draft.
type SnapshotImporter interface {
	Prepare(ctx context.Context, sess domain.Session, upload domain.Upload) (*domain.Draft, error)
	Save(ctx context.Context, sess domain.Session, draft domain.Draft) (*domain.Snapshot, error)
}

// BatchImportService queues many screenshots for sequential processing.
type BatchImportService interface {
	Submit(ctx context.Context, sess domain.Session, uploads []domain.Upload, autoSave bool) (*domain.Batch, error)
	Get(ctx context.Context, sess domain.Session, batchID string) (*domain.Batch, error)
	SaveReady(ctx context.Context, sess domain.Session, batchID string) (*domain.Batch, error)
}

// SnapshotCatalog is the read model of the timeline.
type SnapshotCatalog interface {
	List(ctx context.Context, sess domain.Session, limit int) ([]domain.TimelineEntry, error)
	Get(ctx context.Context, sess domain.Session, id string) (*domain.TimelineEntry, error)
	Delete(ctx context.Context, sess domain.Session, id string) error
}

type ComparisonService interface {
	Compare(ctx context.Context, sess domain.Session, snapshotID string) (*domain.Comparison, error)
}

type TrendService interface {
	Trend(ctx context.Context, sess domain.Session, metric domain.MetricID, mode domain.TrendMode) (*domain.Trend, error)
}

// ArchiveService exports the timeline and restores interchange files.
type ArchiveService interface {
	Export(ctx context.Context, sess domain.Session, format domain.ExportFormat, w io.Writer) error
	Restore(ctx context.Context, sess domain.Session, format domain.ExportFormat, r io.Reader) (*domain.RestoreResult, error)
}

type VoiceReviewService interface {
	Review(ctx context.Context, sess domain.Session, snapshotID string) (*domain.VoiceReview, error)
}
