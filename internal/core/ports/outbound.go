package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/ride-progress/internal/core/domain"
)

// SnapshotRepository persists snapshots with their variant detail rows.
type SnapshotRepository interface {
	Insert(ctx context.Context, sess domain.Session, snap *domain.Snapshot, detail domain.Detail) error
	Delete(ctx context.Context, sess domain.Session, id string) error
	Get(ctx context.Context, sess domain.Session, id string) (*domain.Snapshot, error)
	FindByHash(ctx context.Context, sess domain.Session, hash string) (*domain.Snapshot, error)
	List(ctx context.Context, sess domain.Session, limit int) ([]domain.Snapshot, error)
	Count(ctx context.Context, sess domain.Session) (int, error)
	ListProgressReports(ctx context.Context, sess domain.Session, ids []string) (map[string]*domain.ProgressReport, error)
	ListRideMenus(ctx context.Context, sess domain.Session, ids []string) (map[string]*domain.RideMenu, error)
}

// ObjectStorage stores screenshot images and generated review audio.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// ImageURLResolver turns a stored image reference into a fetchable URL. An
// empty result means the reference cannot be resolved.
type ImageURLResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// MetadataResolver derives capture metadata from image bytes.
type MetadataResolver interface {
	Resolve(data []byte, modTime *time.Time) domain.ImageMetadata
}

type ScreenshotImage struct {
	Data     []byte
	MimeType string
}

// VisionExtractor asks the external vision model to read a screenshot and
// returns its raw text answer.
type VisionExtractor interface {
	ExtractScreenshot(ctx context.Context, sess domain.Session, image ScreenshotImage) (string, error)
}

// ReviewWriter produces the coach-style text review of a snapshot.
type ReviewWriter interface {
	WriteReview(ctx context.Context, sess domain.Session, current, previous string) (string, error)
}

// SpeechSynthesizer converts review text to audio.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, string, error)
}

// EventPublisher announces snapshot lifecycle events.
type EventPublisher interface {
	PublishSnapshotEvent(ctx context.Context, event domain.SnapshotEvent) error
}

// EventSubscriber consumes snapshot lifecycle events.
type EventSubscriber interface {
	SubscribeSnapshotEvents(ctx context.Context, handler func(context.Context, domain.SnapshotEvent) error) error
}
