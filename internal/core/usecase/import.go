package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/ride-progress/internal/core/domain"
	"github.com/kirillkom/ride-progress/internal/core/ports"
)

const unreadableWarning = "Could not read the screenshot. Review the values before saving."

// ImportObserver receives the outcome of each prepared or saved import.
type ImportObserver interface {
	ObserveImport(status domain.ImportStatus, duration time.Duration)
}

type ImportUseCase struct {
	repo      ports.SnapshotRepository
	storage   ports.ObjectStorage
	metadata  ports.MetadataResolver
	extractor ports.VisionExtractor
	events    ports.EventPublisher
	now       func() time.Time
}

func NewImportUseCase(
	repo ports.SnapshotRepository,
	storage ports.ObjectStorage,
	metadata ports.MetadataResolver,
	extractor ports.VisionExtractor,
	events ports.EventPublisher,
) *ImportUseCase {
	return &ImportUseCase{
		repo:      repo,
		storage:   storage,
		metadata:  metadata,
		extractor: extractor,
		events:    events,
		now:       time.Now,
	}
}

func (uc *ImportUseCase) Prepare(ctx context.Context, sess domain.Session, upload domain.Upload) (*domain.Draft, error) {
	return uc.prepare(ctx, sess, upload, func(domain.ImportStatus) {})
}

func (uc *ImportUseCase) prepare(
	ctx context.Context,
	sess domain.Session,
	upload domain.Upload,
	progress func(domain.ImportStatus),
) (*domain.Draft, error) {
	if len(upload.Data) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "prepare import", fmt.Errorf("empty file %q", upload.Filename))
	}

	progress(domain.ImportHashing)
	hash := ContentHash(upload.Data)
	draft := &domain.Draft{
		Filename:  upload.Filename,
		ImageHash: hash,
	}

	existing, err := uc.repo.FindByHash(ctx, sess, hash)
	switch {
	case err == nil:
		draft.Status = domain.ImportDuplicate
		draft.DuplicateOf = existing.ID
		return draft, nil
	case !domain.IsKind(err, domain.ErrSnapshotNotFound):
		return nil, fmt.Errorf("lookup content hash: %w", err)
	}

	progress(domain.ImportUploading)
	key := fmt.Sprintf("uploads/%s-%s", hash, sanitizeFilename(upload.Filename))
	var meta domain.ImageMetadata

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := uc.storage.Save(gctx, key, bytes.NewReader(upload.Data)); err != nil {
			return fmt.Errorf("save image to object storage: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		meta = uc.metadata.Resolve(upload.Data, upload.ModTime)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	draft.ImageRef = domain.StorageRef(domain.ImageBucket, key)

	progress(domain.ImportExtracting)
	raw, err := uc.extractor.ExtractScreenshot(ctx, sess, ports.ScreenshotImage{
		Data:     upload.Data,
		MimeType: imageMimeType(upload),
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Warn("screenshot_extraction_failed",
			"filename", upload.Filename,
			"user_id", sess.UserID,
			"error", err,
		)
		draft.Extraction = FallbackExtraction(meta, domain.ScreenProgressReport)
		draft.NeedsReview = true
		draft.Warning = domain.Reason(err)
		draft.Status = domain.ImportReady
		return draft, nil
	}

	result := NormalizeExtraction(raw, meta)
	draft.Extraction = result.Extraction
	draft.RawExtraction = raw
	draft.Parsed = result.Parsed
	draft.NeedsReview = result.NeedsReview
	if !result.Parsed {
		draft.Warning = unreadableWarning
	}
	draft.Status = domain.ImportReady
	return draft, nil
}

// Save persists a prepared draft as a new snapshot with origin upload.
func (uc *ImportUseCase) Save(ctx context.Context, sess domain.Session, draft domain.Draft) (*domain.Snapshot, error) {
	return uc.save(ctx, sess, draft, domain.OriginUpload)
}

func (uc *ImportUseCase) save(ctx context.Context, sess domain.Session, draft domain.Draft, origin domain.Origin) (*domain.Snapshot, error) {
	ext := draft.Extraction
	if !ext.ScreenType.Valid() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "save snapshot", fmt.Errorf("unknown screen type %q", ext.ScreenType))
	}
	detail := ext.Detail
	if detail == nil {
		detail = domain.EmptyDetail(ext.ScreenType)
	}
	if detail.ScreenType() != ext.ScreenType {
		return nil, domain.WrapError(domain.ErrInvalidInput, "save snapshot", fmt.Errorf("detail %s does not match screen type %s", detail.ScreenType(), ext.ScreenType))
	}
	if draft.ImageRef != "" && !domain.IsStorageRef(draft.ImageRef) && !strings.HasPrefix(draft.ImageRef, "http") {
		return nil, domain.WrapError(domain.ErrInvalidInput, "save snapshot", fmt.Errorf("unsupported image reference"))
	}

	now := uc.now().UTC()
	captured := ext.ImageMetadata.CapturedAt
	if captured == nil {
		capturedNow := now
		captured = &capturedNow
	}
	ext.Detail = detail
	ext.Confidence.Overall = clampUnit(ext.Confidence.Overall)

	parsed, err := json.Marshal(ext)
	if err != nil {
		return nil, fmt.Errorf("encode extraction: %w", err)
	}

	snap := &domain.Snapshot{
		ID:                    uuid.NewString(),
		UserID:                sess.UserID,
		CreatedAt:             now,
		CapturedAt:            captured,
		TimezoneOffsetMinutes: ext.ImageMetadata.TimezoneOffsetMinutes,
		Metadata:              ext.ImageMetadata,
		Origin:                origin,
		ScreenType:            ext.ScreenType,
		ImageURL:              optionalString(draft.ImageRef),
		ImageHash:             optionalString(draft.ImageHash),
		RawExtraction:         rawExtractionJSON(draft.RawExtraction),
		ParsedData:            parsed,
		OverallConfidence:     ext.Confidence.Overall,
	}

	if err := uc.repo.Insert(ctx, sess, snap, detail); err != nil {
		return nil, fmt.Errorf("insert snapshot: %w", err)
	}

	publishEvent(ctx, uc.events, domain.SnapshotEvent{
		Type:       domain.SnapshotSaved,
		SnapshotID: snap.ID,
		UserID:     sess.UserID,
		ScreenType: snap.ScreenType,
		OccurredAt: now,
	})
	return snap, nil
}

// rawExtractionJSON keeps the model answer as JSON when it is JSON and as a
// JSON string otherwise.
func rawExtractionJSON(raw string) json.RawMessage {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	if payload, ok := decodeModelJSON(raw); ok {
		if out, err := json.Marshal(payload); err == nil {
			return out
		}
	}
	out, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	return out
}

func imageMimeType(upload domain.Upload) string {
	if ct := strings.TrimSpace(upload.ContentType); strings.HasPrefix(ct, "image/") {
		return ct
	}
	switch strings.ToLower(filepath.Ext(upload.Filename)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".heic":
		return "image/heic"
	default:
		return "image/jpeg"
	}
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == "_" {
		return "screenshot.jpg"
	}
	return base
}
