package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/ride-progress/internal/core/domain"
	"github.com/kirillkom/ride-progress/internal/core/ports"
)

const timelineFanOut = 8

type TimelineUseCase struct {
	repo    ports.SnapshotRepository
	images  ports.ImageURLResolver
	storage ports.ObjectStorage
	events  ports.EventPublisher
}

func NewTimelineUseCase(
	repo ports.SnapshotRepository,
	images ports.ImageURLResolver,
	storage ports.ObjectStorage,
	events ports.EventPublisher,
) *TimelineUseCase {
	return &TimelineUseCase{
		repo:    repo,
		images:  images,
		storage: storage,
		events:  events,
	}
}

// List returns up to limit entries, newest first, with image references
// resolved to fetchable URLs. limit <= 0 returns everything.
func (uc *TimelineUseCase) List(ctx context.Context, sess domain.Session, limit int) ([]domain.TimelineEntry, error) {
	snaps, err := uc.repo.List(ctx, sess, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return uc.assemble(ctx, sess, snaps, true)
}

func (uc *TimelineUseCase) History(ctx context.Context, sess domain.Session) ([]domain.TimelineEntry, error) {
	snaps, err := uc.repo.List(ctx, sess, 0)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return uc.assemble(ctx, sess, snaps, false)
}

func (uc *TimelineUseCase) Get(ctx context.Context, sess domain.Session, id string) (*domain.TimelineEntry, error) {
	snap, err := uc.repo.Get(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	entries, err := uc.assemble(ctx, sess, []domain.Snapshot{*snap}, true)
	if err != nil {
		return nil, err
	}
	return &entries[0], nil
}

func (uc *TimelineUseCase) Delete(ctx context.Context, sess domain.Session, id string) error {
	snap, err := uc.repo.Get(ctx, sess, id)
	if err != nil {
		return err
	}
	if err := uc.repo.Delete(ctx, sess, id); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}

	if uc.storage != nil {
		keys := []string{reviewAudioKey(id), reviewTextKey(id)}
		if snap.ImageURL != nil {
			if bucket, key, ok := domain.ParseStorageRef(*snap.ImageURL); ok && bucket == domain.ImageBucket {
				keys = append(keys, key)
			}
		}
		for _, key := range keys {
			if err := uc.storage.Delete(ctx, key); err != nil {
				slog.Warn("snapshot_object_delete_failed", "snapshot_id", id, "key", key, "error", err)
			}
		}
	}

	publishEvent(ctx, uc.events, domain.SnapshotEvent{
		Type:       domain.SnapshotDeleted,
		SnapshotID: id,
		UserID:     sess.UserID,
		ScreenType: snap.ScreenType,
		OccurredAt: time.Now().UTC(),
	})
	return nil
}

// assemble joins snapshot headers with their detail rows. Detail tables and
// image references are read concurrently.
func (uc *TimelineUseCase) assemble(
	ctx context.Context,
	sess domain.Session,
	snaps []domain.Snapshot,
	resolveImages bool,
) ([]domain.TimelineEntry, error) {
	progressIDs := make([]string, 0, len(snaps))
	rideIDs := make([]string, 0, len(snaps))
	for _, snap := range snaps {
		switch snap.ScreenType {
		case domain.ScreenProgressReport:
			progressIDs = append(progressIDs, snap.ID)
		case domain.ScreenRideMenu:
			rideIDs = append(rideIDs, snap.ID)
		}
	}

	var (
		progress map[string]*domain.ProgressReport
		rides    map[string]*domain.RideMenu
		urls     = make([]*string, len(snaps))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(timelineFanOut)
	if len(progressIDs) > 0 {
		g.Go(func() error {
			out, err := uc.repo.ListProgressReports(gctx, sess, progressIDs)
			if err != nil {
				return fmt.Errorf("load progress reports: %w", err)
			}
			progress = out
			return nil
		})
	}
	if len(rideIDs) > 0 {
		g.Go(func() error {
			out, err := uc.repo.ListRideMenus(gctx, sess, rideIDs)
			if err != nil {
				return fmt.Errorf("load ride menus: %w", err)
			}
			rides = out
			return nil
		})
	}
	for i := range snaps {
		ref := snaps[i].ImageURL
		if ref == nil {
			continue
		}
		if !resolveImages {
			urls[i] = ref
			continue
		}
		g.Go(func() error {
			urls[i] = uc.resolveImage(gctx, *ref)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	entries := make([]domain.TimelineEntry, 0, len(snaps))
	for i, snap := range snaps {
		snap.ImageURL = urls[i]
		entry := domain.TimelineEntry{Snapshot: snap}
		switch snap.ScreenType {
		case domain.ScreenProgressReport:
			if d, ok := progress[snap.ID]; ok && d != nil {
				entry.Detail = d
			}
		case domain.ScreenRideMenu:
			if d, ok := rides[snap.ID]; ok && d != nil {
				entry.Detail = d
			}
		}
		entries = append(entries, entry)
	}
	SortTimeline(entries)
	return entries, nil
}

// resolveImage never fails the read: unresolvable references become nil.
func (uc *TimelineUseCase) resolveImage(ctx context.Context, ref string) *string {
	if ref == "" || uc.images == nil {
		return nil
	}
	url, err := uc.images.Resolve(ctx, ref)
	if err != nil {
		slog.Warn("image_url_resolve_failed", "ref", ref, "error", err)
		return nil
	}
	if url == "" {
		return nil
	}
	return &url
}

// SortTimeline orders entries newest first by capture time with missing
// capture times last, then by upload time, then by id.
func SortTimeline(entries []domain.TimelineEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].Snapshot, entries[j].Snapshot
		switch {
		case a.CapturedAt != nil && b.CapturedAt == nil:
			return true
		case a.CapturedAt == nil && b.CapturedAt != nil:
			return false
		case a.CapturedAt != nil && b.CapturedAt != nil && !a.CapturedAt.Equal(*b.CapturedAt):
			return a.CapturedAt.After(*b.CapturedAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

func publishEvent(ctx context.Context, events ports.EventPublisher, event domain.SnapshotEvent) {
	if events == nil {
		return
	}
	if err := events.PublishSnapshotEvent(ctx, event); err != nil {
		slog.Warn("snapshot_event_publish_failed",
			"type", string(event.Type),
			"snapshot_id", event.SnapshotID,
			"error", err,
		)
	}
}
