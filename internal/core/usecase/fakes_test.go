package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sync"
	"time"

	"github.com/kirillkom/ride-progress/internal/core/domain"
	"github.com/kirillkom/ride-progress/internal/core/ports"
)

type memoryRepo struct {
	mu      sync.Mutex
	snaps   []domain.Snapshot
	details map[string]domain.Detail
	listErr error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{details: make(map[string]domain.Detail)}
}

func (r *memoryRepo) Insert(_ context.Context, sess domain.Session, snap *domain.Snapshot, detail domain.Detail) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if snap.ImageHash != nil {
		for _, s := range r.snaps {
			if s.UserID == sess.UserID && s.ImageHash != nil && *s.ImageHash == *snap.ImageHash {
				return domain.WrapError(domain.ErrDuplicateContent, "insert", fmt.Errorf("hash %s", *snap.ImageHash))
			}
		}
	}
	copySnap := *snap
	copySnap.UserID = sess.UserID
	r.snaps = append(r.snaps, copySnap)
	if detail != nil {
		r.details[snap.ID] = detail
	}
	return nil
}

func (r *memoryRepo) Delete(_ context.Context, sess domain.Session, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, s := range r.snaps {
		if s.ID == id && s.UserID == sess.UserID {
			r.snaps = append(r.snaps[:i], r.snaps[i+1:]...)
			delete(r.details, id)
			return nil
		}
	}
	return domain.WrapError(domain.ErrSnapshotNotFound, "delete", errors.New(id))
}

func (r *memoryRepo) Get(_ context.Context, sess domain.Session, id string) (*domain.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.snaps {
		if s.ID == id && s.UserID == sess.UserID {
			out := s
			return &out, nil
		}
	}
	return nil, domain.WrapError(domain.ErrSnapshotNotFound, "get", errors.New(id))
}

func (r *memoryRepo) FindByHash(_ context.Context, sess domain.Session, hash string) (*domain.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.snaps {
		if s.UserID == sess.UserID && s.ImageHash != nil && *s.ImageHash == hash {
			out := s
			return &out, nil
		}
	}
	return nil, domain.WrapError(domain.ErrSnapshotNotFound, "find by hash", errors.New(hash))
}

func (r *memoryRepo) List(_ context.Context, sess domain.Session, limit int) ([]domain.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	entries := make([]domain.TimelineEntry, 0, len(r.snaps))
	for _, s := range r.snaps {
		if s.UserID == sess.UserID {
			entries = append(entries, domain.TimelineEntry{Snapshot: s})
		}
	}
	SortTimeline(entries)
	out := make([]domain.Snapshot, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Snapshot)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryRepo) Count(ctx context.Context, sess domain.Session) (int, error) {
	out, err := r.List(ctx, sess, 0)
	return len(out), err
}

func (r *memoryRepo) ListProgressReports(_ context.Context, _ domain.Session, ids []string) (map[string]*domain.ProgressReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]*domain.ProgressReport)
	for _, id := range ids {
		if d, ok := r.details[id].(*domain.ProgressReport); ok {
			out[id] = d
		}
	}
	return out, nil
}

func (r *memoryRepo) ListRideMenus(_ context.Context, _ domain.Session, ids []string) (map[string]*domain.RideMenu, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]*domain.RideMenu)
	for _, id := range ids {
		if d, ok := r.details[id].(*domain.RideMenu); ok {
			out[id] = d
		}
	}
	return out, nil
}

type memoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	saves   int
	err     error
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: make(map[string][]byte)}
}

func (s *memoryStorage) Save(_ context.Context, key string, data io.Reader) error {
	if s.err != nil {
		return s.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = raw
	s.saves++
	return nil
}

func (s *memoryStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.objects[key]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (s *memoryStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

type fixedMetadata struct {
	meta domain.ImageMetadata
}

func (f fixedMetadata) Resolve([]byte, *time.Time) domain.ImageMetadata {
	return f.meta
}

type extractorFake struct {
	mu       sync.Mutex
	response string
	err      error
	calls    int
	sessions []domain.Session
}

func (f *extractorFake) ExtractScreenshot(_ context.Context, sess domain.Session, _ ports.ScreenshotImage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.sessions = append(f.sessions, sess)
	return f.response, f.err
}

type publisherFake struct {
	mu     sync.Mutex
	events []domain.SnapshotEvent
}

func (p *publisherFake) PublishSnapshotEvent(_ context.Context, event domain.SnapshotEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func ptrTime(t time.Time) *time.Time { return &t }

func ptrFloat(v float64) *float64 { return &v }

func progressEntry(id string, captured time.Time, ftp float64) domain.TimelineEntry {
	return domain.TimelineEntry{
		Snapshot: domain.Snapshot{
			ID:         id,
			CreatedAt:  captured,
			CapturedAt: ptrTime(captured),
			ScreenType: domain.ScreenProgressReport,
		},
		Detail: &domain.ProgressReport{
			Performance: &domain.Performance{FTPW: ftp},
		},
	}
}

func rideEntry(id string, captured time.Time, best5s float64) domain.TimelineEntry {
	return domain.TimelineEntry{
		Snapshot: domain.Snapshot{
			ID:         id,
			CreatedAt:  captured,
			CapturedAt: ptrTime(captured),
			ScreenType: domain.ScreenRideMenu,
		},
		Detail: &domain.RideMenu{YourBest: domain.BestPower{Best5sW: best5s}},
	}
}

type staticHistory struct {
	entries []domain.TimelineEntry
	err     error
}

func (h staticHistory) History(context.Context, domain.Session) ([]domain.TimelineEntry, error) {
	return h.entries, h.err
}
