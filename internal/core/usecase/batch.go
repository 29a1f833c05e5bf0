package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/ride-progress/internal/core/domain"
)

const maxRetainedBatches = 64

type batchJob struct {
	sess     domain.Session
	batchID  string
	uploads  []domain.Upload
	autoSave bool
}

// BatchImporter processes bulk imports with exactly one item in flight. Batches
// wait in a bounded queue; a full queue rejects new batches.
type BatchImporter struct {
	importer *ImportUseCase
	observer ImportObserver
	jobs     chan batchJob

	mu      sync.RWMutex
	batches map[string]*domain.Batch
	order   []string
}

func NewBatchImporter(importer *ImportUseCase, capacity int, observer ImportObserver) *BatchImporter {
	if capacity <= 0 {
		capacity = 1
	}
	return &BatchImporter{
		importer: importer,
		observer: observer,
		jobs:     make(chan batchJob, capacity),
		batches:  make(map[string]*domain.Batch),
	}
}

// Run consumes queued batches until ctx is done.
func (b *BatchImporter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-b.jobs:
			b.process(ctx, job)
		}
	}
}

func (b *BatchImporter) Submit(_ context.Context, sess domain.Session, uploads []domain.Upload, autoSave bool) (*domain.Batch, error) {
	if len(uploads) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "submit import batch", fmt.Errorf("no files"))
	}

	batch := &domain.Batch{
		ID:        uuid.NewString(),
		UserID:    sess.UserID,
		AutoSave:  autoSave,
		CreatedAt: time.Now().UTC(),
		Items:     make([]domain.BatchItem, len(uploads)),
	}
	for i, upload := range uploads {
		batch.Items[i] = domain.BatchItem{Index: i, Filename: upload.Filename, Status: domain.ImportPending}
	}

	b.mu.Lock()
	b.batches[batch.ID] = batch
	b.order = append(b.order, batch.ID)
	b.pruneLocked()
	b.mu.Unlock()

	select {
	case b.jobs <- batchJob{sess: sess, batchID: batch.ID, uploads: uploads, autoSave: autoSave}:
	default:
		b.mu.Lock()
		b.forgetLocked(batch.ID)
		b.mu.Unlock()
		return nil, domain.WrapError(domain.ErrQueueFull, "submit import batch", fmt.Errorf("%d batches waiting", cap(b.jobs)))
	}

	slog.Info("import_batch_queued", "batch_id", batch.ID, "user_id", sess.UserID, "items", len(uploads))
	return b.copyOf(batch.ID)
}

func (b *BatchImporter) Get(_ context.Context, sess domain.Session, batchID string) (*domain.Batch, error) {
	batch, err := b.copyOf(batchID)
	if err != nil {
		return nil, err
	}
	if batch.UserID != sess.UserID {
		return nil, domain.WrapError(domain.ErrSnapshotNotFound, "get import batch", fmt.Errorf("batch=%s", batchID))
	}
	return batch, nil
}

// SaveReady saves every ready item of a finished batch. Items are saved
// independently; a failing item does not undo the others.
func (b *BatchImporter) SaveReady(ctx context.Context, sess domain.Session, batchID string) (*domain.Batch, error) {
	batch, err := b.Get(ctx, sess, batchID)
	if err != nil {
		return nil, err
	}
	if !batch.Done {
		return nil, domain.WrapError(domain.ErrInvalidInput, "save import batch", fmt.Errorf("batch %s is still processing", batchID))
	}
	for _, item := range batch.Items {
		if item.Status != domain.ImportReady || item.Draft == nil {
			continue
		}
		b.saveItem(ctx, sess, batchID, item.Index, *item.Draft)
	}
	return b.copyOf(batchID)
}

func (b *BatchImporter) process(ctx context.Context, job batchJob) {
	logger := slog.With("batch_id", job.batchID, "user_id", job.sess.UserID)
	logger.Info("import_batch_started", "items", len(job.uploads))

	for i, upload := range job.uploads {
		if err := ctx.Err(); err != nil {
			b.finishItem(job.batchID, i, domain.ImportError, "cancelled", nil)
			continue
		}

		started := time.Now()
		draft, err := b.importer.prepare(ctx, job.sess, upload, func(status domain.ImportStatus) {
			b.updateItem(job.batchID, i, func(item *domain.BatchItem) { item.Status = status })
		})
		if err != nil {
			logger.Warn("import_item_failed", "index", i, "filename", upload.Filename, "error", err)
			b.finishItem(job.batchID, i, domain.ImportError, domain.Reason(err), nil)
			b.observe(domain.ImportError, started)
			continue
		}

		b.finishItem(job.batchID, i, draft.Status, draft.Warning, draft)
		b.observe(draft.Status, started)
		if draft.Status == domain.ImportReady && job.autoSave {
			b.saveItem(ctx, job.sess, job.batchID, i, *draft)
		}
	}

	b.updateBatch(job.batchID, func(batch *domain.Batch) { batch.Done = true })
	if batch, err := b.copyOf(job.batchID); err == nil {
		logger.Info("import_batch_finished", "counts", batch.Counts())
	}
}

func (b *BatchImporter) saveItem(ctx context.Context, sess domain.Session, batchID string, index int, draft domain.Draft) {
	started := time.Now()
	b.updateItem(batchID, index, func(item *domain.BatchItem) { item.Status = domain.ImportSaving })

	snap, err := b.importer.Save(ctx, sess, draft)
	switch {
	case err == nil:
		b.updateItem(batchID, index, func(item *domain.BatchItem) {
			item.Status = domain.ImportSaved
			item.SnapshotID = snap.ID
			item.Error = ""
		})
		b.observe(domain.ImportSaved, started)
	case domain.IsKind(err, domain.ErrDuplicateContent):
		b.updateItem(batchID, index, func(item *domain.BatchItem) {
			item.Status = domain.ImportDuplicate
			item.Error = domain.Reason(err)
		})
		b.observe(domain.ImportDuplicate, started)
	default:
		slog.Warn("import_item_save_failed", "batch_id", batchID, "index", index, "error", err)
		b.updateItem(batchID, index, func(item *domain.BatchItem) {
			item.Status = domain.ImportError
			item.Error = domain.Reason(err)
		})
		b.observe(domain.ImportError, started)
	}
}

func (b *BatchImporter) finishItem(batchID string, index int, status domain.ImportStatus, reason string, draft *domain.Draft) {
	b.updateItem(batchID, index, func(item *domain.BatchItem) {
		item.Status = status
		item.Error = reason
		item.Draft = draft
	})
}

func (b *BatchImporter) updateItem(batchID string, index int, fn func(*domain.BatchItem)) {
	b.updateBatch(batchID, func(batch *domain.Batch) {
		if index >= 0 && index < len(batch.Items) {
			fn(&batch.Items[index])
		}
	})
}

func (b *BatchImporter) updateBatch(batchID string, fn func(*domain.Batch)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if batch, ok := b.batches[batchID]; ok {
		fn(batch)
	}
}

func (b *BatchImporter) copyOf(batchID string) (*domain.Batch, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	batch, ok := b.batches[batchID]
	if !ok {
		return nil, domain.WrapError(domain.ErrSnapshotNotFound, "get import batch", fmt.Errorf("batch=%s", batchID))
	}
	out := *batch
	out.Items = make([]domain.BatchItem, len(batch.Items))
	copy(out.Items, batch.Items)
	return &out, nil
}

func (b *BatchImporter) observe(status domain.ImportStatus, started time.Time) {
	if b.observer != nil {
		b.observer.ObserveImport(status, time.Since(started))
	}
}

// pruneLocked drops the oldest finished batches beyond the retention limit.
// Settled batches go first; batches with ready items stay while others can go.
func (b *BatchImporter) pruneLocked() {
	for len(b.order) > maxRetainedBatches {
		if !b.dropOldestLocked(func(batch *domain.Batch) bool { return batch.Done && batch.Settled() }) &&
			!b.dropOldestLocked(func(batch *domain.Batch) bool { return batch.Done }) {
			return
		}
	}
}

func (b *BatchImporter) dropOldestLocked(match func(*domain.Batch) bool) bool {
	for i, id := range b.order {
		if batch, ok := b.batches[id]; !ok || match(batch) {
			delete(b.batches, id)
			b.order = append(b.order[:i], b.order[i+1:]...)
			return true
		}
	}
	return false
}

func (b *BatchImporter) forgetLocked(batchID string) {
	delete(b.batches, batchID)
	for i, id := range b.order {
		if id == batchID {
			b.order = append(b.order[:i], b.order[i+1:]...)
			return
		}
	}
}
