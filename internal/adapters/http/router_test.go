package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/ride-progress/internal/config"
	"github.com/kirillkom/ride-progress/internal/core/domain"
	"github.com/kirillkom/ride-progress/internal/infrastructure/storage/localfs"
)

type importerFake struct {
	saveErr  error
	uploaded domain.Upload
}

func (f *importerFake) Prepare(_ context.Context, _ domain.Session, upload domain.Upload) (*domain.Draft, error) {
	f.uploaded = upload
	return &domain.Draft{Filename: upload.Filename, Status: domain.ImportReady, ImageHash: "abc"}, nil
}

func (f *importerFake) Save(_ context.Context, sess domain.Session, draft domain.Draft) (*domain.Snapshot, error) {
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	return &domain.Snapshot{ID: "snap-1", UserID: sess.UserID, ImageHash: &draft.ImageHash}, nil
}

type batchesFake struct {
	submitErr error
	uploads   int
	autoSave  bool
}

func (f *batchesFake) Submit(_ context.Context, sess domain.Session, uploads []domain.Upload, autoSave bool) (*domain.Batch, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.uploads = len(uploads)
	f.autoSave = autoSave
	return &domain.Batch{ID: "batch-1", UserID: sess.UserID, AutoSave: autoSave}, nil
}

func (f *batchesFake) Get(_ context.Context, _ domain.Session, id string) (*domain.Batch, error) {
	if id != "batch-1" {
		return nil, domain.WrapError(domain.ErrSnapshotNotFound, "get batch", errors.New(id))
	}
	return &domain.Batch{ID: id}, nil
}

func (f *batchesFake) SaveReady(_ context.Context, _ domain.Session, id string) (*domain.Batch, error) {
	return &domain.Batch{ID: id, Done: true}, nil
}

type catalogFake struct {
	lastLimit int
	lastUser  string
}

func (f *catalogFake) List(_ context.Context, sess domain.Session, limit int) ([]domain.TimelineEntry, error) {
	f.lastLimit = limit
	f.lastUser = sess.UserID
	return nil, nil
}

func (f *catalogFake) Get(_ context.Context, _ domain.Session, id string) (*domain.TimelineEntry, error) {
	return nil, domain.WrapError(domain.ErrSnapshotNotFound, "get snapshot", errors.New(id))
}

func (f *catalogFake) Delete(context.Context, domain.Session, string) error { return nil }

type comparisonFake struct{}

func (comparisonFake) Compare(_ context.Context, _ domain.Session, id string) (*domain.Comparison, error) {
	return &domain.Comparison{SnapshotID: id}, nil
}

type trendsFake struct{}

func (trendsFake) Trend(_ context.Context, _ domain.Session, metric domain.MetricID, mode domain.TrendMode) (*domain.Trend, error) {
	info, _ := domain.LookupMetric(metric)
	return &domain.Trend{Metric: info, Mode: mode}, nil
}

type archiveFake struct{}

func (archiveFake) Export(_ context.Context, _ domain.Session, _ domain.ExportFormat, w io.Writer) error {
	_, err := io.WriteString(w, "Date,Type\n")
	return err
}

func (archiveFake) Restore(_ context.Context, _ domain.Session, _ domain.ExportFormat, r io.Reader) (*domain.RestoreResult, error) {
	if _, err := io.ReadAll(r); err != nil {
		return nil, err
	}
	return &domain.RestoreResult{Imported: 2}, nil
}

type reviewsFake struct {
	err error
}

func (f reviewsFake) Review(_ context.Context, _ domain.Session, id string) (*domain.VoiceReview, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.VoiceReview{SnapshotID: id, Text: "Nice work.", Audio: []byte("ID3"), MimeType: "audio/mpeg"}, nil
}

func testServices() Services {
	return Services{
		Importer:   &importerFake{},
		Batches:    &batchesFake{},
		Catalog:    &catalogFake{},
		Comparison: comparisonFake{},
		Trends:     trendsFake{},
		Archive:    archiveFake{},
		Reviews:    reviewsFake{},
	}
}

func newTestHandler(t *testing.T, cfg config.Config, svc Services) http.Handler {
	t.Helper()
	handler, err := NewRouter(cfg, svc).Handler()
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	return handler
}

func serve(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestListSnapshotsClampsLimitAndUsesUserHeader(t *testing.T) {
	svc := testServices()
	catalog := svc.Catalog.(*catalogFake)
	handler := newTestHandler(t, config.Config{TimelineMaxLimit: 500}, svc)

	req := httptest.NewRequest(http.MethodGet, "/v1/snapshots?limit=1000", nil)
	req.Header.Set(userIDHeader, "rider-7")
	res := serve(handler, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if catalog.lastLimit != 500 {
		t.Fatalf("expected limit clamped to 500, got %d", catalog.lastLimit)
	}
	if catalog.lastUser != "rider-7" {
		t.Fatalf("expected session user rider-7, got %q", catalog.lastUser)
	}
	if !strings.Contains(res.Body.String(), `"snapshots":[]`) {
		t.Fatalf("expected empty snapshot array, got %s", res.Body.String())
	}
}

func TestListSnapshotsRejectsInvalidLimit(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, testServices())

	res := serve(handler, httptest.NewRequest(http.MethodGet, "/v1/snapshots?limit=abc", nil))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestTrendValidatesMetricAgainstSpec(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, testServices())

	res := serve(handler, httptest.NewRequest(http.MethodGet, "/v1/trends?metric=watts", nil))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown metric, got %d", res.Code)
	}

	res = serve(handler, httptest.NewRequest(http.MethodGet, "/v1/trends?metric=ftp", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var trend domain.Trend
	if err := json.Unmarshal(res.Body.Bytes(), &trend); err != nil {
		t.Fatalf("decode trend: %v", err)
	}
	if trend.Mode != domain.TrendTimeSeries {
		t.Fatalf("expected default time_series mode, got %q", trend.Mode)
	}
}

func TestGetSnapshotReturns404ForNotFound(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, testServices())

	res := serve(handler, httptest.NewRequest(http.MethodGet, "/v1/snapshots/missing", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestSaveSnapshotMapsDuplicateTo409(t *testing.T) {
	svc := testServices()
	svc.Importer = &importerFake{saveErr: domain.WrapError(domain.ErrDuplicateContent, "save", errors.New("hash=abc"))}
	handler := newTestHandler(t, config.Config{}, svc)

	body := `{"image_hash":"abc","extraction":{"screen_type":"ride_menu"}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/snapshots", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := serve(handler, req)
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", res.Code, res.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(res.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if resp["error"] != "Already imported" {
		t.Fatalf("unexpected error message %q", resp["error"])
	}
}

func TestPrepareSnapshotReadsMultipartUpload(t *testing.T) {
	svc := testServices()
	importer := svc.Importer.(*importerFake)
	handler := newTestHandler(t, config.Config{}, svc)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "ride.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = part.Write([]byte("png-bytes"))
	_ = mw.WriteField("modified_at", "2026-03-01T10:00:00Z")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/snapshots/prepare", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	res := serve(handler, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if string(importer.uploaded.Data) != "png-bytes" || importer.uploaded.Filename != "ride.png" {
		t.Fatalf("unexpected upload %+v", importer.uploaded)
	}
	if importer.uploaded.ModTime == nil || !importer.uploaded.ModTime.Equal(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected modified_at to be parsed, got %v", importer.uploaded.ModTime)
	}
}

func TestSubmitImportMapsQueueFullTo503(t *testing.T) {
	svc := testServices()
	svc.Batches = &batchesFake{submitErr: domain.ErrQueueFull}
	handler := newTestHandler(t, config.Config{}, svc)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range []string{"a.png", "b.png"} {
		part, _ := mw.CreateFormFile("files", name)
		_, _ = part.Write([]byte(name))
	}
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/imports", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	res := serve(handler, req)
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
	if res.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}

func TestSubmitImportAcceptsFiles(t *testing.T) {
	svc := testServices()
	batches := svc.Batches.(*batchesFake)
	handler := newTestHandler(t, config.Config{}, svc)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		part, _ := mw.CreateFormFile("files", name)
		_, _ = part.Write([]byte(name))
	}
	_ = mw.WriteField("auto_save", "true")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/imports", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	res := serve(handler, req)
	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if batches.uploads != 3 || !batches.autoSave {
		t.Fatalf("expected 3 uploads with auto save, got %d %v", batches.uploads, batches.autoSave)
	}
}

func TestReviewServesAudioOnRequest(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, testServices())

	res := serve(handler, httptest.NewRequest(http.MethodGet, "/v1/snapshots/snap-1/review?format=audio", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if ct := res.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Fatalf("expected audio/mpeg, got %q", ct)
	}

	res = serve(handler, httptest.NewRequest(http.MethodGet, "/v1/snapshots/snap-1/review", nil))
	if !strings.Contains(res.Body.String(), `"review_text":"Nice work."`) {
		t.Fatalf("expected review text json, got %s", res.Body.String())
	}
}

func TestReviewMapsQuotaExhaustedTo402(t *testing.T) {
	svc := testServices()
	svc.Reviews = reviewsFake{err: domain.WrapError(domain.ErrQuotaExhausted, "write review", errors.New("402"))}
	handler := newTestHandler(t, config.Config{}, svc)

	res := serve(handler, httptest.NewRequest(http.MethodGet, "/v1/snapshots/snap-1/review", nil))
	if res.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", res.Code)
	}
}

func TestExportSetsFormatHeaders(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, testServices())

	res := serve(handler, httptest.NewRequest(http.MethodGet, "/v1/export?format=csv", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if ct := res.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("expected csv content type, got %q", ct)
	}
	if !strings.Contains(res.Header().Get("Content-Disposition"), "ride-progress.csv") {
		t.Fatalf("unexpected disposition %q", res.Header().Get("Content-Disposition"))
	}

	res = serve(handler, httptest.NewRequest(http.MethodGet, "/v1/export?format=pdf", nil))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unsupported format, got %d", res.Code)
	}
}

func TestServeImageRequiresValidSignature(t *testing.T) {
	storage, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("new storage: %v", err)
	}
	if err := storage.Save(context.Background(), "uploads/abc-ride.png", strings.NewReader("image")); err != nil {
		t.Fatalf("save: %v", err)
	}
	signer, err := localfs.NewURLSigner(localfs.SignerConfig{Secret: "s3cret", BaseURL: "http://example.test", TTL: time.Hour})
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	svc := testServices()
	svc.Storage = storage
	svc.Signer = signer
	handler := newTestHandler(t, config.Config{APIKeys: []string{"secret"}}, svc)

	signed, err := url.Parse(signer.Sign("uploads/abc-ride.png"))
	if err != nil {
		t.Fatalf("parse signed url: %v", err)
	}
	res := serve(handler, httptest.NewRequest(http.MethodGet, signed.RequestURI(), nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if res.Body.String() != "image" || res.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("unexpected image response %q %q", res.Body.String(), res.Header().Get("Content-Type"))
	}

	res = serve(handler, httptest.NewRequest(http.MethodGet, "/v1/images/uploads/abc-ride.png?expires=1&sig=bad", nil))
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for bad signature, got %d", res.Code)
	}
}

func TestOpenAPISpecIsServedAndValid(t *testing.T) {
	if _, err := loadOpenAPI(context.Background()); err != nil {
		t.Fatalf("embedded spec invalid: %v", err)
	}
	handler := newTestHandler(t, config.Config{}, testServices())

	res := serve(handler, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), "Ride Progress API") {
		t.Fatalf("unexpected openapi response %d", res.Code)
	}
}
