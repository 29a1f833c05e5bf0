package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/oapi-codegen/runtime"

	"github.com/kirillkom/ride-progress/internal/config"
	"github.com/kirillkom/ride-progress/internal/core/domain"
	"github.com/kirillkom/ride-progress/internal/core/ports"
	"github.com/kirillkom/ride-progress/internal/observability/metrics"
)

const (
	serviceName      = "api"
	maxBatchFiles    = 50
	backpressureWait = 250 * time.Millisecond
)

// SignatureVerifier checks signed object URLs.
type SignatureVerifier interface {
	Verify(key, expires, sig string) error
}

type Services struct {
	Importer   ports.SnapshotImporter
	Batches    ports.BatchImportService
	Catalog    ports.SnapshotCatalog
	Comparison ports.ComparisonService
	Trends     ports.TrendService
	Archive    ports.ArchiveService
	Reviews    ports.VoiceReviewService
	Storage    ports.ObjectStorage
	Signer     SignatureVerifier
	Metrics    *metrics.HTTPServerMetrics
}

type Router struct {
	cfg config.Config
	svc Services
}

func NewRouter(cfg config.Config, svc Services) *Router {
	return &Router{cfg: cfg, svc: svc}
}

func (rt *Router) Handler() (http.Handler, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /openapi.yaml", rt.openAPI)
	if rt.svc.Metrics != nil {
		mux.Handle("GET /metrics", rt.svc.Metrics.Handler())
	}

	mux.HandleFunc("GET /v1/metrics", rt.listMetrics)
	mux.HandleFunc("POST /v1/snapshots/prepare", rt.prepareSnapshot)
	mux.HandleFunc("POST /v1/snapshots", rt.saveSnapshot)
	mux.HandleFunc("GET /v1/snapshots", rt.listSnapshots)
	mux.HandleFunc("GET /v1/snapshots/{id}", rt.getSnapshot)
	mux.HandleFunc("DELETE /v1/snapshots/{id}", rt.deleteSnapshot)
	mux.HandleFunc("GET /v1/snapshots/{id}/comparison", rt.compareSnapshot)
	mux.HandleFunc("GET /v1/snapshots/{id}/review", rt.reviewSnapshot)
	mux.HandleFunc("GET /v1/trends", rt.metricTrend)
	mux.HandleFunc("POST /v1/imports", rt.submitImport)
	mux.HandleFunc("GET /v1/imports/{id}", rt.getImport)
	mux.HandleFunc("POST /v1/imports/{id}/save", rt.saveImport)
	mux.HandleFunc("GET /v1/export", rt.exportTimeline)
	mux.HandleFunc("POST /v1/restore", rt.restoreTimeline)
	mux.HandleFunc("GET /v1/images/{key...}", rt.serveImage)

	doc, err := loadOpenAPI(context.Background())
	if err != nil {
		return nil, err
	}
	validated, err := openAPIValidationMiddleware(doc, mux)
	if err != nil {
		return nil, err
	}

	var handler http.Handler = sessionMiddleware(rt.cfg.APIKeys, validated)
	handler = backpressureMiddleware(handler, rt.cfg.MaxInFlight, backpressureWait)
	handler = rateLimitMiddleware(rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst, handler)
	if rt.svc.Metrics != nil {
		handler = rt.svc.Metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler), nil
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) openAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(OpenAPISpec())
}

func (rt *Router) listMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"metrics": domain.Metrics()})
}

func (rt *Router) prepareSnapshot(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.maxUploadBytes())
	file, header, err := r.FormFile("file")
	if err != nil {
		writeUploadError(w, err, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeUploadError(w, err, "read uploaded file")
		return
	}

	upload := domain.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}
	if raw := strings.TrimSpace(r.FormValue("modified_at")); raw != "" {
		modTime, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "modified_at must be RFC3339"})
			return
		}
		upload.ModTime = &modTime
	}

	draft, err := rt.svc.Importer.Prepare(r.Context(), sessionFromRequest(r), upload)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (rt *Router) saveSnapshot(w http.ResponseWriter, r *http.Request) {
	var draft domain.Draft
	if err := json.NewDecoder(io.LimitReader(r.Body, rt.maxUploadBytes())).Decode(&draft); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid draft json"})
		return
	}

	snap, err := rt.svc.Importer.Save(r.Context(), sessionFromRequest(r), draft)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (rt *Router) listSnapshots(w http.ResponseWriter, r *http.Request) {
	var limit *int
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
		return
	}
	n := 0
	if limit != nil {
		n = *limit
	}
	if ceiling := rt.cfg.TimelineMaxLimit; ceiling > 0 && (n <= 0 || n > ceiling) {
		n = ceiling
	}

	entries, err := rt.svc.Catalog.List(r.Context(), sessionFromRequest(r), n)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []domain.TimelineEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": entries, "count": len(entries)})
}

func (rt *Router) getSnapshot(w http.ResponseWriter, r *http.Request) {
	entry, err := rt.svc.Catalog.Get(r.Context(), sessionFromRequest(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (rt *Router) deleteSnapshot(w http.ResponseWriter, r *http.Request) {
	if err := rt.svc.Catalog.Delete(r.Context(), sessionFromRequest(r), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) compareSnapshot(w http.ResponseWriter, r *http.Request) {
	comparison, err := rt.svc.Comparison.Compare(r.Context(), sessionFromRequest(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, comparison)
}

func (rt *Router) reviewSnapshot(w http.ResponseWriter, r *http.Request) {
	review, err := rt.svc.Reviews.Review(r.Context(), sessionFromRequest(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	if wantsAudio(r) && len(review.Audio) > 0 {
		w.Header().Set("Content-Type", review.MimeType)
		w.Header().Set("Cache-Control", "private, max-age=3600")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(review.Audio)
		return
	}
	writeJSON(w, http.StatusOK, review)
}

func wantsAudio(r *http.Request) bool {
	if format := r.URL.Query().Get("format"); format != "" {
		return format == "audio"
	}
	return strings.Contains(r.Header.Get("Accept"), "audio/")
}

func (rt *Router) metricTrend(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	metric := domain.MetricID(strings.TrimSpace(query.Get("metric")))
	mode := domain.TrendMode(strings.TrimSpace(query.Get("mode")))
	if mode == "" {
		mode = domain.TrendTimeSeries
	}

	trend, err := rt.svc.Trends.Trend(r.Context(), sessionFromRequest(r), metric, mode)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trend)
}

func (rt *Router) submitImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.maxUploadBytes()*maxBatchFiles)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeUploadError(w, err, "multipart form is required")
		return
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'files' is required"})
		return
	}
	if len(headers) > maxBatchFiles {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("at most %d files per import", maxBatchFiles)})
		return
	}

	uploads := make([]domain.Upload, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > rt.maxUploadBytes() {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": fmt.Sprintf("%s is too large", fh.Filename)})
			return
		}
		file, err := fh.Open()
		if err != nil {
			writeUploadError(w, err, "open uploaded file")
			return
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			writeUploadError(w, err, "read uploaded file")
			return
		}
		uploads = append(uploads, domain.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	autoSave := r.FormValue("auto_save") == "true"

	batch, err := rt.svc.Batches.Submit(r.Context(), sessionFromRequest(r), uploads, autoSave)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, batch)
}

func (rt *Router) getImport(w http.ResponseWriter, r *http.Request) {
	batch, err := rt.svc.Batches.Get(r.Context(), sessionFromRequest(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

func (rt *Router) saveImport(w http.ResponseWriter, r *http.Request) {
	batch, err := rt.svc.Batches.SaveReady(r.Context(), sessionFromRequest(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

func (rt *Router) exportTimeline(w http.ResponseWriter, r *http.Request) {
	format := archiveFormat(r)
	if !format.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported export format"})
		return
	}

	w.Header().Set("Content-Type", archiveContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="ride-progress.%s"`, format))
	if err := rt.svc.Archive.Export(r.Context(), sessionFromRequest(r), format, w); err != nil {
		// Headers are already sent.
		slog.Error("export_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		return
	}
}

func (rt *Router) restoreTimeline(w http.ResponseWriter, r *http.Request) {
	format := archiveFormat(r)
	if !format.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported restore format"})
		return
	}
	body := http.MaxBytesReader(w, r.Body, rt.maxUploadBytes()*maxBatchFiles)

	result, err := rt.svc.Archive.Restore(r.Context(), sessionFromRequest(r), format, body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func archiveFormat(r *http.Request) domain.ExportFormat {
	format := domain.ExportFormat(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format"))))
	if format == "" {
		return domain.ExportJSON
	}
	return format
}

func archiveContentType(format domain.ExportFormat) string {
	switch format {
	case domain.ExportYAML:
		return "application/yaml"
	case domain.ExportCSV:
		return "text/csv; charset=utf-8"
	case domain.ExportXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/json"
	}
}

func (rt *Router) serveImage(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if rt.svc.Signer == nil || rt.svc.Storage == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "image serving disabled"})
		return
	}
	query := r.URL.Query()
	if err := rt.svc.Signer.Verify(key, query.Get("expires"), query.Get("sig")); err != nil {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
		return
	}

	rc, err := rt.svc.Storage.Open(r.Context(), key)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "image not found"})
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=600")
	if _, err := io.Copy(w, rc); err != nil {
		slog.Warn("image_copy_failed", "key", key, "error", err)
	}
}

func (rt *Router) maxUploadBytes() int64 {
	if rt.cfg.MaxUploadBytes > 0 {
		return rt.cfg.MaxUploadBytes
	}
	return 20 << 20
}

func writeUploadError(w http.ResponseWriter, err error, message string) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit)})
		return
	}
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("write_json_failed", "error", err)
	}
}
