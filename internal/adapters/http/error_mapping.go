package httpadapter

import (
	"log/slog"
	"net/http"

	"github.com/kirillkom/ride-progress/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrSnapshotNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrDuplicateContent):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrQuotaExhausted):
		return http.StatusPaymentRequired
	case domain.IsKind(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case domain.IsKind(err, domain.ErrQueueFull), domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	message := domain.Reason(err)
	switch status {
	case http.StatusInternalServerError:
		slog.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
		message = "internal error"
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		w.Header().Set("Retry-After", "5")
	}
	writeJSON(w, status, map[string]string{"error": message})
}
