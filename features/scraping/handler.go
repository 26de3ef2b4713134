package scraping

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/JulioPeixoto/veritas/internal/config"
	"github.com/JulioPeixoto/veritas/internal/middleware"
	"github.com/JulioPeixoto/veritas/internal/worker"
)

type Handler struct {
	service *Service
	pub     worker.Publisher
}

func NewHandler(service *Service, pub worker.Publisher) *Handler {
	if pub == nil {
		pub = worker.NoopPublisher{}
	}
	return &Handler{service: service, pub: pub}
}

func (h *Handler) SearchLinks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := DefaultLinkLimit
	if l := q.Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil {
			h.writeError(r.Context(), w, ErrInvalidLimit)
			return
		}
		limit = parsed
	}

	res, err := h.service.SearchLinks(r.Context(), LinkQuery{
		Query:  q.Get("query"),
		Limit:  limit,
		GL:     q.Get("gl"),
		HL:     q.Get("hl"),
		Engine: q.Get("engine"),
		When:   q.Get("when"),
	})
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"data": res})
}

// ETL runs the pipeline inline, or enqueues it when async=true.
func (h *Handler) ETL(w http.ResponseWriter, r *http.Request) {
	filename := r.URL.Query().Get("filename")
	async, _ := strconv.ParseBool(r.URL.Query().Get("async"))

	if !async {
		// A started run completes even if the client goes away.
		res, err := h.service.ETL(context.WithoutCancel(r.Context()), filename)
		if err != nil {
			h.writeError(r.Context(), w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]interface{}{"data": res})
		return
	}

	if !validFilename(filename) {
		h.writeError(r.Context(), w, ErrInvalidFilename)
		return
	}
	if err := worker.PublishETL(r.Context(), h.pub, config.TopicScrapingETL, filename); err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"data": map[string]interface{}{"filename": filename, "queued": true},
	})
}

func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	if kind == "" {
		kind = KindAll
	}
	res, err := h.service.ListFiles(kind)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": res,
		"meta": map[string]int{"count": len(res.Links) + len(res.Scraped)},
	})
}

func (h *Handler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.service.DeleteFile(q.Get("kind"), q.Get("filename"))
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"data": res})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	code, status := "INTERNAL_ERROR", http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrInvalidQuery), errors.Is(err, ErrInvalidLimit),
		errors.Is(err, ErrInvalidFilename), errors.Is(err, ErrInvalidKind):
		code, status = "VALIDATION_ERROR", http.StatusBadRequest
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNoLinks):
		code, status = "NOT_FOUND", http.StatusNotFound
	case errors.Is(err, worker.ErrQueueDisabled):
		code, status = "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable
	default:
		slog.ErrorContext(ctx, "scraping request failed", "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": err.Error(),
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
