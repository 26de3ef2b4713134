package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/JulioPeixoto/veritas/internal/middleware"
	"github.com/JulioPeixoto/veritas/internal/vector"
)

type Catalog interface {
	Count(ctx context.Context) (int, error)
}

type VectorIndex interface {
	Count(ctx context.Context) (int, error)
	BackendName() string
	LastError() *vector.Diagnostic
}

type Files interface {
	CountFiles() (links, scraped int, err error)
}

type Handler struct {
	catalog Catalog
	index   VectorIndex
	files   Files
}

func NewHandler(c Catalog, v VectorIndex, f Files) *Handler {
	return &Handler{catalog: c, index: v, files: f}
}

type StatsResponse struct {
	Documents       int                `json:"documents"`
	Chunks          int                `json:"chunks"`
	LinkFiles       int                `json:"link_files"`
	ScrapedFiles    int                `json:"scraped_files"`
	VectorBackend   string             `json:"vector_backend"`
	LastSearchError *vector.Diagnostic `json:"last_search_error"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	slog.InfoContext(ctx, "getting stats", "correlationId", correlationID)

	docs, err := h.catalog.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count documents", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count documents", http.StatusInternalServerError)
		return
	}

	chunks, err := h.index.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count chunks", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count chunks", http.StatusInternalServerError)
		return
	}

	links, scraped, err := h.files.CountFiles()
	if err != nil {
		slog.ErrorContext(ctx, "failed to count scraping files", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count scraping files", http.StatusInternalServerError)
		return
	}

	resp := StatsResponse{
		Documents:       docs,
		Chunks:          chunks,
		LinkFiles:       links,
		ScrapedFiles:    scraped,
		VectorBackend:   h.index.BackendName(),
		LastSearchError: h.index.LastError(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
