package catalog

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/JulioPeixoto/veritas/internal/middleware"
)

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.repo.List(r.Context())
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list catalog", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error":         map[string]string{"code": "INTERNAL_ERROR", "message": "Failed to list documents"},
			"correlationId": middleware.GetCorrelationID(r.Context()),
		})
		return
	}
	if docs == nil {
		docs = []Document{}
	}

	resp := map[string]interface{}{
		"data": docs,
		"meta": map[string]int{"count": len(docs)},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
