package store

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/JulioPeixoto/veritas/internal/extract"
	"github.com/JulioPeixoto/veritas/internal/middleware"
	"github.com/JulioPeixoto/veritas/internal/retrieval"
)

const (
	defaultSearchLimit = 5
	maxSearchLimit     = 20
	maxContextLimit    = 10
)

type Searcher interface {
	Search(ctx context.Context, query string, limit int) []retrieval.SearchResult
	SearchWithContext(ctx context.Context, query string, limit int) retrieval.ContextResponse
}

type Handler struct {
	service     *Service
	search      Searcher
	maxUploadMB int64
}

func NewHandler(service *Service, search Searcher, maxUploadMB int64) *Handler {
	if maxUploadMB <= 0 {
		maxUploadMB = 50
	}
	return &Handler{service: service, search: search, maxUploadMB: maxUploadMB}
}

// Index accepts multipart uploads under "files" (repeatable) or "file".
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	limit := h.maxUploadMB << 20
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "Invalid multipart form or file too large", http.StatusBadRequest, nil)
		return
	}

	headers := r.MultipartForm.File["files"]
	headers = append(headers, r.MultipartForm.File["file"]...)
	if len(headers) == 0 {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", ErrNoFiles.Error(), http.StatusBadRequest, nil)
		return
	}

	uploads := make([]Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			h.writeError(r.Context(), w, "VALIDATION_ERROR", "Unable to read file "+fh.Filename, http.StatusBadRequest, nil)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			h.writeError(r.Context(), w, "VALIDATION_ERROR", "Unable to read file "+fh.Filename, http.StatusBadRequest, nil)
			return
		}
		uploads = append(uploads, Upload{Filename: fh.Filename, Data: data})
	}

	res, err := h.service.IndexDocuments(r.Context(), uploads)
	if err != nil {
		var batchErr *BatchError
		if errors.As(err, &batchErr) && batchErr.OnlyFormatErrors() {
			h.writeFormatError(r.Context(), w, err.Error())
			return
		}
		slog.ErrorContext(r.Context(), "indexing failed", "error", err, "files", len(uploads))
		h.writeError(r.Context(), w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError, nil)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"data": res})
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query, limit, ok := h.searchParams(w, r, maxSearchLimit)
	if !ok {
		return
	}
	results := h.search.Search(r.Context(), query, limit)
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{"results": results},
		"meta": map[string]int{"count": len(results)},
	})
}

func (h *Handler) SearchContext(w http.ResponseWriter, r *http.Request) {
	query, limit, ok := h.searchParams(w, r, maxContextLimit)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": h.search.SearchWithContext(r.Context(), query, limit),
	})
}

func (h *Handler) searchParams(w http.ResponseWriter, r *http.Request, maxLimit int) (string, int, bool) {
	query := r.URL.Query().Get("query")
	if strings.TrimSpace(query) == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "query is required", http.StatusBadRequest, nil)
		return "", 0, false
	}
	limit := defaultSearchLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 || parsed > maxLimit {
			h.writeError(r.Context(), w, "VALIDATION_ERROR", "limit must be between 1 and "+strconv.Itoa(maxLimit), http.StatusBadRequest, nil)
			return "", 0, false
		}
		limit = parsed
	}
	return query, limit, true
}

func (h *Handler) writeFormatError(ctx context.Context, w http.ResponseWriter, message string) {
	valid := extract.ValidTypes()
	w.Header().Set("X-Error", "Formatos válidos: "+strings.Join(valid, ", "))
	h.writeError(ctx, w, "INVALID_FORMAT", message, http.StatusBadRequest, map[string]interface{}{"valid_formats": valid})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	errBody := map[string]interface{}{
		"code":    code,
		"message": sentence(message),
	}
	if details != nil {
		errBody["details"] = details
	}
	resp := map[string]interface{}{
		"error":         errBody,
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// sentence upper-cases the first letter of an error message for display.
func sentence(msg string) string {
	r, n := utf8.DecodeRuneInString(msg)
	if n == 0 {
		return msg
	}
	return string(unicode.ToUpper(r)) + msg[n:]
}
