package vector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// BatchEmbedder is implemented by embedders that accept several inputs per call.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Record is a text to store plus optional native metadata.
type Record struct {
	Text     string
	Metadata map[string]interface{}
}

// Document is a stored text returned by a similarity search.
type Document struct {
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
	Score    float32                `json:"score"`
}

// Backend is a persistent vector store.
type Backend interface {
	Name() string
	Open(ctx context.Context) error
	Add(ctx context.Context, records []Record, vectors [][]float32) error
	Search(ctx context.Context, query string, vector []float32, k int) ([]Document, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// Diagnostic describes the most recent failure swallowed by SimilaritySearch.
type Diagnostic struct {
	Error string    `json:"error"`
	At    time.Time `json:"at"`
}

// Index embeds texts and delegates storage to a Backend. The backend is
// opened on first use. Searches never fail: errors produce an empty result
// and are kept as a Diagnostic.
type Index struct {
	embedder Embedder
	backend  Backend

	mu     sync.Mutex
	opened bool

	diagMu sync.RWMutex
	diag   *Diagnostic
}

func NewIndex(e Embedder, b Backend) *Index {
	return &Index{embedder: e, backend: b}
}

func (ix *Index) BackendName() string {
	return ix.backend.Name()
}

func (ix *Index) ensureOpen(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.opened {
		return nil
	}
	if err := ix.backend.Open(ctx); err != nil {
		return fmt.Errorf("open %s vector store: %w", ix.backend.Name(), err)
	}
	ix.opened = true
	return nil
}

// Add stores texts without native metadata. An empty slice is a no-op.
func (ix *Index) Add(ctx context.Context, texts []string) error {
	records := make([]Record, len(texts))
	for i, t := range texts {
		records[i] = Record{Text: t}
	}
	return ix.AddRecords(ctx, records)
}

// AddRecords embeds and stores records in one backend call.
func (ix *Index) AddRecords(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := ix.ensureOpen(ctx); err != nil {
		return err
	}

	vectors, err := ix.embedAll(ctx, records)
	if err != nil {
		return err
	}
	if err := ix.backend.Add(ctx, records, vectors); err != nil {
		return fmt.Errorf("store vectors: %w", err)
	}
	slog.DebugContext(ctx, "vectors stored", "backend", ix.backend.Name(), "count", len(records))
	return nil
}

func (ix *Index) embedAll(ctx context.Context, records []Record) ([][]float32, error) {
	texts := make([]string, len(records))
	for i, r := range records {
		texts[i] = r.Text
	}

	if be, ok := ix.embedder.(BatchEmbedder); ok {
		vectors, err := be.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed batch: %w", err)
		}
		if len(vectors) != len(texts) {
			return nil, fmt.Errorf("embed batch: got %d vectors for %d texts", len(vectors), len(texts))
		}
		return vectors, nil
	}

	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := ix.embedder.Embed(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		vectors[i] = v
	}
	return vectors, nil
}

// SimilaritySearch returns up to k documents ordered by similarity.
func (ix *Index) SimilaritySearch(ctx context.Context, query string, k int) []Document {
	if err := ix.ensureOpen(ctx); err != nil {
		ix.record(ctx, err)
		return []Document{}
	}

	vec, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		ix.record(ctx, fmt.Errorf("embed query: %w", err))
		return []Document{}
	}

	docs, err := ix.backend.Search(ctx, query, vec, k)
	if err != nil {
		ix.record(ctx, fmt.Errorf("search: %w", err))
		return []Document{}
	}
	if docs == nil {
		docs = []Document{}
	}
	return docs
}

func (ix *Index) record(ctx context.Context, err error) {
	slog.WarnContext(ctx, "similarity search degraded to empty result", "backend", ix.backend.Name(), "error", err)
	ix.diagMu.Lock()
	ix.diag = &Diagnostic{Error: err.Error(), At: time.Now()}
	ix.diagMu.Unlock()
}

// LastError returns the last swallowed search failure, or nil.
func (ix *Index) LastError() *Diagnostic {
	ix.diagMu.RLock()
	defer ix.diagMu.RUnlock()
	if ix.diag == nil {
		return nil
	}
	d := *ix.diag
	return &d
}

func (ix *Index) Count(ctx context.Context) (int, error) {
	if err := ix.ensureOpen(ctx); err != nil {
		return 0, err
	}
	return ix.backend.Count(ctx)
}

func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if !ix.opened {
		return nil
	}
	ix.opened = false
	return ix.backend.Close()
}
