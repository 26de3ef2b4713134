package retrieval

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/JulioPeixoto/veritas/internal/text"
	"github.com/JulioPeixoto/veritas/internal/vector"
)

const (
	PDFPreviewLength     = 300
	DefaultPreviewLength = 200

	contextSeparator = "\n\n---\n\n"
	charsPerToken    = 4
)

type SearchResult struct {
	Rank          int                    `json:"rank"`
	Content       string                 `json:"content"`
	Filename      string                 `json:"filename"`
	DocumentName  string                 `json:"document_name"`
	DocumentType  string                 `json:"document_type"`
	Chunk         string                 `json:"chunk"`
	Preview       string                 `json:"preview"`
	ContentLength int                    `json:"content_length"`
	Score         float32                `json:"score"`
	Metadata      map[string]interface{} `json:"metadata"`
}

type ContextStats struct {
	TotalCharacters int `json:"total_characters"`
	EstimatedTokens int `json:"estimated_tokens"`
	ChunksIncluded  int `json:"chunks_included"`
}

// ContextResponse bundles ranked results with a prompt-ready context string.
type ContextResponse struct {
	Query          string         `json:"query"`
	FoundDocuments int            `json:"found_documents"`
	Results        []SearchResult `json:"results"`
	Context        string         `json:"context"`
	ContextStats   ContextStats   `json:"context_stats"`
}

// Searcher is the vector index as seen by the search service.
type Searcher interface {
	SimilaritySearch(ctx context.Context, query string, k int) []vector.Document
}

type Service struct {
	index  Searcher
	logger *QueryLogger
}

func NewService(index Searcher, l *QueryLogger) *Service {
	return &Service{index: index, logger: l}
}

// Search ranks stored chunks for query. A blank query yields no results.
func (s *Service) Search(ctx context.Context, query string, limit int) []SearchResult {
	return s.search(ctx, "search", query, limit)
}

func (s *Service) search(ctx context.Context, kind, query string, limit int) []SearchResult {
	if strings.TrimSpace(query) == "" {
		return []SearchResult{}
	}

	start := time.Now()
	docs := s.index.SimilaritySearch(ctx, query, limit)

	results := make([]SearchResult, 0, len(docs))
	for i, doc := range docs {
		d := text.DecodeHeader(doc.Content, text.SearchScanLines)
		meta := doc.Metadata
		if meta == nil {
			meta = map[string]interface{}{}
		}
		results = append(results, SearchResult{
			Rank:          i + 1,
			Content:       d.Content,
			Filename:      d.Filename,
			DocumentName:  d.DocumentName,
			DocumentType:  d.Type,
			Chunk:         d.Chunk,
			Preview:       Preview(d.Content, previewLength(d.Type)),
			ContentLength: utf8.RuneCountInString(d.Content),
			Score:         doc.Score,
			Metadata:      meta,
		})
	}

	if s.logger != nil {
		s.logger.Log(ctx, QueryLogEntry{
			Kind:       kind,
			Query:      query,
			Limit:      limit,
			NumResults: len(results),
			Duration:   time.Since(start),
		})
	}
	return results
}

// SearchWithContext runs Search and joins the hits into one context string.
func (s *Service) SearchWithContext(ctx context.Context, query string, limit int) ContextResponse {
	results := s.search(ctx, "context", query, limit)
	resp := ContextResponse{Query: query, Results: results}
	if len(results) == 0 {
		return resp
	}

	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = "[" + r.DocumentName + " - Chunk " + r.Chunk + "]: " + r.Content
	}
	resp.Context = strings.Join(parts, contextSeparator)
	chars := utf8.RuneCountInString(resp.Context)

	resp.FoundDocuments = len(results)
	resp.ContextStats = ContextStats{
		TotalCharacters: chars,
		EstimatedTokens: chars / charsPerToken,
		ChunksIncluded:  len(results),
	}
	return resp
}

func previewLength(docType string) int {
	if strings.EqualFold(docType, "pdf") {
		return PDFPreviewLength
	}
	return DefaultPreviewLength
}

// Preview truncates content to n runes, backing off to the last space when
// it falls in the final fifth of the window, and appends "..." when cut.
func Preview(content string, n int) string {
	runes := []rune(content)
	if len(runes) <= n {
		return content
	}
	p := string(runes[:n])
	if i := strings.LastIndex(p, " "); i >= 0 && utf8.RuneCountInString(p[:i]) > n*4/5 {
		p = p[:i]
	}
	return p + "..."
}
