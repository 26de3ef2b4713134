// Package chat answers questions from the indexed documents.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/JulioPeixoto/veritas/internal/retrieval"
)

const contextLimit = 5

var ErrEmptyPrompt = errors.New("prompt is required")

type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

type Retriever interface {
	SearchWithContext(ctx context.Context, query string, limit int) retrieval.ContextResponse
}

type DocumentContext struct {
	Content        string  `json:"content"`
	Filename       string  `json:"filename"`
	DocumentName   string  `json:"document_name"`
	Chunk          string  `json:"chunk"`
	RelevanceScore float64 `json:"relevance_score"`
}

type Response struct {
	Output               string            `json:"output"`
	Timestamp            time.Time         `json:"timestamp"`
	ContextUsed          []DocumentContext `json:"context_used"`
	TotalTokensEstimated int               `json:"total_tokens_estimated"`
	ExpandedQuery        string            `json:"expanded_query"`
}

type Service struct {
	gen     Generator
	search  Retriever
	prompts Prompts
	now     func() time.Time
}

func NewService(gen Generator, search Retriever, prompts Prompts) *Service {
	return &Service{gen: gen, search: search, prompts: prompts, now: time.Now}
}

// Chat expands the prompt, retrieves context and generates an answer. When
// neither the expanded nor the raw prompt finds context the generator is not
// called and the fixed no-context answer is returned.
func (s *Service) Chat(ctx context.Context, prompt string) (*Response, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	requestedAt := s.now()

	expanded := s.expand(ctx, prompt)

	found := s.search.SearchWithContext(ctx, expanded, contextLimit)
	if len(found.Results) == 0 {
		slog.InfoContext(ctx, "expanded query found nothing, retrying with prompt", "expanded_query", expanded)
		found = s.search.SearchWithContext(ctx, prompt, contextLimit)
	}

	used := make([]DocumentContext, 0, len(found.Results))
	for _, r := range found.Results {
		used = append(used, DocumentContext{
			Content:        r.Content,
			Filename:       r.Filename,
			DocumentName:   r.DocumentName,
			Chunk:          r.Chunk,
			RelevanceScore: 1.0 / float64(r.Rank),
		})
	}

	resp := &Response{
		Timestamp:     requestedAt,
		ContextUsed:   used,
		ExpandedQuery: expanded,
	}

	if found.Context == "" {
		resp.Output = s.prompts.NoContext
		return resp, nil
	}

	fullPrompt := s.prompts.System + "\n\n" + s.prompts.userMessage(found.Context, prompt)
	output, err := s.gen.Generate(ctx, "", fullPrompt)
	if err != nil {
		return nil, fmt.Errorf("erro no processamento: %w", err)
	}

	resp.Output = output
	resp.TotalTokensEstimated = len(strings.Fields(fullPrompt)) + len(strings.Fields(output))
	slog.InfoContext(ctx, "chat answered", "context_chunks", len(used), "tokens_estimated", resp.TotalTokensEstimated)
	return resp, nil
}

func (s *Service) expand(ctx context.Context, prompt string) string {
	out, err := s.gen.Generate(ctx, "", s.prompts.expansion(prompt))
	if err != nil {
		slog.WarnContext(ctx, "query expansion failed, using prompt", "error", err)
		return prompt
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return prompt
	}
	return out
}

// Answer returns only the generated text. It lets the voice agent answer
// through retrieval.
func (s *Service) Answer(ctx context.Context, prompt string) (string, error) {
	resp, err := s.Chat(ctx, prompt)
	if err != nil {
		return "", err
	}
	return resp.Output, nil
}
