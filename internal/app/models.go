package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/JulioPeixoto/veritas/internal/adapter/gemini"
	"github.com/JulioPeixoto/veritas/internal/adapter/openai"
	"github.com/JulioPeixoto/veritas/internal/config"
	"github.com/JulioPeixoto/veritas/internal/vector"
)

var errSpeechUnavailable = errors.New("speech synthesis requires OPENAI_API_KEY")

type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

type Speaker interface {
	Speech(ctx context.Context, text, format string) ([]byte, error)
}

// Models are the model-backed clients selected by configuration.
type Models struct {
	Embedder  vector.Embedder
	Generator Generator
	Speaker   Speaker

	closers []func() error
}

func NewModels(ctx context.Context, cfg *config.Config) (*Models, error) {
	m := &Models{}

	var oa *openai.Client
	if cfg.OpenAIAPIKey != "" {
		c, err := openai.NewClient(openai.Config{
			APIKey:         cfg.OpenAIAPIKey,
			BaseURL:        cfg.OpenAIBaseURL,
			ChatModel:      cfg.OpenAIChatModel,
			EmbeddingModel: cfg.OpenAIEmbeddingModel,
			TTSModel:       cfg.OpenAITTSModel,
			Voice:          cfg.OpenAITTSVoice,
		})
		if err != nil {
			return nil, fmt.Errorf("openai client: %w", err)
		}
		oa = c
		m.Speaker = c
	} else {
		m.Speaker = unavailableSpeaker{}
	}

	switch cfg.EmbeddingProvider {
	case config.ProviderGemini:
		e, err := gemini.NewEmbedder(ctx, cfg.GeminiAPIKey, cfg.GeminiEmbeddingModel)
		if err != nil {
			return nil, fmt.Errorf("gemini embedder: %w", err)
		}
		m.Embedder = e
		m.closers = append(m.closers, e.Close)
	default:
		if oa == nil {
			return nil, fmt.Errorf("%w: OPENAI_API_KEY", config.ErrMissingRequired)
		}
		m.Embedder = oa
	}

	switch cfg.LLMProvider {
	case config.ProviderGemini:
		g, err := gemini.NewGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiChatModel)
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("gemini generator: %w", err)
		}
		m.Generator = g
		m.closers = append(m.closers, g.Close)
	default:
		if oa == nil {
			m.Close()
			return nil, fmt.Errorf("%w: OPENAI_API_KEY", config.ErrMissingRequired)
		}
		m.Generator = oa
	}

	slog.Info("models configured", "embedding_provider", cfg.EmbeddingProvider, "llm_provider", cfg.LLMProvider)
	return m, nil
}

func (m *Models) Close() {
	for _, c := range m.closers {
		if err := c(); err != nil {
			slog.Warn("failed to close model client", "error", err)
		}
	}
}

type unavailableSpeaker struct{}

func (unavailableSpeaker) Speech(context.Context, string, string) ([]byte, error) {
	return nil, errSpeechUnavailable
}
