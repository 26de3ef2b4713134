// Package openai talks to the OpenAI REST API for embeddings, chat
// completions and speech synthesis.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL        = "https://api.openai.com/v1"
	DefaultChatModel      = "gpt-4o-mini"
	DefaultEmbeddingModel = "text-embedding-3-small"
	DefaultTTSModel       = "gpt-4o-mini-tts"
	DefaultVoice          = "alloy"
	DefaultTimeout        = 120 * time.Second
)

var ErrMissingAPIKey = errors.New("openai: API key is required")

type Config struct {
	APIKey         string
	BaseURL        string
	ChatModel      string
	EmbeddingModel string
	TTSModel       string
	Voice          string
	Timeout        time.Duration
}

type Client struct {
	http           *http.Client
	baseURL        string
	apiKey         string
	chatModel      string
	embeddingModel string
	ttsModel       string
	voice          string
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultChatModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.TTSModel == "" {
		cfg.TTSModel = DefaultTTSModel
	}
	if cfg.Voice == "" {
		cfg.Voice = DefaultVoice
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		http:           &http.Client{Timeout: cfg.Timeout},
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:         cfg.APIKey,
		chatModel:      cfg.ChatModel,
		embeddingModel: cfg.EmbeddingModel,
		ttsModel:       cfg.TTSModel,
		voice:          cfg.Voice,
	}, nil
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *apiError `json:"error,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type speechRequest struct {
	Model          string `json:"model"`
	Voice          string `json:"voice"`
	Input          string `json:"input"`
	ResponseFormat string `json:"response_format,omitempty"`
}

func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || vectors[0] == nil {
		return nil, errors.New("openai: no embedding returned")
	}
	return vectors[0], nil
}

// Embedding request bounds. The API rejects more than 2048 inputs per call
// and caps the total tokens of a request.
const (
	MaxBatchInputs = 1000
	MaxBatchChars  = 400_000
)

// EmbedBatch returns one vector per input, in input order. Inputs are sent
// in requests of at most MaxBatchInputs texts and MaxBatchChars characters.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for _, batch := range embeddingBatches(texts, MaxBatchInputs, MaxBatchChars) {
		part, err := c.embed(ctx, batch)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, part...)
	}
	return vectors, nil
}

func (c *Client) embed(ctx context.Context, texts []string) ([][]float32, error) {
	var resp embeddingResponse
	if err := c.postJSON(ctx, "/embeddings", embeddingRequest{Model: c.embeddingModel, Input: texts}, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("openai error: %s", resp.Error.Message)
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("openai: embedding index %d out of range", d.Index)
		}
		v := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			v[i] = float32(f)
		}
		vectors[d.Index] = v
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("openai: no embedding returned for input %d", i)
		}
	}
	return vectors, nil
}

// embeddingBatches splits texts into consecutive groups bounded by count and
// total length. A single text longer than maxChars gets a batch of its own.
func embeddingBatches(texts []string, maxInputs, maxChars int) [][]string {
	var batches [][]string
	start, chars := 0, 0
	for i, t := range texts {
		n := len(t)
		if i > start && (i-start >= maxInputs || chars+n > maxChars) {
			batches = append(batches, texts[start:i])
			start, chars = i, 0
		}
		chars += n
	}
	return append(batches, texts[start:])
}

// Generate runs one chat completion. An empty system prompt sends only the
// user message.
func (c *Client) Generate(ctx context.Context, system, user string) (string, error) {
	var messages []chatMessage
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: user})

	start := time.Now()
	var resp chatCompletionResponse
	if err := c.postJSON(ctx, "/chat/completions", chatCompletionRequest{Model: c.chatModel, Messages: messages}, &resp); err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", fmt.Errorf("openai error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices returned")
	}
	slog.DebugContext(ctx, "chat completion finished", "model", c.chatModel, "duration_ms", time.Since(start).Milliseconds())
	return resp.Choices[0].Message.Content, nil
}

// Speech synthesises text and returns the encoded audio (mp3 unless format
// says otherwise).
func (c *Client) Speech(ctx context.Context, text, format string) ([]byte, error) {
	body, err := json.Marshal(speechRequest{Model: c.ttsModel, Voice: c.voice, Input: text, ResponseFormat: format})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	res, err := c.do(ctx, "/audio/speech", body)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	audio, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openai error (status %d): %s", res.StatusCode, string(audio))
	}
	return audio, nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	res, err := c.do(ctx, path, body)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		if res.StatusCode != http.StatusOK {
			return fmt.Errorf("openai error (status %d): %s", res.StatusCode, string(raw))
		}
		return fmt.Errorf("decode response: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		var wrapped struct {
			Error *apiError `json:"error"`
		}
		if json.Unmarshal(raw, &wrapped) == nil && wrapped.Error != nil {
			return fmt.Errorf("openai error (status %d): %s", res.StatusCode, wrapped.Error.Message)
		}
		return fmt.Errorf("openai error (status %d): %s", res.StatusCode, string(raw))
	}
	return nil
}

func (c *Client) do(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	return res, nil
}
