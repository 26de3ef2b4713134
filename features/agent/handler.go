// Package agent serves the realtime voice agent over WebSocket.
package agent

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/JulioPeixoto/veritas/internal/middleware"
)

const speechFormat = "mp3"

var errEmptyMessage = errors.New("empty message")

// Answerer turns a user utterance into answer text.
type Answerer interface {
	Answer(ctx context.Context, prompt string) (string, error)
}

// AnswerFunc adapts a function to Answerer.
type AnswerFunc func(ctx context.Context, prompt string) (string, error)

func (f AnswerFunc) Answer(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// DirectAnswerer answers with a single generation and no retrieval.
func DirectAnswerer(g Generator) Answerer {
	return AnswerFunc(func(ctx context.Context, prompt string) (string, error) {
		return g.Generate(ctx, "", prompt)
	})
}

type Speaker interface {
	Speech(ctx context.Context, text, format string) ([]byte, error)
}

// AudioProcessor post-processes synthesised speech.
type AudioProcessor interface {
	Process(ctx context.Context, in []byte) ([]byte, error)
}

type Reply struct {
	Text        string `json:"text"`
	AudioBase64 string `json:"audio_base64"`
}

type errorReply struct {
	Error string `json:"error"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Handler struct {
	answer  Answerer
	speaker Speaker
	audio   AudioProcessor
}

// NewHandler builds the agent. audio may be nil to send speech unprocessed.
func NewHandler(answer Answerer, speaker Speaker, audio AudioProcessor) *Handler {
	return &Handler{answer: answer, speaker: speaker, audio: audio}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.ErrorContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]string{"message": "WebSocket health connected"}); err != nil {
		slog.WarnContext(r.Context(), "websocket health write failed", "error", err)
		return
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// Agent answers each text frame with {"text","audio_base64"}. Messages on a
// connection are handled one at a time.
func (h *Handler) Agent(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.ErrorContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	ctx := r.Context()
	slog.InfoContext(ctx, "agent connected", "remote", r.RemoteAddr)

	defer func() {
		conn.Close()
		slog.InfoContext(ctx, "agent disconnected", "remote", r.RemoteAddr)
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.WarnContext(ctx, "agent read error", "error", err)
			}
			return
		}

		msgCtx := middleware.WithCorrelationID(ctx, uuid.New().String())
		reply, err := h.respond(msgCtx, string(message))
		var out interface{} = reply
		if err != nil {
			slog.ErrorContext(msgCtx, "agent message failed", "error", err)
			out = errorReply{Error: err.Error()}
		}
		if err := conn.WriteJSON(out); err != nil {
			slog.WarnContext(msgCtx, "agent write failed", "error", err)
			return
		}
	}
}

func (h *Handler) respond(ctx context.Context, text string) (*Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errEmptyMessage
	}

	answer, err := h.answer.Answer(ctx, text)
	if err != nil {
		return nil, err
	}

	audio, err := h.speaker.Speech(ctx, answer, speechFormat)
	if err != nil {
		return nil, err
	}
	if h.audio != nil {
		processed, err := h.audio.Process(ctx, audio)
		if err != nil {
			// the unprocessed speech is still playable
			slog.WarnContext(ctx, "audio processing failed, sending original", "error", err)
		} else {
			audio = processed
		}
	}

	slog.InfoContext(ctx, "agent replied", "answer_chars", len(answer), "audio_bytes", len(audio))
	return &Reply{Text: answer, AudioBase64: base64.StdEncoding.EncodeToString(audio)}, nil
}
