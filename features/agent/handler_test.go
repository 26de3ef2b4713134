package agent

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAnswerer struct{ mock.Mock }

func (m *MockAnswerer) Answer(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

type MockSpeaker struct{ mock.Mock }

func (m *MockSpeaker) Speech(ctx context.Context, text, format string) ([]byte, error) {
	args := m.Called(ctx, text, format)
	if b := args.Get(0); b != nil {
		return b.([]byte), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockAudio struct{ mock.Mock }

func (m *MockAudio) Process(ctx context.Context, in []byte) ([]byte, error) {
	args := m.Called(ctx, in)
	if b := args.Get(0); b != nil {
		return b.([]byte), args.Error(1)
	}
	return nil, args.Error(1)
}

func dial(t *testing.T, h http.HandlerFunc) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func TestHealth(t *testing.T) {
	conn := dial(t, NewHandler(nil, nil, nil).Health)

	var msg map[string]string
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "WebSocket health connected", msg["message"])

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func TestAgent_Replies(t *testing.T) {
	answer := new(MockAnswerer)
	answer.On("Answer", mock.Anything, "vai chover hoje?").Return("Sim, leve guarda-chuva.", nil)
	speaker := new(MockSpeaker)
	speaker.On("Speech", mock.Anything, "Sim, leve guarda-chuva.", "mp3").Return([]byte("mp3-bytes"), nil)
	audio := new(MockAudio)
	audio.On("Process", mock.Anything, []byte("mp3-bytes")).Return([]byte("opus-bytes"), nil)

	conn := dial(t, NewHandler(answer, speaker, audio).Agent)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("vai chover hoje?")))
	var reply Reply
	require.NoError(t, conn.ReadJSON(&reply))

	assert.Equal(t, "Sim, leve guarda-chuva.", reply.Text)
	raw, err := base64.StdEncoding.DecodeString(reply.AudioBase64)
	require.NoError(t, err)
	assert.Equal(t, "opus-bytes", string(raw))
}

func TestAgent_ErrorKeepsConnectionOpen(t *testing.T) {
	answer := new(MockAnswerer)
	answer.On("Answer", mock.Anything, "primeira").Return("", errors.New("model unavailable")).Once()
	answer.On("Answer", mock.Anything, "segunda").Return("ok", nil).Once()
	speaker := new(MockSpeaker)
	speaker.On("Speech", mock.Anything, "ok", "mp3").Return([]byte("a"), nil)

	conn := dial(t, NewHandler(answer, speaker, nil).Agent)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("primeira")))
	var failed map[string]string
	require.NoError(t, conn.ReadJSON(&failed))
	assert.Equal(t, "model unavailable", failed["error"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("segunda")))
	var reply Reply
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "ok", reply.Text)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("a")), reply.AudioBase64)
}

func TestAgent_AudioFailureSendsOriginal(t *testing.T) {
	answer := new(MockAnswerer)
	answer.On("Answer", mock.Anything, "oi").Return("olá", nil)
	speaker := new(MockSpeaker)
	speaker.On("Speech", mock.Anything, "olá", "mp3").Return([]byte("mp3"), nil)
	audio := new(MockAudio)
	audio.On("Process", mock.Anything, mock.Anything).Return(nil, errors.New("ffmpeg not found"))

	conn := dial(t, NewHandler(answer, speaker, audio).Agent)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("oi")))
	var reply Reply
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("mp3")), reply.AudioBase64)
}

func TestAgent_EmptyMessage(t *testing.T) {
	conn := dial(t, NewHandler(new(MockAnswerer), new(MockSpeaker), nil).Agent)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("   ")))
	var failed map[string]string
	require.NoError(t, conn.ReadJSON(&failed))
	assert.Equal(t, "empty message", failed["error"])
}

type stubGenerator struct{ system, user string }

func (g *stubGenerator) Generate(_ context.Context, system, user string) (string, error) {
	g.system, g.user = system, user
	return "resposta", nil
}

func TestDirectAnswerer(t *testing.T) {
	g := &stubGenerator{}
	out, err := DirectAnswerer(g).Answer(context.Background(), "pergunta")
	require.NoError(t, err)
	assert.Equal(t, "resposta", out)
	assert.Equal(t, "pergunta", g.user)
	assert.Empty(t, g.system)
}
