package gemini_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/JulioPeixoto/veritas/internal/adapter/gemini"
)

func TestEmbedder_Embed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, ":embedContent"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"embedding": map[string]interface{}{
				"values": []float32{0.1, 0.2, 0.3},
			},
		})
	}))
	defer ts.Close()

	ctx := context.Background()
	embedder, err := gemini.NewEmbedder(ctx, "test-key", "", option.WithEndpoint(ts.URL))
	require.NoError(t, err)
	defer embedder.Close()

	vec, err := embedder.Embed(ctx, "hello world")
	require.NoError(t, err)
	if assert.Len(t, vec, 3) {
		assert.Equal(t, float32(0.1), vec[0])
	}
}

func TestEmbedder_MissingKey(t *testing.T) {
	_, err := gemini.NewEmbedder(context.Background(), "", "")
	assert.ErrorIs(t, err, gemini.ErrMissingAPIKey)
}

func TestGenerator_Generate(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, ":generateContent"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"candidates": []interface{}{
				map[string]interface{}{
					"content": map[string]interface{}{
						"role":  "model",
						"parts": []interface{}{map[string]interface{}{"text": "Ligue 199."}},
					},
				},
			},
		})
	}))
	defer ts.Close()

	ctx := context.Background()
	gen, err := gemini.NewGenerator(ctx, "test-key", "", option.WithEndpoint(ts.URL))
	require.NoError(t, err)
	defer gen.Close()

	out, err := gen.Generate(ctx, "Você é um assistente.", "Qual o número da defesa civil?")
	require.NoError(t, err)
	assert.Equal(t, "Ligue 199.", out)
}
