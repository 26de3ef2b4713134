package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JulioPeixoto/veritas/internal/config"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("DB_HOST", "test-host")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "test-host", cfg.DBHost)
	assert.True(t, cfg.CatalogEnabled())
	assert.Equal(t, "./vec.db", cfg.PathDBFile)
	assert.Equal(t, config.BackendSQLite, cfg.VectorBackend)
	assert.Equal(t, 20, cfg.ScrapeTimeoutSeconds)
	assert.Equal(t, 200, cfg.ScrapeDelayMs)
	assert.Equal(t, "alloy", cfg.OpenAITTSVoice)
}

func TestLoadConfig_FromEnvFile(t *testing.T) {
	content := []byte("OPENAI_API_KEY=from-file\nDATA_DIR=loaded-from-file")
	err := os.WriteFile(".env", content, 0o600)
	require.NoError(t, err)
	defer os.Remove(".env")
	t.Cleanup(func() {
		os.Unsetenv("OPENAI_API_KEY")
		os.Unsetenv("DATA_DIR")
	})

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "loaded-from-file", cfg.DataDir)
	assert.Equal(t, "from-file", cfg.OpenAIAPIKey)
}

func TestLoadConfig_ProvidersAreLowercased(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "Gemini")
	t.Setenv("EMBEDDING_PROVIDER", "GEMINI")
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("VECTOR_BACKEND", "Weaviate")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, config.ProviderGemini, cfg.LLMProvider)
	assert.Equal(t, config.ProviderGemini, cfg.EmbeddingProvider)
	assert.Equal(t, config.BackendWeaviate, cfg.VectorBackend)
}

func TestLoadScraping_SkipsModelKeys(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := config.LoadScraping()
	require.NoError(t, err)
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "data/scraping/search", cfg.ScrapedDir())
}
