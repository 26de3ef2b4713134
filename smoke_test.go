package main

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JulioPeixoto/veritas/internal/config"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestSmoke_Startup(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping smoke test in short mode")
	}

	models := httptest.NewServer(http.NotFoundHandler())
	defer models.Close()

	dir := t.TempDir()
	cfg := &config.Config{
		ServerPort:        freePort(t),
		LogLevel:          "error",
		QueryLogPath:      filepath.Join(dir, "logs", "query.log"),
		MaxUploadSizeMB:   1,
		DataDir:           filepath.Join(dir, "data"),
		VectorBackend:     config.BackendSQLite,
		PathDBFile:        filepath.Join(dir, "vec.db"),
		LLMProvider:       config.ProviderOpenAI,
		EmbeddingProvider: config.ProviderOpenAI,
		OpenAIAPIKey:      "sk-test",
		OpenAIBaseURL:     models.URL,
	}
	setupLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg) }()

	base := "http://127.0.0.1:" + strconv.Itoa(cfg.ServerPort)
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/health")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 10*time.Second, 100*time.Millisecond)

	resp, err := http.Get(base + "/api/v1/stats")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("server did not shut down")
	}
}
