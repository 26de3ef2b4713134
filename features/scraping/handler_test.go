package scraping

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/JulioPeixoto/veritas/internal/adapter/serpapi"
	"github.com/JulioPeixoto/veritas/internal/config"
	"github.com/JulioPeixoto/veritas/internal/middleware"
	"github.com/JulioPeixoto/veritas/internal/worker"
)

type MockPublisher struct{ mock.Mock }

func (m *MockPublisher) Publish(topic string, body []byte) error {
	return m.Called(topic, body).Error(0)
}

func TestHandler_SearchLinks(t *testing.T) {
	search := new(MockLinkSearcher)
	search.On("Search", mock.Anything, mock.Anything).Return(page("a", 2), nil)
	h := NewHandler(newTestService(t, search), nil)

	w := httptest.NewRecorder()
	h.SearchLinks(w, httptest.NewRequest(http.MethodPost, "/api/v1/scraping/urls?query=chuva&limit=2&when=1d", nil))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"total_links":2`)
	assert.Equal(t, "1d", search.Calls[0].Arguments.Get(1).(serpapi.Params).When)
}

func TestHandler_SearchLinksErrors(t *testing.T) {
	search := new(MockLinkSearcher)
	search.On("Search", mock.Anything, mock.Anything).Return(page("a", 0), nil)
	h := NewHandler(newTestService(t, search), nil)

	tests := []struct {
		target string
		status int
	}{
		{"/urls?limit=5", http.StatusBadRequest},
		{"/urls?query=x&limit=abc", http.StatusBadRequest},
		{"/urls?query=x&limit=500", http.StatusBadRequest},
		{"/urls?query=x", http.StatusNotFound},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		h.SearchLinks(w, httptest.NewRequest(http.MethodPost, tt.target, nil))
		assert.Equal(t, tt.status, w.Code, tt.target)
	}
}

func TestHandler_ETLAsync(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Publish", config.TopicScrapingETL, mock.MatchedBy(func(b []byte) bool {
		var task worker.ETLTask
		return json.Unmarshal(b, &task) == nil && task.Filename == "links_a.csv" && task.CorrelationID == "req-1"
	})).Return(nil)
	h := NewHandler(newTestService(t, nil), pub)

	req := httptest.NewRequest(http.MethodPost, "/etl?filename=links_a.csv&async=true", nil)
	req = req.WithContext(middleware.WithCorrelationID(context.Background(), "req-1"))
	w := httptest.NewRecorder()
	h.ETL(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), `"queued":true`)
	pub.AssertExpectations(t)
}

func TestHandler_ETLAsyncQueueDisabled(t *testing.T) {
	h := NewHandler(newTestService(t, nil), nil)

	w := httptest.NewRecorder()
	h.ETL(w, httptest.NewRequest(http.MethodPost, "/etl?filename=links_a.csv&async=true", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "SERVICE_UNAVAILABLE")
}

func TestHandler_ETLAsyncPublishFailure(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).Return(errors.New("nsqd unreachable"))
	h := NewHandler(newTestService(t, nil), pub)

	w := httptest.NewRecorder()
	h.ETL(w, httptest.NewRequest(http.MethodPost, "/etl?filename=links_a.csv&async=true", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHandler_ETLSync(t *testing.T) {
	svc := newTestService(t, nil)
	writeLinks(t, svc.opts.DataDir, "links_a.csv")
	h := NewHandler(svc, nil)

	w := httptest.NewRecorder()
	h.ETL(w, httptest.NewRequest(http.MethodPost, "/etl?filename=links_a.csv", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"processed":0`)

	w = httptest.NewRecorder()
	h.ETL(w, httptest.NewRequest(http.MethodPost, "/etl?filename=links_b.csv", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	h.ETL(w, httptest.NewRequest(http.MethodPost, "/etl?filename=../x.csv", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_ETLSyncIgnoresClientDisconnect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><head><title>Aviso</title></head><body><p>Sirenes testadas.</p></body></html>`))
	}))
	defer srv.Close()

	svc := newTestService(t, nil)
	writeLinks(t, svc.opts.DataDir, "links_aviso.csv", srv.URL+"/a")
	h := NewHandler(svc, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/etl?filename=links_aviso.csv", nil).WithContext(ctx)

	w := httptest.NewRecorder()
	h.ETL(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"written":1`)
}

func TestHandler_Files(t *testing.T) {
	svc := newTestService(t, nil)
	require.NoError(t, os.WriteFile(filepath.Join(svc.opts.DataDir, "links_a.csv"), []byte("link\n"), 0o600))
	h := NewHandler(svc, nil)

	w := httptest.NewRecorder()
	h.ListFiles(w, httptest.NewRequest(http.MethodGet, "/files", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)

	w = httptest.NewRecorder()
	h.ListFiles(w, httptest.NewRequest(http.MethodGet, "/files?kind=x", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	h.DeleteFile(w, httptest.NewRequest(http.MethodDelete, "/files?kind=links&filename=links_a.csv", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"deleted":"links_a.csv"`)

	w = httptest.NewRecorder()
	h.DeleteFile(w, httptest.NewRequest(http.MethodDelete, "/files?kind=links&filename=links_a.csv", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
