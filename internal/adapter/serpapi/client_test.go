package serpapi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JulioPeixoto/veritas/internal/adapter/serpapi"
)

func TestClient_Search(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "key", q.Get("api_key"))
		assert.Equal(t, "google_news", q.Get("engine"))
		assert.Equal(t, "clima aracaju", q.Get("q"))
		assert.Equal(t, "br", q.Get("gl"))
		assert.Equal(t, "pt", q.Get("hl"))
		assert.Equal(t, "10", q.Get("num"))
		assert.Equal(t, "20", q.Get("start"))
		assert.Equal(t, "7d", q.Get("when"))
		w.Write([]byte(`{"news_results":[{"title":"Chuva","link":"https://g1.globo.com/a"}]}`))
	}))
	defer ts.Close()

	c := serpapi.NewClient("key", ts.URL)
	res, err := c.Search(context.Background(), serpapi.Params{
		Engine: "google_news", Query: "clima aracaju", GL: "br", HL: "pt", When: "7d", Num: 10, Start: 20,
	})
	require.NoError(t, err)
	require.Len(t, res.NewsResults, 1)
	assert.Equal(t, "https://g1.globo.com/a", res.NewsResults[0].Link)
}

func TestClient_SearchOmitsEmptyWhen(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := r.URL.Query()["when"]
		assert.False(t, ok)
		w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	res, err := serpapi.NewClient("key", ts.URL).Search(context.Background(), serpapi.Params{Query: "x", Num: 1})
	require.NoError(t, err)
	assert.Empty(t, res.NewsResults)
}

func TestClient_SearchStatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Invalid API key"}`, http.StatusUnauthorized)
	}))
	defer ts.Close()

	_, err := serpapi.NewClient("bad", ts.URL).Search(context.Background(), serpapi.Params{Query: "x", Num: 1})
	assert.ErrorContains(t, err, "401")
}

func TestClient_MissingKey(t *testing.T) {
	_, err := serpapi.NewClient("", "").Search(context.Background(), serpapi.Params{Query: "x"})
	assert.ErrorIs(t, err, serpapi.ErrMissingAPIKey)
}
