// Package serpapi queries the SerpAPI search endpoint.
package serpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const DefaultBaseURL = "https://serpapi.com/search"

var ErrMissingAPIKey = errors.New("serpapi: API key is required")

// Params describes one page request.
type Params struct {
	Engine string
	Query  string
	GL     string
	HL     string
	When   string
	Num    int
	Start  int
}

type NewsResult struct {
	Title  string `json:"title"`
	Link   string `json:"link"`
	Source struct {
		Name string `json:"name"`
	} `json:"source"`
	Date string `json:"date"`
}

type Response struct {
	NewsResults []NewsResult `json:"news_results"`
	Error       string       `json:"error,omitempty"`
}

type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

func (c *Client) Search(ctx context.Context, p Params) (*Response, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	q := url.Values{}
	q.Set("api_key", c.apiKey)
	q.Set("engine", p.Engine)
	q.Set("q", p.Query)
	q.Set("gl", p.GL)
	q.Set("hl", p.HL)
	q.Set("num", strconv.Itoa(p.Num))
	q.Set("start", strconv.Itoa(p.Start))
	if p.When != "" {
		q.Set("when", p.When)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf("serpapi error (status %d): %s", res.StatusCode, string(body))
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	// an empty page comes back as 200 with an "error" field; callers treat it as end of results
	return &out, nil
}
