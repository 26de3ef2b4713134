// Package scraping harvests news links and extracts article text into CSV files.
package scraping

import (
	"context"
	"crypto/sha1"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"github.com/JulioPeixoto/veritas/internal/adapter/serpapi"
)

const (
	DefaultLinkLimit = 10
	MaxLinkLimit     = 100
	pageSize         = 10

	timestampLayout = "20060102_150405"
	maxPageBytes    = 10 << 20
)

var (
	ErrInvalidQuery    = errors.New("query inválida")
	ErrInvalidLimit    = errors.New("limit inválido")
	ErrInvalidFilename = errors.New("filename inválido")
	ErrInvalidKind     = errors.New("kind inválido")
	ErrNotFound        = errors.New("arquivo não encontrado")
	ErrNoLinks         = errors.New("nenhum link encontrado")
)

// IsPermanent reports errors that a retry of the same request cannot fix.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrInvalidFilename) || errors.Is(err, ErrNotFound)
}

type LinkSearcher interface {
	Search(ctx context.Context, p serpapi.Params) (*serpapi.Response, error)
}

type LinkQuery struct {
	Query  string
	Limit  int
	GL     string
	HL     string
	Engine string
	When   string
}

type LinksResult struct {
	Filename   string `json:"filename"`
	TotalLinks int    `json:"total_links"`
	Path       string `json:"path"`
}

type ETLResult struct {
	Filename  string `json:"filename"`
	Processed int    `json:"processed"`
	Written   int    `json:"written"`
	Skipped   int    `json:"skipped"`
	OutputDir string `json:"output_dir"`
}

type Options struct {
	DataDir   string
	OutDir    string
	UserAgent string
	Timeout   time.Duration
	Delay     time.Duration
}

type Service struct {
	search LinkSearcher
	client *http.Client
	opts   Options
	now    func() time.Time
}

func NewService(search LinkSearcher, client *http.Client, opts Options) *Service {
	if client == nil {
		client = &http.Client{}
	}
	if opts.OutDir == "" {
		opts.OutDir = filepath.Join(opts.DataDir, "scraping", "search")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	return &Service{search: search, client: client, opts: opts, now: time.Now}
}

func (s *Service) OutputDir() string { return s.opts.OutDir }

// SearchLinks pages through news results until limit links are collected
// and writes them to a links CSV in the data directory.
func (s *Service) SearchLinks(ctx context.Context, q LinkQuery) (*LinksResult, error) {
	if strings.TrimSpace(q.Query) == "" {
		return nil, ErrInvalidQuery
	}
	if q.Limit < 1 || q.Limit > MaxLinkLimit {
		return nil, ErrInvalidLimit
	}
	if q.GL == "" {
		q.GL = "br"
	}
	if q.HL == "" {
		q.HL = "pt"
	}
	if q.Engine == "" {
		q.Engine = "google_news"
	}

	params := serpapi.Params{
		Engine: q.Engine,
		Query:  q.Query,
		GL:     q.GL,
		HL:     q.HL,
		When:   q.When,
		Num:    min(pageSize, q.Limit),
		Start:  0,
	}

	links := make([]string, 0, q.Limit)
	for len(links) < q.Limit {
		resp, err := s.search.Search(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("search links: %w", err)
		}
		news := resp.NewsResults
		if len(news) == 0 {
			break
		}
		for _, n := range news {
			if len(links) >= q.Limit {
				break
			}
			if n.Link != "" {
				links = append(links, n.Link)
			}
		}
		if len(news) < params.Num {
			break
		}
		params.Start += params.Num
		params.Num = min(pageSize, q.Limit-len(links))
	}

	if len(links) == 0 {
		return nil, ErrNoLinks
	}

	filename := fmt.Sprintf("links_%s_%s.csv", Slug(q.Query), s.now().Format(timestampLayout))
	if err := os.MkdirAll(s.opts.DataDir, 0o750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	path := filepath.Join(s.opts.DataDir, filename)
	rows := make([][]string, 0, len(links)+1)
	rows = append(rows, []string{"link"})
	for _, l := range links {
		rows = append(rows, []string{l})
	}
	if err := writeCSV(path, rows, os.O_TRUNC); err != nil {
		return nil, fmt.Errorf("save links: %w", err)
	}

	slog.InfoContext(ctx, "links saved", "query", q.Query, "links", len(links), "file", filename)
	return &LinksResult{Filename: filename, TotalLinks: len(links), Path: path}, nil
}

// ETL fetches every link of a links CSV, one at a time, and writes one CSV
// per distinct article. Fetch and extraction failures skip the link.
func (s *Service) ETL(ctx context.Context, filename string) (*ETLResult, error) {
	if !validFilename(filename) {
		return nil, ErrInvalidFilename
	}
	path := filepath.Join(s.opts.DataDir, filename)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("stat %s: %w", filename, err)
	}
	if err := os.MkdirAll(s.opts.OutDir, 0o750); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	res := &ETLResult{Filename: filename, OutputDir: s.opts.OutDir}
	rowCount, links, err := readLinks(path)
	if err != nil {
		slog.WarnContext(ctx, "unreadable links file", "file", filename, "error", err)
		return res, nil
	}
	res.Processed = rowCount

	limiter := rate.NewLimiter(rate.Inf, 1)
	if s.opts.Delay > 0 {
		limiter = rate.NewLimiter(rate.Every(s.opts.Delay), 1)
	}

	seen := make(map[string]bool)
	for _, link := range links {
		if err := limiter.Wait(ctx); err != nil {
			return res, err
		}
		if s.processLink(ctx, link, seen) {
			res.Written++
		}
	}
	res.Skipped = res.Processed - res.Written

	slog.InfoContext(ctx, "etl finished", "file", filename, "processed", res.Processed, "written", res.Written)
	return res, nil
}

// RunETL adapts ETL for queue consumers.
func (s *Service) RunETL(ctx context.Context, filename string) (int, int, error) {
	res, err := s.ETL(ctx, filename)
	if err != nil {
		return 0, 0, err
	}
	return res.Processed, res.Written, nil
}

func (s *Service) processLink(ctx context.Context, link string, seen map[string]bool) bool {
	art, err := s.fetch(ctx, link)
	if err != nil {
		slog.DebugContext(ctx, "link skipped", "url", link, "error", err)
		return false
	}

	title := art.Title
	if title == "" {
		sum := sha1.Sum([]byte(link))
		title = "artigo_" + hex.EncodeToString(sum[:])[:10]
	}
	key := strings.ToLower(strings.TrimSpace(title))
	if seen[key] {
		return false
	}
	content := strings.TrimSpace(art.Content)
	if content == "" {
		return false
	}

	out, err := s.saveArticle(title, link, content)
	if err != nil {
		slog.WarnContext(ctx, "failed to write article", "url", link, "error", err)
		return false
	}
	seen[key] = true
	slog.DebugContext(ctx, "article saved", "url", link, "file", out)
	return true
}

func (s *Service) fetch(ctx context.Context, link string) (article, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return article{}, err
	}
	if s.opts.UserAgent != "" {
		req.Header.Set("User-Agent", s.opts.UserAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return article{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return article{}, fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := charset.NewReader(io.LimitReader(resp.Body, maxPageBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return article{}, err
	}
	return parseArticle(body)
}

func (s *Service) saveArticle(title, link, content string) (string, error) {
	base := SanitizeFilename(title) + "_" + s.now().Format(timestampLayout)
	rows := [][]string{
		{"title", "url", "content"},
		{title, link, strings.TrimSpace(strings.ReplaceAll(content, "\n", " "))},
	}

	name := base + ".csv"
	for n := 2; ; n++ {
		err := writeCSV(filepath.Join(s.opts.OutDir, name), rows, os.O_EXCL)
		if err == nil {
			return name, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", err
		}
		name = fmt.Sprintf("%s_%d.csv", base, n)
	}
}

// readLinks returns the number of data rows and the non-empty links.
func readLinks(path string) (int, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil, nil
		}
		return 0, nil, err
	}
	col := -1
	for i, h := range header {
		if strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) == "link" {
			col = i
		}
	}

	var (
		rows  int
		links []string
	)
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, nil, err
		}
		rows++
		if col >= 0 && col < len(rec) && strings.TrimSpace(rec[col]) != "" {
			links = append(links, strings.TrimSpace(rec[col]))
		}
	}
	return rows, links, nil
}

func writeCSV(path string, rows [][]string, mode int) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|mode, 0o640)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
