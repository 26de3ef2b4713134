package scraping

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const (
	KindLinks   = "links"
	KindScraped = "scraped"
	KindAll     = "all"
)

type FileItem struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	Modified string `json:"modified"`
	Path     string `json:"path"`
}

type FileList struct {
	Links   []FileItem `json:"links"`
	Scraped []FileItem `json:"scraped"`
}

type DeleteResult struct {
	Deleted string `json:"deleted"`
	Kind    string `json:"kind"`
}

// ListFiles lists links CSVs, scraped article CSVs or both, sorted by name.
func (s *Service) ListFiles(kind string) (*FileList, error) {
	if kind != KindLinks && kind != KindScraped && kind != KindAll {
		return nil, ErrInvalidKind
	}

	out := &FileList{Links: []FileItem{}, Scraped: []FileItem{}}
	var err error
	if kind == KindLinks || kind == KindAll {
		if out.Links, err = listCSV(filepath.Join(s.opts.DataDir, "links_*.csv")); err != nil {
			return nil, err
		}
	}
	if kind == KindScraped || kind == KindAll {
		if out.Scraped, err = listCSV(filepath.Join(s.opts.OutDir, "*.csv")); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DeleteFile removes one file. Kind and filename are validated before the
// filesystem is touched.
func (s *Service) DeleteFile(kind, filename string) (*DeleteResult, error) {
	var dir string
	switch kind {
	case KindLinks:
		dir = s.opts.DataDir
	case KindScraped:
		dir = s.opts.OutDir
	default:
		return nil, ErrInvalidKind
	}
	if !validFilename(filename) {
		return nil, ErrInvalidFilename
	}

	if err := os.Remove(filepath.Join(dir, filename)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("delete %s: %w", filename, err)
	}
	return &DeleteResult{Deleted: filename, Kind: kind}, nil
}

// CountFiles returns the number of links and scraped files.
func (s *Service) CountFiles() (links, scraped int, err error) {
	l, err := s.ListFiles(KindAll)
	if err != nil {
		return 0, 0, err
	}
	return len(l.Links), len(l.Scraped), nil
}

func listCSV(pattern string) ([]FileItem, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	items := make([]FileItem, 0, len(matches))
	for _, p := range matches {
		st, err := os.Stat(p)
		if err != nil || st.IsDir() {
			continue
		}
		items = append(items, FileItem{
			Name:     filepath.Base(p),
			Size:     st.Size(),
			Modified: st.ModTime().Format(time.RFC3339),
			Path:     p,
		})
	}
	return items, nil
}
