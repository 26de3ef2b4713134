// Package catalog records which documents have been indexed.
package catalog

import (
	"context"
	"time"
)

type Document struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	DocumentName string    `json:"document_name"`
	FileType     string    `json:"file_type"`
	Chunks       int       `json:"chunks"`
	Characters   int       `json:"characters"`
	ChunkSize    int       `json:"chunk_size"`
	CreatedAt    time.Time `json:"created_at"`
}

type Repository interface {
	Save(ctx context.Context, doc *Document) error
	List(ctx context.Context) ([]Document, error)
	Count(ctx context.Context) (int, error)
}

// NoopRepo is used when no database is configured.
type NoopRepo struct{}

func (NoopRepo) Save(context.Context, *Document) error    { return nil }
func (NoopRepo) List(context.Context) ([]Document, error) { return []Document{}, nil }
func (NoopRepo) Count(context.Context) (int, error)       { return 0, nil }
