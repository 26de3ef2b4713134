// Package store indexes uploaded documents into the vector index.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/JulioPeixoto/veritas/features/catalog"
	"github.com/JulioPeixoto/veritas/internal/config"
	"github.com/JulioPeixoto/veritas/internal/extract"
	"github.com/JulioPeixoto/veritas/internal/middleware"
	"github.com/JulioPeixoto/veritas/internal/text"
	"github.com/JulioPeixoto/veritas/internal/vector"
	"github.com/JulioPeixoto/veritas/internal/worker"
)

const (
	indexedMessage = "Documento indexado com sucesso"
	previewRunes   = 300
)

var (
	ErrNoFiles        = errors.New("nenhum arquivo fornecido")
	ErrEmptyFile      = errors.New("arquivo está vazio")
	ErrNoReadableText = errors.New("não foi possível extrair conteúdo legível do arquivo")
	ErrNoChunks       = errors.New("não foi possível criar chunks do documento")
	ErrAllFailed      = errors.New("nenhum arquivo foi processado com sucesso")
)

type Upload struct {
	Filename string
	Data     []byte
}

type IndexResult struct {
	Message             string `json:"message"`
	Filename            string `json:"filename"`
	DocumentName        string `json:"document_name"`
	FileType            string `json:"file_type"`
	ChunksCreated       int    `json:"chunks_created"`
	CharactersProcessed int    `json:"characters_processed"`
	ChunkSizeUsed       int    `json:"chunk_size_used"`
	Preview             string `json:"preview"`
}

type BatchResult struct {
	ProcessedFiles  int           `json:"processed_files"`
	Results         []IndexResult `json:"results"`
	TotalChunks     int           `json:"total_chunks"`
	TotalCharacters int           `json:"total_characters"`
	Errors          []string      `json:"errors,omitempty"`
}

// BatchError is returned when no file of a batch could be indexed.
type BatchError struct {
	Messages []string
	Causes   []error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%s. Erros: %s", ErrAllFailed.Error(), strings.Join(e.Messages, "; "))
}

func (e *BatchError) Unwrap() error { return ErrAllFailed }

// OnlyFormatErrors reports whether every failure was a rejected extension.
func (e *BatchError) OnlyFormatErrors() bool {
	if len(e.Causes) == 0 {
		return false
	}
	for _, c := range e.Causes {
		if !errors.Is(c, extract.ErrInvalidFormat) {
			return false
		}
	}
	return true
}

type Index interface {
	AddRecords(ctx context.Context, records []vector.Record) error
}

type Extractor interface {
	Extract(data []byte, t extract.FileType, filename string) (string, error)
}

type Catalog interface {
	Save(ctx context.Context, doc *catalog.Document) error
}

type Service struct {
	index     Index
	extractor Extractor
	catalog   Catalog
	pub       worker.Publisher
}

func NewService(index Index, extractor Extractor, cat Catalog, pub worker.Publisher) *Service {
	if cat == nil {
		cat = catalog.NoopRepo{}
	}
	if pub == nil {
		pub = worker.NoopPublisher{}
	}
	return &Service{index: index, extractor: extractor, catalog: cat, pub: pub}
}

// IndexDocument extracts, chunks and stores one upload.
func (s *Service) IndexDocument(ctx context.Context, up Upload) (*IndexResult, error) {
	fileType, err := extract.DetectType(up.Filename)
	if err != nil {
		return nil, err
	}
	docName := extract.DocumentName(up.Filename)

	if len(up.Data) == 0 {
		return nil, ErrEmptyFile
	}

	content, err := s.extractor.Extract(up.Data, fileType, up.Filename)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrNoReadableText
	}

	chunkSize := text.ChunkSizeFor(fileType)
	chunks := text.Split(content, chunkSize, text.ChunkOverlap, text.Separator)
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}

	records := make([]vector.Record, len(chunks))
	for i, chunk := range chunks {
		h := text.ChunkHeader{
			Filename:     up.Filename,
			DocumentName: docName,
			Type:         string(fileType),
			Index:        i + 1,
			Total:        len(chunks),
		}
		records[i] = vector.Record{
			Text: text.EncodeHeader(h, chunk),
			Metadata: map[string]interface{}{
				"filename":     h.Filename,
				"documentName": h.DocumentName,
				"docType":      h.Type,
				"chunk":        h.ChunkInfo(),
			},
		}
	}

	if err := s.index.AddRecords(ctx, records); err != nil {
		return nil, fmt.Errorf("erro ao indexar %s: %w", up.Filename, err)
	}

	chars := utf8.RuneCountInString(content)
	slog.InfoContext(ctx, "document indexed", "filename", up.Filename, "type", fileType, "chunks", len(chunks), "characters", chars)

	s.record(ctx, &catalog.Document{
		Filename:     up.Filename,
		DocumentName: docName,
		FileType:     string(fileType),
		Chunks:       len(chunks),
		Characters:   chars,
		ChunkSize:    chunkSize,
	})

	return &IndexResult{
		Message:             indexedMessage,
		Filename:            up.Filename,
		DocumentName:        docName,
		FileType:            string(fileType),
		ChunksCreated:       len(chunks),
		CharactersProcessed: chars,
		ChunkSizeUsed:       chunkSize,
		Preview:             preview(content),
	}, nil
}

// record writes the catalog entry and the indexed event. Both are best effort.
func (s *Service) record(ctx context.Context, doc *catalog.Document) {
	if err := s.catalog.Save(ctx, doc); err != nil {
		slog.WarnContext(ctx, "failed to record document in catalog", "filename", doc.Filename, "error", err)
	}

	body, err := json.Marshal(worker.DocumentIndexedEvent{
		Filename:      doc.Filename,
		DocumentName:  doc.DocumentName,
		FileType:      doc.FileType,
		Chunks:        doc.Chunks,
		Characters:    doc.Characters,
		IndexedAt:     time.Now().UTC(),
		CorrelationID: middleware.GetCorrelationID(ctx),
	})
	if err != nil {
		return
	}
	if err := s.pub.Publish(config.TopicDocumentIndexed, body); err != nil && !errors.Is(err, worker.ErrQueueDisabled) {
		slog.WarnContext(ctx, "failed to publish indexed event", "filename", doc.Filename, "error", err)
	}
}

// IndexDocuments indexes each upload independently. It fails only when
// every upload fails.
func (s *Service) IndexDocuments(ctx context.Context, uploads []Upload) (*BatchResult, error) {
	if len(uploads) == 0 {
		return nil, ErrNoFiles
	}

	out := &BatchResult{Results: []IndexResult{}}
	var causes []error
	for _, up := range uploads {
		res, err := s.IndexDocument(ctx, up)
		if err != nil {
			msg := fmt.Sprintf("Erro ao processar %s: %v", up.Filename, err)
			slog.WarnContext(ctx, "document skipped", "filename", up.Filename, "error", err)
			out.Errors = append(out.Errors, msg)
			causes = append(causes, err)
			continue
		}
		out.Results = append(out.Results, *res)
		out.ProcessedFiles++
		out.TotalChunks += res.ChunksCreated
		out.TotalCharacters += res.CharactersProcessed
	}

	if out.ProcessedFiles == 0 {
		return nil, &BatchError{Messages: out.Errors, Causes: causes}
	}
	return out, nil
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewRunes {
		return s
	}
	return string(r[:previewRunes]) + "..."
}
