package text

import (
	"strings"
	"unicode/utf8"

	"github.com/JulioPeixoto/veritas/internal/extract"
)

const (
	PDFChunkSize     = 1500
	DefaultChunkSize = 1000
	ChunkOverlap     = 150
	Separator        = "\n\n"
)

// ChunkSizeFor returns the chunk size used for a document type.
func ChunkSizeFor(t extract.FileType) int {
	if t == extract.TypePDF {
		return PDFChunkSize
	}
	return DefaultChunkSize
}

// Split cuts text into chunks of at most size characters (runes). Pieces
// separated by sep are merged greedily; consecutive chunks share up to
// overlap characters of trailing pieces. A piece longer than size is
// hard-cut into windows stepping size-overlap.
func Split(text string, size, overlap int, sep string) []string {
	if size <= 0 {
		return nil
	}
	if overlap >= size || overlap < 0 {
		overlap = size / 4
	}

	var pieces []string
	for _, p := range strings.Split(text, sep) {
		if p == "" {
			continue
		}
		pieces = append(pieces, hardCut(p, size, overlap)...)
	}
	return merge(pieces, size, overlap, sep)
}

func hardCut(piece string, size, overlap int) []string {
	if utf8.RuneCountInString(piece) <= size {
		return []string{piece}
	}
	runes := []rune(piece)
	step := size - overlap
	var out []string
	for start := 0; ; start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}

func merge(pieces []string, size, overlap int, sep string) []string {
	sepLen := utf8.RuneCountInString(sep)
	var (
		chunks  []string
		current []string
		total   int
	)

	joinedLen := func(extra int) int {
		if len(current) > 0 {
			return total + extra + sepLen
		}
		return total + extra
	}

	for _, p := range pieces {
		pLen := utf8.RuneCountInString(p)
		if joinedLen(pLen) > size && len(current) > 0 {
			if c := strings.TrimSpace(strings.Join(current, sep)); c != "" {
				chunks = append(chunks, c)
			}
			// Keep a tail no longer than overlap that still leaves room for p.
			for total > overlap || (total > 0 && joinedLen(pLen) > size) {
				drop := utf8.RuneCountInString(current[0])
				if len(current) > 1 {
					drop += sepLen
				}
				total -= drop
				current = current[1:]
			}
		}
		if len(current) > 0 {
			total += sepLen
		}
		current = append(current, p)
		total += pLen
	}

	if c := strings.TrimSpace(strings.Join(current, sep)); c != "" {
		chunks = append(chunks, c)
	}
	return chunks
}
