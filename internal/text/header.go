package text

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Header labels. They are part of the stored data format and must not change.
const (
	LabelFile  = "Arquivo:"
	LabelName  = "Nome:"
	LabelType  = "Tipo:"
	LabelChunk = "Chunk:"
	LabelChars = "Caracteres:"
)

// SearchScanLines bounds how many leading lines are scanned for labels.
const SearchScanLines = 7

// ChunkHeader is the metadata carried in front of every stored chunk.
type ChunkHeader struct {
	Filename     string
	DocumentName string
	Type         string
	Index        int // 1-based
	Total        int
}

func (h ChunkHeader) ChunkInfo() string {
	return fmt.Sprintf("%d/%d", h.Index, h.Total)
}

// EncodeHeader prefixes body with the metadata block and a blank line.
func EncodeHeader(h ChunkHeader, body string) string {
	var b strings.Builder
	b.Grow(len(body) + 128)
	fmt.Fprintf(&b, "%s %s\n", LabelFile, h.Filename)
	fmt.Fprintf(&b, "%s %s\n", LabelName, h.DocumentName)
	fmt.Fprintf(&b, "%s %s\n", LabelType, h.Type)
	fmt.Fprintf(&b, "%s %s\n", LabelChunk, h.ChunkInfo())
	fmt.Fprintf(&b, "%s %d\n\n", LabelChars, utf8.RuneCountInString(body))
	b.WriteString(body)
	return b.String()
}

// Decoded is what DecodeHeader recovers from a stored blob.
type Decoded struct {
	Filename     string
	DocumentName string
	Type         string
	Chunk        string
	Content      string
	HasHeader    bool
}

// DecodeHeader reads the labels from the first scanLines lines. The body
// starts after the first blank line found past the label block; without
// one the whole blob is returned as content.
func DecodeHeader(blob string, scanLines int) Decoded {
	lines := strings.Split(blob, "\n")
	var d Decoded

	for i, line := range lines {
		if i >= scanLines {
			break
		}
		switch {
		case strings.HasPrefix(line, LabelFile):
			d.Filename = strings.TrimSpace(strings.TrimPrefix(line, LabelFile))
		case strings.HasPrefix(line, LabelName):
			d.DocumentName = strings.TrimSpace(strings.TrimPrefix(line, LabelName))
		case strings.HasPrefix(line, LabelType):
			d.Type = strings.TrimSpace(strings.TrimPrefix(line, LabelType))
		case strings.HasPrefix(line, LabelChunk):
			d.Chunk = strings.TrimSpace(strings.TrimPrefix(line, LabelChunk))
		}
	}

	minBlank := scanLines - 3
	for j, line := range lines {
		if j > minBlank && strings.TrimSpace(line) == "" {
			d.Content = strings.Join(lines[j+1:], "\n")
			d.HasHeader = true
			return d
		}
	}
	d.Content = blob
	return d
}
