// Package extract turns uploaded document bytes into plain text.
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

type FileType string

const (
	TypePDF  FileType = "pdf"
	TypeDOCX FileType = "docx"
	TypeTXT  FileType = "txt"
	TypeHTML FileType = "html"
	TypeMD   FileType = "md"
)

var (
	ErrInvalidFormat   = errors.New("formato de arquivo inválido")
	ErrMissingFilename = fmt.Errorf("%w: Nome do arquivo não encontrado", ErrInvalidFormat)
	ErrEmptyDocument   = errors.New("documento vazio")
	ErrUnsupportedType = errors.New("tipo de arquivo não suportado")
)

var extensions = map[string]FileType{
	".pdf":      TypePDF,
	".docx":     TypeDOCX,
	".txt":      TypeTXT,
	".html":     TypeHTML,
	".htm":      TypeHTML,
	".md":       TypeMD,
	".markdown": TypeMD,
}

// FormatError reports an extension outside the recognised set.
type FormatError struct {
	Extension string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidFormat.Error(), e.Extension)
}

func (e *FormatError) Unwrap() error { return ErrInvalidFormat }

// ValidTypes lists the accepted document types in display order.
func ValidTypes() []string {
	return []string{string(TypePDF), string(TypeDOCX), string(TypeTXT), string(TypeHTML), string(TypeMD)}
}

// DetectType maps the filename extension (case-insensitive) to a FileType.
// The file content is never inspected.
func DetectType(filename string) (FileType, error) {
	if filename == "" {
		return "", ErrMissingFilename
	}
	ext := strings.ToLower(filepath.Ext(filename))
	t, ok := extensions[ext]
	if !ok {
		return "", &FormatError{Extension: ext}
	}
	return t, nil
}

// DocumentName derives a human readable name from a filename:
// "relatorio_chuvas-2024.pdf" becomes "Relatorio Chuvas 2024".
func DocumentName(filename string) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)

	var b strings.Builder
	prevLetter := false
	for _, r := range base {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		prevLetter = false
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// Extractor dispatches on FileType. The PDF opener is swappable for tests.
type Extractor struct {
	openPDF PDFOpener
}

func New() *Extractor {
	return &Extractor{openPDF: OpenPDF}
}

func NewWithPDFOpener(opener PDFOpener) *Extractor {
	return &Extractor{openPDF: opener}
}

// Extract converts data of the declared type into text.
func (e *Extractor) Extract(data []byte, t FileType, filename string) (string, error) {
	var (
		text string
		err  error
	)
	switch t {
	case TypePDF:
		text, err = e.extractPDF(data)
	case TypeDOCX:
		text, err = extractDOCX(data)
	case TypeTXT, TypeHTML, TypeMD:
		text = decodeText(data)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedType, t)
	}
	if err != nil {
		return "", fmt.Errorf("erro ao processar arquivo %s: %w", filename, err)
	}
	return text, nil
}
