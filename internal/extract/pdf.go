package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFDocument exposes the page text of an opened PDF. Pages are 1-based.
type PDFDocument interface {
	NumPage() int
	PageText(n int) (string, error)
}

type PDFOpener func(data []byte) (PDFDocument, error)

type ledongthucDoc struct {
	r *pdf.Reader
}

// OpenPDF parses data with ledongthuc/pdf.
func OpenPDF(data []byte) (PDFDocument, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	return &ledongthucDoc{r: r}, nil
}

func (d *ledongthucDoc) NumPage() int { return d.r.NumPage() }

func (d *ledongthucDoc) PageText(n int) (text string, err error) {
	// The content stream interpreter panics on some malformed pages.
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("página ilegível: %v", rec)
		}
	}()
	p := d.r.Page(n)
	if p.V.IsNull() {
		return "", nil
	}
	return p.GetPlainText(nil)
}

func (e *Extractor) extractPDF(data []byte) (string, error) {
	doc, err := e.openPDF(data)
	if err != nil {
		return "", fmt.Errorf("erro ao processar PDF: %w", err)
	}
	if doc.NumPage() == 0 {
		return "", fmt.Errorf("erro ao processar PDF: %w: PDF está vazio ou corrompido", ErrEmptyDocument)
	}

	var parts []string
	for n := 1; n <= doc.NumPage(); n++ {
		text, err := doc.PageText(n)
		if err != nil {
			parts = append(parts, fmt.Sprintf("--- Página %d ---\n[Erro ao extrair texto: %v]", n, err))
			continue
		}
		if strings.TrimSpace(text) != "" {
			parts = append(parts, fmt.Sprintf("--- Página %d ---\n%s", n, text))
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("erro ao processar PDF: %w: Não foi possível extrair texto de nenhuma página do PDF", ErrEmptyDocument)
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n")), nil
}
