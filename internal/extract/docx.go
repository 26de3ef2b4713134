package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

type docxDocument struct {
	Paragraphs []docxParagraph `xml:"body>p"`
	Tables     []docxTable     `xml:"body>tbl"`
}

type docxParagraph struct {
	Runs      []docxRun `xml:"r"`
	Hyperlink []docxRun `xml:"hyperlink>r"`
}

type docxRun struct {
	Text []string `xml:"t"`
}

type docxTable struct {
	Rows []struct {
		Cells []struct {
			Paragraphs []docxParagraph `xml:"p"`
		} `xml:"tc"`
	} `xml:"tr"`
}

func (p docxParagraph) text() string {
	var b strings.Builder
	for _, r := range p.Runs {
		for _, t := range r.Text {
			b.WriteString(t)
		}
	}
	for _, r := range p.Hyperlink {
		for _, t := range r.Text {
			b.WriteString(t)
		}
	}
	return b.String()
}

func extractDOCX(data []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("erro ao processar DOCX: %w", err)
	}

	raw, err := readZipEntry(reader, "word/document.xml")
	if err != nil {
		return "", fmt.Errorf("erro ao processar DOCX: %w", err)
	}

	var doc docxDocument
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return "", fmt.Errorf("erro ao processar DOCX: %w", err)
	}

	var parts []string
	for _, p := range doc.Paragraphs {
		if t := p.text(); strings.TrimSpace(t) != "" {
			parts = append(parts, t)
		}
	}

	for _, tbl := range doc.Tables {
		for _, row := range tbl.Rows {
			var cells []string
			for _, cell := range row.Cells {
				lines := make([]string, 0, len(cell.Paragraphs))
				for _, p := range cell.Paragraphs {
					lines = append(lines, p.text())
				}
				if t := strings.TrimSpace(strings.Join(lines, "\n")); t != "" {
					cells = append(cells, t)
				}
			}
			if len(cells) > 0 {
				parts = append(parts, strings.Join(cells, " | "))
			}
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("erro ao processar DOCX: %w: Documento DOCX está vazio", ErrEmptyDocument)
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n")), nil
}

func readZipEntry(reader *zip.Reader, name string) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("%s não encontrado", name)
}
