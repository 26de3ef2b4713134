package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectType(t *testing.T) {
	tests := []struct {
		filename string
		want     FileType
	}{
		{"relatorio.pdf", TypePDF},
		{"RELATORIO.PDF", TypePDF},
		{"contrato.docx", TypeDOCX},
		{"notas.txt", TypeTXT},
		{"pagina.html", TypeHTML},
		{"pagina.HTM", TypeHTML},
		{"readme.md", TypeMD},
		{"guia.markdown", TypeMD},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got, err := DetectType(tt.filename)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectType_Invalid(t *testing.T) {
	_, err := DetectType("segredos.env")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidFormat))

	var fe *FormatError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, ".env", fe.Extension)
	assert.Contains(t, err.Error(), ".env")

	_, err = DetectType("")
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestValidTypes(t *testing.T) {
	assert.Equal(t, []string{"pdf", "docx", "txt", "html", "md"}, ValidTypes())
}

func TestDocumentName(t *testing.T) {
	assert.Equal(t, "Relatorio Chuvas 2024", DocumentName("relatorio_chuvas-2024.pdf"))
	assert.Equal(t, "Plano De Contingência", DocumentName("PLANO_de_contingência.docx"))
	assert.Equal(t, "Notas", DocumentName("  notas .txt"))
}

func TestExtract_PlainTextEncodings(t *testing.T) {
	e := New()

	text, err := e.Extract([]byte("Olá, Aracaju"), TypeTXT, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "Olá, Aracaju", text)

	// "Olá" encoded as latin-1
	text, err = e.Extract([]byte{'O', 'l', 0xE1}, TypeMD, "a.md")
	require.NoError(t, err)
	assert.Equal(t, "Olá", text)

	// NUL bytes defeat every encoding; the lossy fallback still returns text.
	text, err = e.Extract([]byte{'a', 0x00, 'b'}, TypeHTML, "a.html")
	require.NoError(t, err)
	assert.Equal(t, "a\x00b", text)
}

func TestExtract_Unsupported(t *testing.T) {
	_, err := New().Extract([]byte("x"), FileType("xls"), "planilha.xls")
	assert.ErrorIs(t, err, ErrUnsupportedType)
	assert.Contains(t, err.Error(), "planilha.xls")
}

type fakePDF struct {
	pages []string
	errs  map[int]error
}

func (f *fakePDF) NumPage() int { return len(f.pages) }

func (f *fakePDF) PageText(n int) (string, error) {
	if err := f.errs[n]; err != nil {
		return "", err
	}
	return f.pages[n-1], nil
}

func TestExtract_PDF(t *testing.T) {
	doc := &fakePDF{
		pages: []string{"Primeira página", "   ", "", "Quarta"},
		errs:  map[int]error{3: errors.New("fonte quebrada")},
	}
	e := NewWithPDFOpener(func([]byte) (PDFDocument, error) { return doc, nil })

	text, err := e.Extract([]byte("%PDF"), TypePDF, "doc.pdf")
	require.NoError(t, err)
	assert.Equal(t,
		"--- Página 1 ---\nPrimeira página\n\n"+
			"--- Página 3 ---\n[Erro ao extrair texto: fonte quebrada]\n\n"+
			"--- Página 4 ---\nQuarta",
		text)
}

func TestExtract_PDFWithoutText(t *testing.T) {
	e := NewWithPDFOpener(func([]byte) (PDFDocument, error) {
		return &fakePDF{pages: []string{" ", ""}}, nil
	})
	_, err := e.Extract([]byte("%PDF"), TypePDF, "vazio.pdf")
	assert.ErrorIs(t, err, ErrEmptyDocument)

	e = NewWithPDFOpener(func([]byte) (PDFDocument, error) { return &fakePDF{}, nil })
	_, err = e.Extract([]byte("%PDF"), TypePDF, "zero.pdf")
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestExtract_PDFCorrupted(t *testing.T) {
	_, err := New().Extract([]byte("not a pdf at all"), TypePDF, "ruim.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ruim.pdf")
}

func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtract_DOCX(t *testing.T) {
	xmlDoc := `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Plano de </w:t></w:r><w:r><w:t>contingência</w:t></w:r></w:p>
    <w:p><w:r><w:t>   </w:t></w:r></w:p>
    <w:tbl>
      <w:tr>
        <w:tc><w:p><w:r><w:t>Bairro</w:t></w:r></w:p></w:tc>
        <w:tc><w:p><w:r><w:t></w:t></w:r></w:p></w:tc>
        <w:tc><w:p><w:r><w:t>Risco</w:t></w:r></w:p></w:tc>
      </w:tr>
      <w:tr>
        <w:tc><w:p><w:r><w:t>São José</w:t></w:r></w:p></w:tc>
        <w:tc><w:p><w:r><w:t>Alto</w:t></w:r></w:p></w:tc>
      </w:tr>
    </w:tbl>
    <w:p><w:hyperlink><w:r><w:t>Defesa Civil 199</w:t></w:r></w:hyperlink></w:p>
  </w:body>
</w:document>`

	text, err := New().Extract(buildDOCX(t, xmlDoc), TypeDOCX, "plano.docx")
	require.NoError(t, err)
	assert.Equal(t, "Plano de contingência\n\nDefesa Civil 199\n\nBairro | Risco\n\nSão José | Alto", text)
}

func TestExtract_DOCXEmpty(t *testing.T) {
	xmlDoc := `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p/></w:body></w:document>`
	_, err := New().Extract(buildDOCX(t, xmlDoc), TypeDOCX, "vazio.docx")
	assert.ErrorIs(t, err, ErrEmptyDocument)

	_, err = New().Extract([]byte("not a zip"), TypeDOCX, "quebrado.docx")
	assert.Error(t, err)
}
