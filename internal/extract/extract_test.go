package extract

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func TestExtract_PlainText(t *testing.T) {
	r := New()
	p := writeFile(t, "notes.TXT", []byte("line one\r\nline two\n"))
	got, err := r.ExtractText(p)
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\n", got)
}

func TestExtract_BOMs(t *testing.T) {
	r := New()
	utf8BOM := append([]byte{0xEF, 0xBB, 0xBF}, []byte("héllo")...)
	got, err := r.ExtractText(writeFile(t, "a.md", utf8BOM))
	require.NoError(t, err)
	assert.Equal(t, "héllo", got)

	// "hi" in UTF-16LE with BOM.
	utf16 := []byte{0xFF, 0xFE, 'h', 0, 'i', 0}
	got, err = r.ExtractText(writeFile(t, "b.txt", utf16))
	require.NoError(t, err)
	assert.Equal(t, "hi", got)
}

func TestExtract_Windows1252Fallback(t *testing.T) {
	r := New()
	got, err := r.ExtractText(writeFile(t, "legacy.csv", []byte("caf\xe9")))
	require.NoError(t, err)
	assert.Equal(t, "café", got)
}

func TestExtract_Truncates(t *testing.T) {
	r := NewWithLimit(10)
	got, err := r.ExtractText(writeFile(t, "big.txt", []byte(strings.Repeat("é", 20))))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(got, truncatedNote))
	body := strings.TrimSuffix(got, truncatedNote)
	assert.Equal(t, strings.Repeat("é", 5), body)
}

func TestExtract_HTML(t *testing.T) {
	doc := `<html><head><title>Report</title><style>p{}</style></head>
<body><h1>Summary</h1><script>alert(1)</script>
<p>First   paragraph.</p>


<p>Second.</p></body></html>`
	got, err := New().ExtractText(writeFile(t, "page.html", []byte(doc)))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "Report"))
	assert.Contains(t, got, "First paragraph.")
	assert.Contains(t, got, "Second.")
	assert.NotContains(t, got, "alert")
	assert.NotContains(t, got, "p{}")
	assert.NotContains(t, got, "\n\n\n")
}

func TestExtract_DOCX(t *testing.T) {
	p := filepath.Join(t.TempDir(), "memo.docx")
	f, err := os.Create(p)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p><w:r><w:t>Hello</w:t></w:r><w:r><w:tab/><w:t>world</w:t></w:r></w:p>
<w:p><w:r><w:t>Second line</w:t></w:r></w:p>
</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	got, err := New().ExtractText(p)
	require.NoError(t, err)
	assert.Equal(t, "Hello\tworld\nSecond line", got)
}

func TestExtract_BrokenDOCX(t *testing.T) {
	_, err := New().ExtractText(writeFile(t, "bad.docx", []byte("not a zip")))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnsupported)
}

func TestExtract_Unsupported(t *testing.T) {
	r := New()
	for _, name := range []string{"scan.pdf", "old.doc", "sheet.xlsx", "photo.png", "README"} {
		_, err := r.ExtractText(writeFile(t, name, []byte("x")))
		assert.ErrorIs(t, err, ErrUnsupported, name)
		assert.False(t, r.Supported(name))
	}
}

func TestRegistry_Register(t *testing.T) {
	r := New()
	r.Register("PDF", Func(func(string) (string, error) { return "pdf text", nil }))
	got, err := r.ExtractText(writeFile(t, "doc.pdf", []byte("%PDF")))
	require.NoError(t, err)
	assert.Equal(t, "pdf text", got)
	assert.Contains(t, r.Extensions(), ".pdf")
}
