package rag

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/abundance-ai/abundance/internal/pkg/errs"
)

func TestExtractTxt(t *testing.T) {
	text, err := Extract(strings.NewReader("plain text body"), "notes.txt")
	require.NoError(t, err)
	require.Equal(t, "plain text body", text)
}

func TestExtractCSV(t *testing.T) {
	csvData := "name,amount\nalice,10\nbob,20\n"
	text, err := Extract(strings.NewReader(csvData), "data.csv")
	require.NoError(t, err)
	require.Contains(t, text, "name, amount")
	require.Contains(t, text, "alice, 10")
	require.Contains(t, text, "bob, 20")
}

func TestExtractMarkdown(t *testing.T) {
	md := "# Title\n\nSome *emphasized* body text.\n\n- item one\n- item two\n"
	text, err := Extract(strings.NewReader(md), "readme.md")
	require.NoError(t, err)
	require.Contains(t, text, "Title")
	require.Contains(t, text, "emphasized")
	require.Contains(t, text, "item one")
	require.NotContains(t, text, "#")
	require.NotContains(t, text, "*")
}

func TestExtractDocx(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	docXML := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>first paragraph</w:t></w:r></w:p>
    <w:p><w:r><w:t>second paragraph</w:t></w:r></w:p>
  </w:body>
</w:document>`
	_, err = w.Write([]byte(docXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	text, err := Extract(bytes.NewReader(buf.Bytes()), "report.docx")
	require.NoError(t, err)
	require.Contains(t, text, "first paragraph")
	require.Contains(t, text, "second paragraph")
}

func TestExtractUnsupportedFormat(t *testing.T) {
	_, err := Extract(strings.NewReader("binary"), "image.png")
	require.ErrorIs(t, err, errs.ErrUnsupportedFormat)
}

func TestSupportedExt(t *testing.T) {
	require.True(t, SupportedExt(".txt"))
	require.True(t, SupportedExt(".PDF"))
	require.True(t, SupportedExt(".docx"))
	require.False(t, SupportedExt(".exe"))
	require.False(t, SupportedExt(""))
}
