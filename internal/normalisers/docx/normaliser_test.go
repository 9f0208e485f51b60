package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
	"github.com/Qingzhee/rag-engine/internal/core/ports/driven"
)

// createTestDOCX writes a minimal DOCX file and returns its path.
func createTestDOCX(t *testing.T, documentXML string) string {
	t.Helper()
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)

	contentTypes, _ := w.Create("[Content_Types].xml")
	contentTypes.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="xml" ContentType="application/xml"/>
</Types>`))

	if documentXML != "" {
		doc, _ := w.Create("word/document.xml")
		doc.Write([]byte(documentXML))
	}
	require.NoError(t, w.Close())

	path := filepath.Join(t.TempDir(), "document.docx")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

const header = `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>`

const footer = `</w:body>
</w:document>`

func TestNew(t *testing.T) {
	normaliser := New()
	require.NotNil(t, normaliser)
	assert.Equal(t, []string{".docx"}, normaliser.Extensions())
}

func TestNormalise_Success(t *testing.T) {
	path := createTestDOCX(t, header+`<w:p><w:r><w:t>Hello World</w:t></w:r></w:p>`+footer)

	pages, err := New().Normalise(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "Hello World", pages[0].Content)
}

func TestNormalise_MultipleParagraphs(t *testing.T) {
	path := createTestDOCX(t, header+`
<w:p><w:r><w:t>First paragraph</w:t></w:r></w:p>
<w:p><w:r><w:t>Second paragraph</w:t></w:r></w:p>
<w:p><w:r><w:t>Third paragraph</w:t></w:r></w:p>`+footer)

	pages, err := New().Normalise(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "First paragraph\nSecond paragraph\nThird paragraph", pages[0].Content)
}

func TestNormalise_MultipleRuns(t *testing.T) {
	path := createTestDOCX(t, header+`
<w:p><w:r><w:t>Hello </w:t></w:r><w:r><w:t>World</w:t></w:r></w:p>`+footer)

	pages, err := New().Normalise(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Hello World", pages[0].Content)
}

func TestNormalise_EmptyDocument(t *testing.T) {
	path := createTestDOCX(t, header+footer)

	pages, err := New().Normalise(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, pages[0].Content)
}

func TestNormalise_MissingDocumentXML(t *testing.T) {
	path := createTestDOCX(t, "")

	_, err := New().Normalise(context.Background(), path)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNormalise_InvalidZip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invalid.docx")
	require.NoError(t, os.WriteFile(path, []byte("not a zip file"), 0o644))

	_, err := New().Normalise(context.Background(), path)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNormalise_MalformedXML(t *testing.T) {
	path := createTestDOCX(t, "<w:document><w:body><w:p>")

	_, err := New().Normalise(context.Background(), path)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestInterfaceCompliance(t *testing.T) {
	var _ driven.Normaliser = (*Normaliser)(nil)
}
