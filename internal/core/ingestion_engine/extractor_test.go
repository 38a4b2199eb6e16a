package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesuygun/chatbot-platform/internal/core"
	"github.com/cesuygun/chatbot-platform/internal/models"
)

// buildPDF assembles a minimal uncompressed PDF with one page per entry in
// pageTexts, including a correct cross-reference table.
func buildPDF(t *testing.T, pageTexts []string) []byte {
	t.Helper()

	n := len(pageTexts)
	fontObj := 3 + 2*n

	kids := make([]string, n)
	for i := range pageTexts {
		kids[i] = fmt.Sprintf("%d 0 R", 3+2*i)
	}

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n),
	}
	for i, text := range pageTexts {
		pageObj := fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>",
			fontObj, 4+2*i)
		stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		contentObj := fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream)
		objects = append(objects, pageObj, contentObj)
	}
	objects = append(objects, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")

	var b strings.Builder
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects)+1)
	for i, obj := range objects {
		offsets[i+1] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xrefOffset := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", len(objects)+1)
	b.WriteString("0000000000 65535 f \n")
	for i := 1; i <= len(objects); i++ {
		fmt.Fprintf(&b, "%010d %05d n \n", offsets[i], 0)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xrefOffset)

	return []byte(b.String())
}

func TestExtract_PDF(t *testing.T) {
	dir := t.TempDir()
	e := NewDocumentExtractor(WithTempDir(dir))

	data := buildPDF(t, []string{"Hello first page", "Hello second page"})
	content, err := e.Extract(context.Background(), models.SourceUpload{
		Data:       data,
		FileName:   "sample.pdf",
		SourceType: models.SourceTypePDF,
	})
	require.NoError(t, err)
	require.Equal(t, 2, content.PageCount)
	require.Len(t, content.Pages, 2)
	assert.Contains(t, content.Pages[0], "Hello first page")
	assert.Contains(t, content.Pages[1], "Hello second page")

	assertDirEmpty(t, dir)
}

func TestExtract_CorruptPDF(t *testing.T) {
	dir := t.TempDir()
	e := NewDocumentExtractor(WithTempDir(dir))

	_, err := e.Extract(context.Background(), models.SourceUpload{
		Data:       []byte("this is definitely not a pdf"),
		FileName:   "broken.pdf",
		SourceType: models.SourceTypePDF,
	})
	require.Error(t, err)

	var xerr *core.ExtractionError
	require.ErrorAs(t, err, &xerr)
	assert.Contains(t, err.Error(), "extract")

	// The scoped temp file must be gone even on the failure path.
	assertDirEmpty(t, dir)
}

func TestExtract_Text(t *testing.T) {
	e := NewDocumentExtractor()

	t.Run("plain text", func(t *testing.T) {
		content, err := e.Extract(context.Background(), models.SourceUpload{
			Data:       []byte("  some notes\nmore notes  "),
			FileName:   "notes.txt",
			SourceType: models.SourceTypeText,
		})
		require.NoError(t, err)
		assert.Equal(t, 1, content.PageCount)
		require.Len(t, content.Pages, 1)
		assert.Equal(t, "some notes\nmore notes", content.Pages[0])
	})

	t.Run("empty text yields zero pages", func(t *testing.T) {
		content, err := e.Extract(context.Background(), models.SourceUpload{
			Data:       []byte("   \n "),
			FileName:   "empty.txt",
			SourceType: models.SourceTypeText,
		})
		require.NoError(t, err)
		assert.Zero(t, content.PageCount)
		assert.Empty(t, content.Pages)
	})
}

func TestExtract_CancelledContext(t *testing.T) {
	e := NewDocumentExtractor()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Extract(ctx, models.SourceUpload{
		Data:       []byte("anything"),
		FileName:   "notes.txt",
		SourceType: models.SourceTypeText,
	})
	require.ErrorIs(t, err, context.Canceled)

	var xerr *core.ExtractionError
	assert.False(t, errors.As(err, &xerr), "cancellation must not masquerade as an extraction failure")
}

func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temp dir should be empty after extraction")
}
