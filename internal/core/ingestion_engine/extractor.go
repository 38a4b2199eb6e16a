package ingestion_engine

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"code.sajari.com/docconv"
	"github.com/ledongthuc/pdf"

	"github.com/cesuygun/chatbot-platform/internal/core"
	"github.com/cesuygun/chatbot-platform/internal/models"
)

var _ core.ContentExtractor = (*DocumentExtractor)(nil)

// DocumentExtractor implements core.ContentExtractor. PDFs are parsed page
// by page with ledongthuc/pdf; plain text passes through; anything else goes
// through docconv as a single non-paged block.
type DocumentExtractor struct {
	tempDir string
}

// ExtractorOption configures the extractor.
type ExtractorOption func(*DocumentExtractor)

// WithTempDir overrides where the scoped temp file for PDF parsing is
// written. Defaults to the system temp dir.
func WithTempDir(dir string) ExtractorOption {
	return func(e *DocumentExtractor) {
		if dir != "" {
			e.tempDir = dir
		}
	}
}

func NewDocumentExtractor(opts ...ExtractorOption) *DocumentExtractor {
	e := &DocumentExtractor{tempDir: os.TempDir()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract turns the upload into ordered page-level text blocks.
func (e *DocumentExtractor) Extract(ctx context.Context, up models.SourceUpload) (*core.ExtractedContent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch up.SourceType {
	case models.SourceTypePDF:
		return e.extractPDF(up)
	case models.SourceTypeText:
		return extractText(up), nil
	default:
		return extractGeneric(up)
	}
}

// extractPDF writes the upload to a scoped temp file for the parser and
// removes it on every exit path. os.CreateTemp randomizes the name, so
// concurrent ingestions never collide.
func (e *DocumentExtractor) extractPDF(up models.SourceUpload) (content *core.ExtractedContent, err error) {
	tmp, err := os.CreateTemp(e.tempDir, "ingest-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	// ledongthuc/pdf panics on some malformed cross-reference tables;
	// fold that into the normal extraction-failure path.
	defer func() {
		if r := recover(); r != nil {
			content = nil
			err = &core.ExtractionError{
				FileName:   up.FileName,
				SourceType: up.SourceType,
				Err:        fmt.Errorf("pdf parser panic: %v", r),
			}
		}
	}()

	if _, err := tmp.Write(up.Data); err != nil {
		return nil, fmt.Errorf("write temp file: %w", err)
	}

	reader, err := pdf.NewReader(tmp, int64(len(up.Data)))
	if err != nil {
		return nil, &core.ExtractionError{FileName: up.FileName, SourceType: up.SourceType, Err: err}
	}

	numPages := reader.NumPage()
	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, &core.ExtractionError{
				FileName:   up.FileName,
				SourceType: up.SourceType,
				Err:        fmt.Errorf("page %d: %w", i, err),
			}
		}
		pages = append(pages, text)
	}

	return &core.ExtractedContent{Pages: pages, PageCount: numPages}, nil
}

// extractText treats the upload as one non-paged block. Empty input yields
// zero blocks rather than an error; the pipeline decides what that means.
func extractText(up models.SourceUpload) *core.ExtractedContent {
	text := strings.TrimSpace(string(up.Data))
	if text == "" {
		return &core.ExtractedContent{}
	}
	return &core.ExtractedContent{Pages: []string{text}, PageCount: 1}
}

// extractGeneric falls back to docconv for formats we have no dedicated
// parser for (docx, html, rtf...). docconv flattens the document, so the
// result is a single block with no page boundaries.
func extractGeneric(up models.SourceUpload) (*core.ExtractedContent, error) {
	mime := docconv.MimeTypeByExtension(up.FileName)
	res, err := docconv.Convert(bytes.NewReader(up.Data), mime, true)
	if err != nil {
		return nil, &core.ExtractionError{FileName: up.FileName, SourceType: up.SourceType, Err: err}
	}
	text := strings.TrimSpace(res.Body)
	if text == "" {
		return &core.ExtractedContent{}, nil
	}
	return &core.ExtractedContent{Pages: []string{text}, PageCount: 1}, nil
}
