package core

import (
	"context"

	"github.com/cesuygun/chatbot-platform/internal/models"
)

// ExtractedContent is the result of text extraction: one text block per
// physical page, in document order. Non-paged formats produce a single block.
// A document with no extractable text yields an empty Pages slice, not an
// error.
type ExtractedContent struct {
	Pages     []string
	PageCount int
}

// ContentExtractor turns a raw uploaded document into ordered page-level
// text blocks. Unparseable input fails with *ExtractionError.
type ContentExtractor interface {
	Extract(ctx context.Context, up models.SourceUpload) (*ExtractedContent, error)
}
