package ingestion_engine

import (
	"context"

	"github.com/cesuygun/chatbot-platform/internal/models"
)

// Result is what a successful ingestion hands back to the caller.
type Result struct {
	SourceID   string `json:"source_id"`
	PageCount  int    `json:"page_count"`
	ChunkCount int    `json:"chunk_count"`
}

// Ingestor is the single entry point the upload handler calls. It either
// returns the new source ID or a typed error (*core.ExtractionError,
// *core.EmbeddingError, *core.StorageError); it is never partially true.
type Ingestor interface {
	Ingest(ctx context.Context, up models.SourceUpload, chatbotID string) (*Result, error)
}
