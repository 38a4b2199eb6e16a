package ingestion_engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/cesuygun/chatbot-platform/internal/core"
)

// IngestConfig tunes the pipeline.
//
// ChunkSize/ChunkOverlap: characters per chunk and shared span between
// consecutive chunks.
// BatchSize:   how many chunks go into one embedding call.
// Concurrency: how many embedding batches run in parallel (order is kept by
// index regardless).
// MaxRetries:  extra attempts after a rate-limited embedding call.
// CallTimeout: per embedding/storage call; 0 disables.
// BackoffBase: first retry delay; doubles per attempt, with jitter.
type IngestConfig struct {
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
	Concurrency  int
	MaxRetries   int
	CallTimeout  time.Duration
	BackoffBase  time.Duration
}

// Pipeline drives one ingestion run: extract, chunk, embed, persist. Runs
// share no mutable state, so any number of them may execute concurrently.
type Pipeline struct {
	store     core.KnowledgeStore
	embedder  core.EmbeddingProvider
	extractor core.ContentExtractor
	cfg       *IngestConfig
	log       zerolog.Logger

	// sleep is swapped out in tests so backoff is observable without
	// real delays.
	sleep func(ctx context.Context, d time.Duration) error
}
