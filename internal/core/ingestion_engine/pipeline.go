package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cesuygun/chatbot-platform/internal/core"
	"github.com/cesuygun/chatbot-platform/internal/models"
)

var _ Ingestor = (*Pipeline)(nil)

// NewPipeline wires the pipeline's collaborators. Zero-valued config fields
// fall back to sane defaults.
func NewPipeline(store core.KnowledgeStore, embedder core.EmbeddingProvider, extractor core.ContentExtractor, cfg *IngestConfig, log zerolog.Logger) *Pipeline {
	if cfg == nil {
		cfg = &IngestConfig{}
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = DefaultChunkOverlap
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 500 * time.Millisecond
	}
	return &Pipeline{
		store:     store,
		embedder:  embedder,
		extractor: extractor,
		cfg:       cfg,
		log:       log,
		sleep:     sleepCtx,
	}
}

// Ingest runs one document through extract, chunk, embed and persist.
// Nothing is written before the persist stage, so a failure anywhere earlier
// leaves zero rows behind. The one known inconsistency window is a chunk
// write failing after the source row was committed; that is surfaced as a
// *core.StorageError with Orphaned set and logged distinctly so a
// reconciliation job can pick it up.
func (p *Pipeline) Ingest(ctx context.Context, up models.SourceUpload, chatbotID string) (*Result, error) {
	logger := p.log.With().Str("chatbot_id", chatbotID).Str("file_name", up.FileName).Logger()

	content, err := p.extractor.Extract(ctx, up)
	if err != nil {
		var xerr *core.ExtractionError
		if !errors.As(err, &xerr) && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			err = &core.ExtractionError{FileName: up.FileName, SourceType: up.SourceType, Err: err}
		}
		logger.Warn().Err(err).Msg("extraction failed")
		return nil, err
	}

	// A document with no extractable text still records a source with zero
	// chunks; rejecting the upload here would hide the real problem from
	// the layer that can report it.
	chunks := SplitBlocks(content.Pages, p.cfg.ChunkSize, p.cfg.ChunkOverlap)
	logger.Debug().Int("pages", content.PageCount).Int("chunks", len(chunks)).Msg("document chunked")

	vectors, err := p.embedAll(ctx, chunks, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("embedding failed")
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src := &models.SourceDocument{
		ChatbotID:  chatbotID,
		SourceType: up.SourceType,
		FileName:   up.FileName,
		ByteSize:   int64(len(up.Data)),
		PageCount:  content.PageCount,
	}
	callCtx, cancel := p.callCtx(ctx)
	sourceID, err := p.store.RecordSource(callCtx, src)
	cancel()
	if err != nil {
		serr := asStorageError("record_source", err)
		logger.Error().Err(serr).Msg("source persistence failed")
		return nil, serr
	}

	rows := make([]models.DocumentChunk, len(chunks))
	for i := range chunks {
		rows[i] = models.DocumentChunk{
			ChatbotID: chatbotID,
			SourceID:  sourceID,
			Text:      chunks[i],
			Embedding: vectors[i],
			Position:  i,
		}
	}

	callCtx, cancel = p.callCtx(ctx)
	err = p.store.RecordChunks(callCtx, rows)
	cancel()
	if err != nil {
		serr := asStorageError("record_chunks", err)
		serr.SourceID = sourceID
		serr.Orphaned = true
		logger.Error().Err(serr).Str("orphaned_source", sourceID).
			Msg("chunk persistence failed after source row was committed")
		return nil, serr
	}

	logger.Info().Str("source_id", sourceID).Int("pages", content.PageCount).
		Int("chunks", len(rows)).Msg("document ingested")
	return &Result{SourceID: sourceID, PageCount: content.PageCount, ChunkCount: len(rows)}, nil
}

// embedAll embeds every chunk, batched, with bounded concurrency. Results
// land in an index-addressed slice so vector order always matches chunk
// order no matter how batches interleave.
func (p *Pipeline) embedAll(ctx context.Context, chunks []string, logger zerolog.Logger) ([][]float32, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)

	for start := 0; start < len(chunks); start += p.cfg.BatchSize {
		start := start
		end := min(start+p.cfg.BatchSize, len(chunks))
		g.Go(func() error {
			vecs, err := p.embedBatch(gctx, chunks[start:end], logger)
			if err != nil {
				return err
			}
			copy(vectors[start:end], vecs)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// embedBatch calls the embedding provider once, retrying only rate limits
// with exponential backoff. Any other failure, including a per-call
// timeout, escalates immediately.
func (p *Pipeline) embedBatch(ctx context.Context, texts []string, logger zerolog.Logger) ([][]float32, error) {
	attempts := 0
	var lastRL *core.RateLimitError

	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := p.backoff(attempt, lastRL.RetryAfter)
			logger.Warn().Int("attempt", attempt+1).Dur("backoff", delay).
				Msg("embedding rate limited, backing off")
			if err := p.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		callCtx, cancel := p.callCtx(ctx)
		vecs, err := p.embedder.EmbedTexts(callCtx, texts)
		cancel()
		attempts++

		if err == nil {
			if len(vecs) != len(texts) {
				return nil, &core.EmbeddingError{
					Attempts: attempts,
					Err:      fmt.Errorf("got %d vectors for %d texts", len(vecs), len(texts)),
				}
			}
			return vecs, nil
		}

		if errors.As(err, &lastRL) {
			continue
		}
		return nil, &core.EmbeddingError{Attempts: attempts, Err: err}
	}

	return nil, &core.EmbeddingError{Attempts: attempts, Err: lastRL}
}

// backoff doubles per attempt from BackoffBase, adds jitter, and never
// undercuts what the service asked for.
func (p *Pipeline) backoff(attempt int, retryAfter time.Duration) time.Duration {
	base := p.cfg.BackoffBase << (attempt - 1)
	jitter := time.Duration(rand.Int64N(int64(base/2) + 1))
	d := base + jitter
	if retryAfter > d {
		d = retryAfter
	}
	return d
}

func (p *Pipeline) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.cfg.CallTimeout)
}

func asStorageError(op string, err error) *core.StorageError {
	var serr *core.StorageError
	if errors.As(err, &serr) {
		return serr
	}
	return &core.StorageError{Op: op, Err: err}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
