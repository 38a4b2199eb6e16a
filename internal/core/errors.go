package core

import (
	"fmt"
	"time"
)

// ExtractionError reports an input that could not be parsed as its declared
// source type. It is fatal to the whole ingestion; no partial document is
// accepted.
type ExtractionError struct {
	FileName   string
	SourceType string
	Err        error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s (%s): %v", e.FileName, e.SourceType, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// RateLimitError signals that the embedding service throttled the call.
// Unlike other embedding failures it is retryable; RetryAfter is a hint from
// the service and may be zero.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("embedding service rate limited: %v", e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// EmbeddingError reports a non-retryable embedding failure, or a rate limit
// that survived every retry attempt. Attempts counts how many calls were
// made before giving up.
type EmbeddingError struct {
	Attempts int
	Err      error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// StorageError reports a persistence failure. When Orphaned is true the
// source row was already written and now sits with zero chunks; SourceID
// identifies it so a reconciliation job can retry or clean up.
type StorageError struct {
	Op       string
	SourceID string
	Orphaned bool
	Err      error
}

func (e *StorageError) Error() string {
	if e.Orphaned {
		return fmt.Sprintf("storage %s failed for source %s (source row orphaned): %v", e.Op, e.SourceID, e.Err)
	}
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
