package ingestion_engine

import (
	"strings"
)

// Default chunking parameters, in characters.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// SplitBlocks joins the extracted page blocks in order and splits the result
// into overlapping chunks. An empty input yields an empty chunk sequence.
func SplitBlocks(blocks []string, chunkSize, overlap int) []string {
	var nonEmpty []string
	for _, b := range blocks {
		if t := strings.TrimSpace(b); t != "" {
			nonEmpty = append(nonEmpty, t)
		}
	}
	if len(nonEmpty) == 0 {
		return nil
	}
	return ChunkText(strings.Join(nonEmpty, "\n"), chunkSize, overlap)
}

// ChunkText splits text into chunks of up to chunkSize characters, each
// chunk starting chunkSize-overlap characters after the previous one, so
// adjacent chunks share a span of text and meaning is not severed at a
// boundary. Cuts prefer a space, newline or period near the chunk end; the
// lookback window is capped at the overlap so the shared span can never
// shrink to nothing.
func ChunkText(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 2
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= chunkSize {
		return []string{text}
	}

	lookback := chunkSize / 10
	if lookback > overlap {
		lookback = overlap
	}

	var chunks []string
	for start := 0; start < len(text); start += chunkSize - overlap {
		end := start + chunkSize
		if end >= len(text) {
			end = len(text)
		} else if lookback > 0 {
			// Prefer a natural break within the lookback window over a
			// hard character cut.
			for i := end - 1; i >= end-lookback && i > start; i-- {
				if text[i] == ' ' || text[i] == '\n' || text[i] == '.' {
					end = i + 1
					break
				}
			}
		}

		if chunk := strings.TrimSpace(text[start:end]); chunk != "" {
			chunks = append(chunks, chunk)
		}
	}

	return chunks
}
