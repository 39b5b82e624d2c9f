package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/custodia-labs/ragchat-cli/internal/core/domain"
	"github.com/custodia-labs/ragchat-cli/internal/core/ports/driven"
	"github.com/custodia-labs/ragchat-cli/internal/logger"
)

// DefaultRetrievalTimeout bounds one retrieval round trip (query
// embedding plus index search).
const DefaultRetrievalTimeout = 15 * time.Second

// RetrievalService answers similarity queries over the corpus: it
// embeds the query, searches the vector index and hydrates the hits
// from the document store.
type RetrievalService struct {
	docStore  driven.DocumentStore
	index     driven.VectorIndex
	embedder  driven.EmbeddingService
	telemetry driven.TelemetrySink
	timeout   time.Duration
}

// NewRetrievalService creates a retrieval service.
func NewRetrievalService(
	docStore driven.DocumentStore,
	index driven.VectorIndex,
	embedder driven.EmbeddingService,
	telemetry driven.TelemetrySink,
) *RetrievalService {
	if telemetry == nil {
		telemetry = driven.NoopTelemetry{}
	}
	return &RetrievalService{
		docStore:  docStore,
		index:     index,
		embedder:  embedder,
		telemetry: telemetry,
		timeout:   DefaultRetrievalTimeout,
	}
}

// SetTimeout overrides the per-query deadline. Useful for tests.
func (s *RetrievalService) SetTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

// Retrieve returns the top-k most relevant chunks for the query,
// ordered by descending score with ties broken by ordinal position.
// An empty corpus yields an empty result, never an error.
func (s *RetrievalService) Retrieve(ctx context.Context, query string, k int) ([]domain.RetrievedChunk, error) {
	if k < 1 {
		return nil, fmt.Errorf("retrieve: k must be >= 1: %w", domain.ErrInvalidInput)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", classifyTransient(err))
	}

	hits, err := s.index.Search(ctx, embedding, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", classifyTransient(err))
	}

	results := make([]domain.RetrievedChunk, 0, len(hits))
	for _, hit := range hits {
		chunk, err := s.docStore.GetChunk(ctx, hit.ChunkID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// Chunk deleted between search and hydration, skip it.
				continue
			}
			return nil, fmt.Errorf("get chunk %s: %w", hit.ChunkID, err)
		}

		sourceName := ""
		if doc, err := s.docStore.GetDocument(ctx, chunk.DocumentID); err == nil {
			sourceName = doc.SourceName
		}

		results = append(results, domain.RetrievedChunk{
			Chunk:      *chunk,
			Score:      hit.Similarity,
			SourceName: sourceName,
		})
	}

	// Deterministic order: score desc, then ordinal position asc, then
	// chunk ID as a final stable key.
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Chunk.Position != results[j].Chunk.Position {
			return results[i].Chunk.Position < results[j].Chunk.Position
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})

	elapsed := time.Since(started)
	s.telemetry.RetrievalCompleted(ctx, len(results), elapsed)
	logger.Debug("Retrieval: %d hits for k=%d in %s", len(results), k, elapsed)

	return results, nil
}

// classifyTransient maps deadline expiry to the transient error class
// so callers treat timeouts as retryable unavailability.
func classifyTransient(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", domain.ErrUnavailable, err)
	}
	return err
}
