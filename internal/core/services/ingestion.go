package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/ragchat-cli/internal/chunking"
	"github.com/custodia-labs/ragchat-cli/internal/core/domain"
	"github.com/custodia-labs/ragchat-cli/internal/core/ports/driven"
	"github.com/custodia-labs/ragchat-cli/internal/core/ports/driving"
	"github.com/custodia-labs/ragchat-cli/internal/logger"
)

// Ensure IngestionService implements the interface.
var _ driving.DocumentService = (*IngestionService)(nil)

// Ingestion defaults.
const (
	// DefaultEmbedParallelism bounds concurrent embedding calls per ingest.
	DefaultEmbedParallelism = 4

	// DefaultEmbedRetries is the retry bound for one chunk's embedding.
	DefaultEmbedRetries = 3

	// DefaultEmbedRate throttles embedding calls per second across one
	// ingest to avoid overwhelming the backend.
	DefaultEmbedRate = 10
)

// IngestionConfig tunes the ingestion pipeline.
type IngestionConfig struct {
	// Parallelism bounds concurrent embedding calls (default 4).
	Parallelism int

	// MaxRetries bounds retries per chunk embedding (default 3).
	MaxRetries int

	// RatePerSecond throttles embedding calls (default 10).
	RatePerSecond int

	// RetryBaseDelay is the initial backoff delay (default 200ms).
	RetryBaseDelay time.Duration
}

func (c *IngestionConfig) applyDefaults() {
	if c.Parallelism <= 0 {
		c.Parallelism = DefaultEmbedParallelism
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultEmbedRetries
	}
	if c.RatePerSecond <= 0 {
		c.RatePerSecond = DefaultEmbedRate
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 200 * time.Millisecond
	}
}

// IngestionService turns raw documents into persisted, indexed chunk
// sets. An ingest is atomic: on any failure every chunk already
// persisted for the document is cleaned up and the corpus is unchanged.
type IngestionService struct {
	splitter  *chunking.Splitter
	embedder  driven.EmbeddingService
	docStore  driven.DocumentStore
	index     driven.VectorIndex
	telemetry driven.TelemetrySink
	limiter   *rate.Limiter
	cfg       IngestionConfig
}

// NewIngestionService creates an ingestion service.
func NewIngestionService(
	splitter *chunking.Splitter,
	embedder driven.EmbeddingService,
	docStore driven.DocumentStore,
	index driven.VectorIndex,
	telemetry driven.TelemetrySink,
	cfg IngestionConfig,
) *IngestionService {
	cfg.applyDefaults()
	if telemetry == nil {
		telemetry = driven.NoopTelemetry{}
	}
	return &IngestionService{
		splitter:  splitter,
		embedder:  embedder,
		docStore:  docStore,
		index:     index,
		telemetry: telemetry,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Parallelism),
		cfg:       cfg,
	}
}

// Ingest splits, embeds and persists one document.
func (s *IngestionService) Ingest(ctx context.Context, sourceName, content string) (*driving.IngestResult, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("ingest %q: empty content: %w", sourceName, domain.ErrInvalidInput)
	}

	logger.Section("Ingestion")
	started := time.Now()

	doc := chunking.NewDocument(sourceName, content)
	chunks := s.splitter.Split(doc)
	logger.Debug("Ingest %q: %d chunks", sourceName, len(chunks))

	if err := s.embedChunks(ctx, chunks); err != nil {
		s.telemetry.IngestionCompleted(ctx, doc.ID, 0, time.Since(started), err)
		return nil, fmt.Errorf("ingest %q: %w: %w", sourceName, domain.ErrIngestionFailed, err)
	}

	if err := s.persist(ctx, doc, chunks); err != nil {
		s.cleanup(doc.ID, chunks)
		s.telemetry.IngestionCompleted(ctx, doc.ID, 0, time.Since(started), err)
		return nil, fmt.Errorf("ingest %q: %w: %w", sourceName, domain.ErrIngestionFailed, err)
	}

	chunkIDs := make([]string, len(chunks))
	for i, c := range chunks {
		chunkIDs[i] = c.ID
	}

	s.telemetry.IngestionCompleted(ctx, doc.ID, len(chunks), time.Since(started), nil)
	logger.Info("Ingested %q as %s (%d chunks)", sourceName, doc.ID, len(chunks))

	return &driving.IngestResult{DocumentID: doc.ID, ChunkIDs: chunkIDs}, nil
}

// embedChunks fills in chunk embeddings in place, in parallel bounded
// by the configured limit. Each chunk's embedding is retried with
// exponential backoff on transient failure; any chunk exhausting its
// retries fails the whole batch.
func (s *IngestionService) embedChunks(ctx context.Context, chunks []domain.Chunk) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Parallelism)

	for i := range chunks {
		g.Go(func() error {
			if err := s.limiter.Wait(ctx); err != nil {
				return err
			}
			embedding, err := s.embedWithRetry(ctx, chunks[i].Content)
			if err != nil {
				return fmt.Errorf("embed chunk %d: %w", chunks[i].Position, err)
			}
			chunks[i].Embedding = embedding
			return nil
		})
	}

	return g.Wait()
}

// embedWithRetry retries transient embedding failures up to the bound.
func (s *IngestionService) embedWithRetry(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	delay := s.cfg.RetryBaseDelay

	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			logger.Debug("Embedding retry %d/%d after %s", attempt, s.cfg.MaxRetries, delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		embedding, err := s.embedder.Embed(ctx, text)
		if err == nil {
			return embedding, nil
		}
		lastErr = classifyTransient(err)
		if !errors.Is(lastErr, domain.ErrUnavailable) {
			return nil, lastErr
		}
	}

	return nil, lastErr
}

// persist writes the document, its chunks and their index entries.
func (s *IngestionService) persist(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) error {
	if err := s.docStore.SaveDocument(ctx, doc); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	if err := s.docStore.SaveChunks(ctx, chunks); err != nil {
		return fmt.Errorf("save chunks: %w", err)
	}
	for i := range chunks {
		if err := s.index.Add(ctx, chunks[i].ID, chunks[i].Position, chunks[i].Embedding); err != nil {
			return fmt.Errorf("index chunk %s: %w", chunks[i].ID, err)
		}
	}
	return nil
}

// cleanup removes everything persisted for a failed ingest. Runs on a
// fresh context so cancellation of the ingest cannot strand orphans.
func (s *IngestionService) cleanup(documentID string, chunks []domain.Chunk) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for i := range chunks {
		if err := s.index.Delete(ctx, chunks[i].ID); err != nil {
			logger.Warn("Cleanup: delete index entry %s: %v", chunks[i].ID, err)
		}
	}
	if err := s.docStore.DeleteDocument(ctx, documentID); err != nil {
		logger.Warn("Cleanup: delete document %s: %v", documentID, err)
	}
}

// Delete removes a document, its chunks and its index entries.
func (s *IngestionService) Delete(ctx context.Context, documentID string) error {
	chunks, err := s.docStore.GetChunks(ctx, documentID)
	if err != nil {
		return fmt.Errorf("delete %s: %w", documentID, err)
	}
	for i := range chunks {
		if err := s.index.Delete(ctx, chunks[i].ID); err != nil {
			return fmt.Errorf("delete index entry %s: %w", chunks[i].ID, err)
		}
	}
	if err := s.docStore.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete %s: %w", documentID, err)
	}
	logger.Info("Deleted document %s (%d chunks)", documentID, len(chunks))
	return nil
}

// List returns all ingested documents.
func (s *IngestionService) List(ctx context.Context) ([]driving.DocumentSummary, error) {
	docs, err := s.docStore.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	summaries := make([]driving.DocumentSummary, 0, len(docs))
	for i := range docs {
		chunks, err := s.docStore.GetChunks(ctx, docs[i].ID)
		if err != nil {
			return nil, fmt.Errorf("get chunks for %s: %w", docs[i].ID, err)
		}
		summaries = append(summaries, driving.SummariseDocument(docs[i], len(chunks)))
	}
	return summaries, nil
}

// Reindex rebuilds the vector index from the persisted corpus. Called
// at startup when the index lives in memory and the store on disk.
func (s *IngestionService) Reindex(ctx context.Context) (int, error) {
	docs, err := s.docStore.ListDocuments(ctx)
	if err != nil {
		return 0, fmt.Errorf("reindex: %w", err)
	}

	count := 0
	for i := range docs {
		chunks, err := s.docStore.GetChunks(ctx, docs[i].ID)
		if err != nil {
			return count, fmt.Errorf("reindex %s: %w", docs[i].ID, err)
		}
		for j := range chunks {
			if len(chunks[j].Embedding) == 0 {
				continue
			}
			if err := s.index.Add(ctx, chunks[j].ID, chunks[j].Position, chunks[j].Embedding); err != nil {
				return count, fmt.Errorf("reindex chunk %s: %w", chunks[j].ID, err)
			}
			count++
		}
	}
	logger.Debug("Reindexed %d chunks from %d documents", count, len(docs))
	return count, nil
}
