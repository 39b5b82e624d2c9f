package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/ragchat-cli/internal/core/domain"
)

// DocumentService ingests and manages the document corpus.
type DocumentService interface {
	// Ingest splits, embeds and persists one document. Atomic: on any
	// failure the corpus is unchanged and the error wraps
	// domain.ErrIngestionFailed.
	Ingest(ctx context.Context, sourceName, content string) (*IngestResult, error)

	// Delete removes a document, its chunks and its index entries.
	Delete(ctx context.Context, documentID string) error

	// List returns all ingested documents.
	List(ctx context.Context) ([]DocumentSummary, error)
}

// IngestResult reports a successful ingest.
type IngestResult struct {
	DocumentID string
	ChunkIDs   []string
}

// DocumentSummary is the list-view projection of a document.
type DocumentSummary struct {
	ID         string
	SourceName string
	ChunkCount int
	UploadedAt time.Time
}

// SummariseDocument builds a summary from a document and its chunks.
func SummariseDocument(doc domain.Document, chunkCount int) DocumentSummary {
	return DocumentSummary{
		ID:         doc.ID,
		SourceName: doc.SourceName,
		ChunkCount: chunkCount,
		UploadedAt: doc.UploadedAt,
	}
}
