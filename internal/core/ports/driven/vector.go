package driven

import "context"

// VectorIndex provides semantic similarity search operations.
// Implementations must support concurrent reads and writes: a single
// add or delete appears atomic to concurrent queries. Incremental
// addition never requires a rebuild.
type VectorIndex interface {
	// Add inserts a vector for the given chunk ID. Position is the
	// chunk's ordinal within its document; it breaks score ties in
	// Search results.
	Add(ctx context.Context, chunkID string, position int, embedding []float32) error

	// Delete removes a vector from the index. Deleting an absent ID is
	// a no-op.
	Delete(ctx context.Context, chunkID string) error

	// Search finds the k nearest neighbours to the query vector,
	// ordered by similarity with score ties broken by earlier
	// position. An empty index yields an empty result, never an error.
	Search(ctx context.Context, query []float32, k int) ([]VectorHit, error)

	// Close releases resources.
	Close() error
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Position is the chunk's ordinal within its document.
	Position int

	// Similarity is the cosine similarity score (0-1).
	Similarity float64
}
