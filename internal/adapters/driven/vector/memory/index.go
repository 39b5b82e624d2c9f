// Package memory provides an in-memory cosine-similarity vector index.
// It scans the whole corpus per query, which is fine for the corpus
// sizes a single workstation holds.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/ragchat-cli/internal/core/domain"
	"github.com/custodia-labs/ragchat-cli/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// entry stores one vector with its precomputed norm and the chunk's
// ordinal position, used to break score ties.
type entry struct {
	vector   []float32
	norm     float64
	position int
}

// Index is a thread-safe brute-force cosine similarity index.
type Index struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{entries: make(map[string]entry)}
}

// Add inserts or replaces the vector for a chunk ID.
func (ix *Index) Add(_ context.Context, chunkID string, position int, embedding []float32) error {
	if len(embedding) == 0 {
		return fmt.Errorf("add %s: empty embedding: %w", chunkID, domain.ErrInvalidInput)
	}
	vec := make([]float32, len(embedding))
	copy(vec, embedding)

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.entries[chunkID] = entry{vector: vec, norm: norm(vec), position: position}
	return nil
}

// Delete removes a vector. Deleting an absent ID is a no-op.
func (ix *Index) Delete(_ context.Context, chunkID string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	delete(ix.entries, chunkID)
	return nil
}

// Search returns the k nearest neighbours by cosine similarity,
// highest first. Score ties go to the chunk with the earlier ordinal
// position, so truncating to k never drops an earlier chunk in favour
// of an equally-scored later one. An empty index yields an empty
// result.
func (ix *Index) Search(_ context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	if k < 1 {
		return nil, fmt.Errorf("search: k must be >= 1: %w", domain.ErrInvalidInput)
	}

	qnorm := norm(query)
	if qnorm == 0 {
		return nil, fmt.Errorf("search: zero query vector: %w", domain.ErrInvalidInput)
	}

	ix.mu.RLock()
	hits := make([]driven.VectorHit, 0, len(ix.entries))
	for id, e := range ix.entries {
		if len(e.vector) != len(query) {
			continue
		}
		hits = append(hits, driven.VectorHit{
			ChunkID:    id,
			Position:   e.position,
			Similarity: dot(query, e.vector) / (qnorm * e.norm),
		})
	}
	ix.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		if hits[i].Position != hits[j].Position {
			return hits[i].Position < hits[j].Position
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Len returns the number of indexed vectors.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Close implements driven.VectorIndex. Nothing to release.
func (ix *Index) Close() error {
	return nil
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
