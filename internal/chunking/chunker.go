// Package chunking provides a fixed-size, overlap-aware text splitter.
package chunking

import (
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/ragchat-cli/internal/core/domain"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// Splitter splits document content into bounded, overlapping chunks.
// The overlap carries context across hard boundaries so no semantic
// unit is cut without surrounding text.
type Splitter struct {
	chunkSize int
	overlap   int
}

// Option configures the splitter.
type Option func(*Splitter)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(s *Splitter) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(s *Splitter) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

// New creates a new splitter with the given options.
func New(opts ...Option) *Splitter {
	s := &Splitter{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(s)
	}

	// Ensure overlap doesn't exceed chunk size
	if s.overlap >= s.chunkSize {
		s.overlap = s.chunkSize / 4
	}

	return s
}

// Split cuts the document content into chunks. Empty content produces
// no chunks. Boundaries are computed over runes so multi-byte text is
// never cut mid-character.
func (s *Splitter) Split(doc *domain.Document) []domain.Chunk {
	if doc.Content == "" {
		return nil
	}

	runes := []rune(doc.Content)
	contentLen := len(runes)

	estimatedChunks := (contentLen / (s.chunkSize - s.overlap)) + 1
	chunks := make([]domain.Chunk, 0, estimatedChunks)

	position := 0
	start := 0

	for start < contentLen {
		end := start + s.chunkSize
		if end > contentLen {
			end = contentLen
		}

		chunks = append(chunks, domain.Chunk{
			ID:         uuid.New().String(),
			DocumentID: doc.ID,
			Content:    string(runes[start:end]),
			Position:   position,
		})
		position++

		// Move start forward by (chunkSize - overlap)
		start += s.chunkSize - s.overlap
	}

	return chunks
}

// NewDocument builds a Document for the given source name and content.
func NewDocument(sourceName, content string) *domain.Document {
	return &domain.Document{
		ID:         uuid.New().String(),
		SourceName: sourceName,
		Content:    content,
		UploadedAt: time.Now().UTC(),
	}
}
