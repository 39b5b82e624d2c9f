package domain

import "time"

// Document represents one ingested document. Documents are immutable
// once ingested; re-uploading the same content produces a new document
// under a new ID rather than mutating the old one.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// SourceName is the name the document was uploaded under
	// (typically the original filename).
	SourceName string

	// Content is the full raw text content.
	Content string

	// UploadedAt is when the document was ingested.
	UploadedAt time.Time
}

// Chunk is a bounded span of document text with its embedding vector.
// Chunks are created in batch during ingestion and never mutated; they
// are deleted only when their owning document is deleted.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocumentID links to the owning Document.
	DocumentID string

	// Content is the text span covered by this chunk.
	Content string

	// Position is the ordinal position within the document.
	Position int

	// Embedding is the vector representation used for similarity search.
	Embedding []float32
}

// RetrievedChunk is a chunk returned from a similarity query together
// with its relevance score and owning document's source name.
type RetrievedChunk struct {
	Chunk Chunk

	// Score is the similarity score; higher means more relevant.
	Score float64

	// SourceName is the display name of the owning document.
	SourceName string
}
