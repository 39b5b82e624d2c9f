package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storemem "github.com/custodia-labs/ragchat-cli/internal/adapters/driven/storage/memory"
	vecmem "github.com/custodia-labs/ragchat-cli/internal/adapters/driven/vector/memory"
	"github.com/custodia-labs/ragchat-cli/internal/chunking"
	"github.com/custodia-labs/ragchat-cli/internal/core/domain"
	"github.com/custodia-labs/ragchat-cli/internal/core/ports/driven"
)

func newIngestionFixture(embedder driven.EmbeddingService) (*IngestionService, *storemem.DocStore, *vecmem.Index) {
	store := storemem.NewDocStore()
	index := vecmem.NewIndex()
	splitter := chunking.New(chunking.WithChunkSize(40), chunking.WithOverlap(10))
	svc := NewIngestionService(splitter, embedder, store, index, nil, IngestionConfig{
		RetryBaseDelay: time.Millisecond,
		RatePerSecond:  1000,
	})
	return svc, store, index
}

func TestIngestion_Success(t *testing.T) {
	svc, store, index := newIngestionFixture(newFakeEmbedder())
	ctx := context.Background()

	content := "The quick brown fox jumps over the lazy dog and keeps running far away."
	got, err := svc.Ingest(ctx, "fox.txt", content)
	require.NoError(t, err)
	require.NotEmpty(t, got.DocumentID)
	require.NotEmpty(t, got.ChunkIDs)

	doc, err := store.GetDocument(ctx, got.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "fox.txt", doc.SourceName)
	assert.Equal(t, content, doc.Content)

	chunks, err := store.GetChunks(ctx, got.DocumentID)
	require.NoError(t, err)
	require.Len(t, chunks, len(got.ChunkIDs))
	for _, c := range chunks {
		assert.NotEmpty(t, c.Embedding)
	}

	assert.Equal(t, len(got.ChunkIDs), index.Len())
}

func TestIngestion_EmptyContent(t *testing.T) {
	svc, _, _ := newIngestionFixture(newFakeEmbedder())

	_, err := svc.Ingest(context.Background(), "empty.txt", "   \n ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIngestion_EmbeddingFailure_LeavesCorpusUnchanged(t *testing.T) {
	embedder := newFakeEmbedder()
	embedder.errs = []error{errors.New("backend rejected input")}

	svc, store, index := newIngestionFixture(embedder)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, "doomed.txt", "some content that will fail to embed")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIngestionFailed)

	docs, err := store.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Equal(t, 0, index.Len())
}

func TestIngestion_RetriesTransientEmbeddingFailure(t *testing.T) {
	embedder := newFakeEmbedder()
	embedder.errs = []error{
		domain.ErrUnavailable,
		domain.ErrUnavailable,
	}

	svc, _, index := newIngestionFixture(embedder)

	got, err := svc.Ingest(context.Background(), "flaky.txt", "short content")
	require.NoError(t, err)
	assert.Equal(t, len(got.ChunkIDs), index.Len())
	assert.Greater(t, embedder.callCount(), 2)
}

func TestIngestion_PersistFailure_CleansUp(t *testing.T) {
	store := storemem.NewDocStore()
	index := vecmem.NewIndex()
	failing := &failingStore{DocStore: store}
	splitter := chunking.New(chunking.WithChunkSize(40), chunking.WithOverlap(0))

	svc := NewIngestionService(splitter, newFakeEmbedder(), failing, index, nil, IngestionConfig{
		RetryBaseDelay: time.Millisecond,
		RatePerSecond:  1000,
	})

	_, err := svc.Ingest(context.Background(), "doomed.txt", "content that persists its document but not its chunks")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIngestionFailed)

	docs, err := store.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Equal(t, 0, index.Len())
}

// failingStore persists documents but rejects chunk writes.
type failingStore struct {
	*storemem.DocStore
}

func (s *failingStore) SaveChunks(context.Context, []domain.Chunk) error {
	return errors.New("disk full")
}

func TestIngestion_Delete_RemovesChunksAndIndexEntries(t *testing.T) {
	svc, store, index := newIngestionFixture(newFakeEmbedder())
	ctx := context.Background()

	got, err := svc.Ingest(ctx, "a.txt", "first document with enough text to produce chunks")
	require.NoError(t, err)
	other, err := svc.Ingest(ctx, "b.txt", "second document also with enough text to chunk")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, got.DocumentID))

	_, err = store.GetDocument(ctx, got.DocumentID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	for _, id := range got.ChunkIDs {
		_, err := store.GetChunk(ctx, id)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	}

	// The other document is untouched.
	assert.Equal(t, len(other.ChunkIDs), index.Len())
	_, err = store.GetDocument(ctx, other.DocumentID)
	assert.NoError(t, err)
}

func TestIngestion_List(t *testing.T) {
	svc, _, _ := newIngestionFixture(newFakeEmbedder())
	ctx := context.Background()

	got, err := svc.Ingest(ctx, "a.txt", "some content for listing")
	require.NoError(t, err)

	summaries, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, got.DocumentID, summaries[0].ID)
	assert.Equal(t, "a.txt", summaries[0].SourceName)
	assert.Equal(t, len(got.ChunkIDs), summaries[0].ChunkCount)
}

func TestIngestion_Reindex(t *testing.T) {
	svc, store, _ := newIngestionFixture(newFakeEmbedder())
	ctx := context.Background()

	got, err := svc.Ingest(ctx, "a.txt", "content that will be reindexed after a restart")
	require.NoError(t, err)

	// Simulate a restart with a fresh in-memory index.
	fresh := vecmem.NewIndex()
	splitter := chunking.New()
	restarted := NewIngestionService(splitter, newFakeEmbedder(), store, fresh, nil, IngestionConfig{})

	count, err := restarted.Reindex(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(got.ChunkIDs), count)
	assert.Equal(t, len(got.ChunkIDs), fresh.Len())
}
