package cli

import (
	"context"
	"time"

	"github.com/custodia-labs/ragchat-cli/internal/core/domain"
	"github.com/custodia-labs/ragchat-cli/internal/core/ports/driving"
)

// setupTestServices swaps the package-level services for fakes and
// returns a cleanup that restores the originals.
func setupTestServices() func() {
	origChat := chatService
	origDocument := documentService
	origModels := modelCatalog

	chatService = &fakeChatService{}
	documentService = &fakeDocumentService{}
	modelCatalog = &fakeModelCatalog{}

	return func() {
		chatService = origChat
		documentService = origDocument
		modelCatalog = origModels
	}
}

type fakeChatService struct {
	sendErr   error
	lastSent  string
	fragments []string
}

var _ driving.ChatService = (*fakeChatService)(nil)

func (f *fakeChatService) Create(_ context.Context, modelAlias string) (*domain.SessionInfo, error) {
	if modelAlias == "" {
		modelAlias = "fast"
	}
	return &domain.SessionInfo{ID: "sess-1", ModelAlias: modelAlias, Status: domain.SessionIdle}, nil
}

func (f *fakeChatService) Send(_ context.Context, _, message string, onFragment func(string) error) (*driving.TurnResult, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.lastSent = message
	fragments := f.fragments
	if fragments == nil {
		fragments = []string{"The answer is 42 [1]."}
	}
	var full string
	for _, fr := range fragments {
		full += fr
		if onFragment != nil {
			if err := onFragment(fr); err != nil {
				return nil, err
			}
		}
	}
	return &driving.TurnResult{
		Assistant: domain.Turn{Role: domain.RoleAssistant, Content: full, CitedChunkIDs: []string{"c-1"}},
		Citations: []driving.Citation{{Marker: 1, ChunkID: "c-1", SourceName: "guide.md"}},
	}, nil
}

func (f *fakeChatService) SelectModel(context.Context, string, string) error { return nil }

func (f *fakeChatService) History(context.Context, string) ([]domain.Turn, error) { return nil, nil }

func (f *fakeChatService) Info(_ context.Context, sessionID string) (*domain.SessionInfo, error) {
	return &domain.SessionInfo{ID: sessionID, Status: domain.SessionIdle}, nil
}

func (f *fakeChatService) Close(context.Context, string) error { return nil }

type fakeDocumentService struct {
	deleted   []string
	ingested  []string
	deleteErr error
}

var _ driving.DocumentService = (*fakeDocumentService)(nil)

func (f *fakeDocumentService) Ingest(_ context.Context, sourceName, _ string) (*driving.IngestResult, error) {
	f.ingested = append(f.ingested, sourceName)
	return &driving.IngestResult{DocumentID: "doc-1", ChunkIDs: []string{"c-1", "c-2"}}, nil
}

func (f *fakeDocumentService) Delete(_ context.Context, documentID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, documentID)
	return nil
}

func (f *fakeDocumentService) List(context.Context) ([]driving.DocumentSummary, error) {
	return []driving.DocumentSummary{
		{ID: "doc-1", SourceName: "guide.md", ChunkCount: 3, UploadedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
		{ID: "doc-2", SourceName: "notes.txt", ChunkCount: 1, UploadedAt: time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)},
	}, nil
}

type fakeModelCatalog struct{}

var _ driving.ModelCatalog = (*fakeModelCatalog)(nil)

func (f *fakeModelCatalog) List(context.Context) ([]domain.ModelDeployment, error) {
	return []domain.ModelDeployment{
		{Alias: "fast", Handle: "gpt-4o-mini", Provider: "openai", Capabilities: []string{domain.CapabilityChat, domain.CapabilityStreaming}},
		{Alias: "smart", Handle: "gpt-4o", Provider: "openai", Capacity: 10},
	}, nil
}

func (f *fakeModelCatalog) Resolve(_ context.Context, alias string) (domain.ModelDeployment, error) {
	if alias == "" || alias == "fast" {
		return domain.ModelDeployment{Alias: "fast", Handle: "gpt-4o-mini", Provider: "openai"}, nil
	}
	if alias == "smart" {
		return domain.ModelDeployment{Alias: "smart", Handle: "gpt-4o", Provider: "openai"}, nil
	}
	return domain.ModelDeployment{}, domain.ErrUnknownModel
}
