package mcp

import (
	"context"

	"github.com/custodia-labs/ragchat-cli/internal/core/domain"
	"github.com/custodia-labs/ragchat-cli/internal/core/ports/driving"
)

// mockChatService is a mock implementation of driving.ChatService.
type mockChatService struct {
	info      *domain.SessionInfo
	result    *driving.TurnResult
	createErr error
	sendErr   error

	createdWith string
	sentTo      string
	sentMessage string
}

func (m *mockChatService) Create(_ context.Context, modelAlias string) (*domain.SessionInfo, error) {
	m.createdWith = modelAlias
	if m.createErr != nil {
		return nil, m.createErr
	}
	if m.info != nil {
		return m.info, nil
	}
	return &domain.SessionInfo{ID: "sess-1", ModelAlias: "fast", Status: domain.SessionIdle}, nil
}

func (m *mockChatService) Send(_ context.Context, sessionID, message string, onFragment func(string) error) (*driving.TurnResult, error) {
	m.sentTo = sessionID
	m.sentMessage = message
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	if m.result != nil {
		if onFragment != nil {
			if err := onFragment(m.result.Assistant.Content); err != nil {
				return nil, err
			}
		}
		return m.result, nil
	}
	return &driving.TurnResult{
		Assistant: domain.Turn{Role: domain.RoleAssistant, Content: "reply"},
	}, nil
}

func (m *mockChatService) SelectModel(_ context.Context, _, _ string) error {
	return nil
}

func (m *mockChatService) History(_ context.Context, _ string) ([]domain.Turn, error) {
	return nil, nil
}

func (m *mockChatService) Info(_ context.Context, sessionID string) (*domain.SessionInfo, error) {
	return &domain.SessionInfo{ID: sessionID}, nil
}

func (m *mockChatService) Close(_ context.Context, _ string) error {
	return nil
}

// mockDocumentService is a mock implementation of driving.DocumentService.
type mockDocumentService struct {
	ingestResult *driving.IngestResult
	documents    []driving.DocumentSummary
	err          error

	deletedID string
}

func (m *mockDocumentService) Ingest(_ context.Context, _, _ string) (*driving.IngestResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.ingestResult != nil {
		return m.ingestResult, nil
	}
	return &driving.IngestResult{DocumentID: "doc-1", ChunkIDs: []string{"c-1"}}, nil
}

func (m *mockDocumentService) Delete(_ context.Context, documentID string) error {
	if m.err != nil {
		return m.err
	}
	m.deletedID = documentID
	return nil
}

func (m *mockDocumentService) List(_ context.Context) ([]driving.DocumentSummary, error) {
	return m.documents, m.err
}

// mockModelCatalog is a mock implementation of driving.ModelCatalog.
type mockModelCatalog struct {
	deployments []domain.ModelDeployment
	defaultDep  domain.ModelDeployment
	err         error
}

func (m *mockModelCatalog) List(_ context.Context) ([]domain.ModelDeployment, error) {
	return m.deployments, m.err
}

func (m *mockModelCatalog) Resolve(_ context.Context, _ string) (domain.ModelDeployment, error) {
	if m.err != nil {
		return domain.ModelDeployment{}, m.err
	}
	return m.defaultDep, nil
}
