package mcp

import (
	"context"
	"errors"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ChatInput is the input schema for the chat tool.
type ChatInput struct {
	Message   string `json:"message" jsonschema:"the question to ask about the ingested documents"`
	SessionID string `json:"session_id,omitempty" jsonschema:"session to continue; omit to start a new conversation"`
	Model     string `json:"model,omitempty" jsonschema:"model alias for a new session (default from config)"`
}

// ChatOutput is the output schema for the chat tool.
type ChatOutput struct {
	Reply     string           `json:"reply"`
	SessionID string           `json:"session_id"`
	Citations []CitationOutput `json:"citations,omitempty"`
}

// CitationOutput links a citation marker in the reply to its source.
type CitationOutput struct {
	Marker     int    `json:"marker"`
	ChunkID    string `json:"chunk_id"`
	SourceName string `json:"source_name"`
}

// IngestInput is the input schema for the ingest_document tool.
type IngestInput struct {
	SourceName string `json:"source_name" jsonschema:"display name for the document, e.g. a file name"`
	Content    string `json:"content" jsonschema:"the full document text to ingest"`
}

// IngestOutput is the output schema for the ingest_document tool.
type IngestOutput struct {
	DocumentID string `json:"document_id"`
	ChunkCount int    `json:"chunk_count"`
}

// DeleteInput is the input schema for the delete_document tool.
type DeleteInput struct {
	DocumentID string `json:"document_id" jsonschema:"the document to remove from the corpus"`
}

// DeleteOutput is the output schema for the delete_document tool.
type DeleteOutput struct {
	Deleted bool `json:"deleted"`
}

// ListModelsInput is the input schema for the list_models tool.
type ListModelsInput struct{}

// ListModelsOutput is the output schema for the list_models tool.
type ListModelsOutput struct {
	Models  []ModelOutput `json:"models"`
	Default string        `json:"default,omitempty"`
}

// ModelOutput represents one configured model deployment.
type ModelOutput struct {
	Alias        string   `json:"alias"`
	Handle       string   `json:"handle"`
	Provider     string   `json:"provider"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.inner, &mcp.Tool{
		Name:        "chat",
		Description: "Ask a question about the ingested documents; the reply cites sources as [n] markers",
	}, s.handleChat)

	mcp.AddTool(s.inner, &mcp.Tool{
		Name:        "ingest_document",
		Description: "Add a document to the searchable corpus",
	}, s.handleIngest)

	mcp.AddTool(s.inner, &mcp.Tool{
		Name:        "delete_document",
		Description: "Remove a document and its chunks from the corpus",
	}, s.handleDelete)

	mcp.AddTool(s.inner, &mcp.Tool{
		Name:        "list_models",
		Description: "List the configured model deployments",
	}, s.handleListModels)
}

// handleChat handles the chat tool invocation. A missing session_id
// opens a new session; the returned session_id continues it.
func (s *Server) handleChat(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ChatInput,
) (*mcp.CallToolResult, ChatOutput, error) {
	if strings.TrimSpace(input.Message) == "" {
		return nil, ChatOutput{}, errors.New("message is required")
	}

	sessionID := input.SessionID
	if sessionID == "" {
		info, err := s.ports.Chat.Create(ctx, input.Model)
		if err != nil {
			return nil, ChatOutput{}, err
		}
		sessionID = info.ID
	}

	result, err := s.ports.Chat.Send(ctx, sessionID, input.Message, nil)
	if err != nil {
		return nil, ChatOutput{}, err
	}

	output := ChatOutput{
		Reply:     result.Assistant.Content,
		SessionID: sessionID,
		Citations: make([]CitationOutput, len(result.Citations)),
	}
	for i, c := range result.Citations {
		output.Citations[i] = CitationOutput{
			Marker:     c.Marker,
			ChunkID:    c.ChunkID,
			SourceName: c.SourceName,
		}
	}

	return nil, output, nil
}

// handleIngest handles the ingest_document tool invocation.
func (s *Server) handleIngest(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestInput,
) (*mcp.CallToolResult, IngestOutput, error) {
	if s.ports.Document == nil {
		return nil, IngestOutput{}, errors.New("document service not available")
	}

	result, err := s.ports.Document.Ingest(ctx, input.SourceName, input.Content)
	if err != nil {
		return nil, IngestOutput{}, err
	}

	return nil, IngestOutput{
		DocumentID: result.DocumentID,
		ChunkCount: len(result.ChunkIDs),
	}, nil
}

// handleDelete handles the delete_document tool invocation.
func (s *Server) handleDelete(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DeleteInput,
) (*mcp.CallToolResult, DeleteOutput, error) {
	if s.ports.Document == nil {
		return nil, DeleteOutput{}, errors.New("document service not available")
	}

	if err := s.ports.Document.Delete(ctx, input.DocumentID); err != nil {
		return nil, DeleteOutput{}, err
	}

	return nil, DeleteOutput{Deleted: true}, nil
}

// handleListModels handles the list_models tool invocation.
func (s *Server) handleListModels(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ ListModelsInput,
) (*mcp.CallToolResult, ListModelsOutput, error) {
	if s.ports.Models == nil {
		return nil, ListModelsOutput{}, errors.New("model catalog not available")
	}

	deployments, err := s.ports.Models.List(ctx)
	if err != nil {
		return nil, ListModelsOutput{}, err
	}

	output := ListModelsOutput{
		Models: make([]ModelOutput, len(deployments)),
	}
	for i, d := range deployments {
		output.Models[i] = ModelOutput{
			Alias:        d.Alias,
			Handle:       d.Handle,
			Provider:     d.Provider,
			Capabilities: d.Capabilities,
		}
	}

	if def, err := s.ports.Models.Resolve(ctx, ""); err == nil {
		output.Default = def.Alias
	}

	return nil, output, nil
}
