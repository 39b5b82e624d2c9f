package mcp

import (
	"github.com/custodia-labs/ragchat-cli/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Chat runs conversation sessions.
	Chat driving.ChatService

	// Document manages the corpus.
	Document driving.DocumentService

	// Models exposes the configured model deployments.
	Models driving.ModelCatalog
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Chat == nil {
		return ErrMissingChatService
	}
	// Document and Models are optional; the matching tools report
	// their absence at call time.
	return nil
}
