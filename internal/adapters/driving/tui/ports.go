// Package tui provides the interactive chat terminal interface for ragchat.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/ragchat-cli/internal/core/ports/driving"
)

// Ports aggregates the driving port interfaces required by the TUI.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Chat runs conversation sessions.
	Chat driving.ChatService

	// Models exposes the configured model deployments.
	Models driving.ModelCatalog
}

// Validate ensures all required ports are set.
// Returns an error if any port is nil.
func (p *Ports) Validate() error {
	if p.Chat == nil {
		return ErrMissingChatService
	}
	if p.Models == nil {
		return ErrMissingModelCatalog
	}
	return nil
}
