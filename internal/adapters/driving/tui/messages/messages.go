// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"github.com/custodia-labs/ragchat-cli/internal/core/domain"
	"github.com/custodia-labs/ragchat-cli/internal/core/ports/driving"
)

// SessionCreated carries the result of opening a chat session.
type SessionCreated struct {
	Info *domain.SessionInfo
	Err  error
}

// Fragment carries one streamed piece of the assistant reply.
type Fragment struct {
	Text string
}

// TurnCompleted carries the final result of a turn. Err is set when
// the turn failed; a cancelled turn carries context.Canceled.
type TurnCompleted struct {
	Result *driving.TurnResult
	Err    error
}

// ModelsLoaded carries the model catalog snapshot to the picker.
type ModelsLoaded struct {
	Deployments []domain.ModelDeployment
	Err         error
}

// ModelChosen is sent when the user picks a model in the picker.
type ModelChosen struct {
	Alias string
}

// ModelSelected carries the result of applying a model selection to
// the session.
type ModelSelected struct {
	Alias string
	Err   error
}

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// ErrorOccurred carries an error to the active view.
type ErrorOccurred struct {
	Err error
}

// Quit signals the application to exit.
type Quit struct{}

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewChat is the conversation view.
	ViewChat ViewType = iota
	// ViewModels is the model picker.
	ViewModels
	// ViewHelp is the help/keybindings view.
	ViewHelp
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewChat:
		return "chat"
	case ViewModels:
		return "models"
	case ViewHelp:
		return "help"
	default:
		return "unknown"
	}
}
