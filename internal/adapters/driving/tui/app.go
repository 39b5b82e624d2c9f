package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/ragchat-cli/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/ragchat-cli/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/ragchat-cli/internal/adapters/driving/tui/views/chat"
	"github.com/custodia-labs/ragchat-cli/internal/adapters/driving/tui/views/models"
)

// Config holds startup options for the TUI.
type Config struct {
	// ModelAlias is the model to open the session with. Empty selects
	// the configured default.
	ModelAlias string
}

// App is the main TUI application following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	// ports provides access to core services via driving ports.
	ports *Ports

	// ctx is the context for cancellation.
	ctx context.Context

	// cfg holds startup options.
	cfg Config

	// styles holds the TUI styles.
	styles *styles.Styles

	// chatView is the conversation view.
	chatView *chat.View

	// modelsView is the model picker view.
	modelsView *models.View

	// currentView tracks which view is active.
	currentView messages.ViewType

	// err holds the last error that occurred.
	err error

	// width and height are terminal dimensions.
	width  int
	height int

	// ready indicates if the app has initialised.
	ready bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new TUI application with the given ports.
func NewApp(ports *Ports, cfg Config) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	chatView := chat.NewView(s, ports.Chat)
	modelsView := models.NewView(s, ports.Models)

	return &App{
		ports:       ports,
		ctx:         context.Background(),
		cfg:         cfg,
		styles:      s,
		chatView:    chatView,
		modelsView:  modelsView,
		currentView: messages.ViewChat,
	}, nil
}

// WithContext sets the context for the app.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	a.chatView.WithContext(ctx)
	a.modelsView.WithContext(ctx)
	return a
}

// Init implements tea.Model.
// It opens the session and runs initial commands.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.EnterAltScreen,
		tea.SetWindowTitle("ragchat"),
		a.chatView.Init(),
		a.createSession(),
	)
}

// createSession opens the chat session.
func (a *App) createSession() tea.Cmd {
	return func() tea.Msg {
		info, err := a.ports.Chat.Create(a.ctx, a.cfg.ModelAlias)
		return messages.SessionCreated{Info: info, Err: err}
	}
}

// Update implements tea.Model.
// It handles messages and updates the model state.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		a.chatView.SetDimensions(msg.Width, msg.Height)
		a.modelsView.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		// Global quit with ctrl+c
		if msg.String() == "ctrl+c" {
			a.chatView.CancelTurn()
			return a, tea.Quit
		}

		// Model picker from anywhere, unless a turn is streaming
		if msg.String() == "ctrl+p" && !a.chatView.Streaming() {
			a.currentView = messages.ViewModels
			a.modelsView.SetCurrent(a.sessionModel())
			return a, a.modelsView.Init()
		}

		switch a.currentView {
		case messages.ViewChat:
			if msg.String() == "?" && a.chatView.InputEmpty() {
				a.currentView = messages.ViewHelp
				return a, nil
			}
			a.chatView, cmd = a.chatView.Update(msg)
			return a, cmd

		case messages.ViewModels:
			a.modelsView, cmd = a.modelsView.Update(msg)
			return a, cmd

		case messages.ViewHelp:
			if msg.Type == tea.KeyEsc || msg.String() == "q" {
				a.currentView = messages.ViewChat
			}
			return a, nil
		}
		return a, nil

	case messages.SessionCreated:
		if msg.Err != nil {
			a.err = msg.Err
			return a, tea.Quit
		}
		a.chatView.SetSession(msg.Info)
		return a, nil

	case messages.ModelChosen:
		return a, a.selectModel(msg.Alias)

	case messages.ModelSelected:
		if msg.Err != nil {
			a.err = msg.Err
			a.modelsView, cmd = a.modelsView.Update(messages.ErrorOccurred{Err: msg.Err})
			return a, cmd
		}
		a.chatView.SetModelAlias(msg.Alias)
		a.currentView = messages.ViewChat
		return a, nil

	case messages.ViewChanged:
		a.currentView = msg.View
		if msg.View == messages.ViewModels {
			return a, a.modelsView.Init()
		}
		return a, nil

	case messages.ErrorOccurred:
		a.err = msg.Err
	}

	// Forward other messages to the active view
	switch a.currentView {
	case messages.ViewChat:
		a.chatView, cmd = a.chatView.Update(msg)
	case messages.ViewModels:
		a.modelsView, cmd = a.modelsView.Update(msg)
	case messages.ViewHelp:
		// Help view doesn't need to handle other messages
	}

	return a, cmd
}

// selectModel applies a model choice to the session.
func (a *App) selectModel(alias string) tea.Cmd {
	return func() tea.Msg {
		err := a.ports.Chat.SelectModel(a.ctx, a.chatView.SessionID(), alias)
		return messages.ModelSelected{Alias: alias, Err: err}
	}
}

// sessionModel returns the alias the session currently uses.
func (a *App) sessionModel() string {
	info, err := a.ports.Chat.Info(a.ctx, a.chatView.SessionID())
	if err != nil {
		return ""
	}
	return info.ModelAlias
}

// View implements tea.Model.
// It renders the current view as a string.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	switch a.currentView {
	case messages.ViewChat:
		return a.chatView.View()
	case messages.ViewModels:
		return a.modelsView.View()
	case messages.ViewHelp:
		return a.viewHelp()
	default:
		return a.chatView.View()
	}
}

// viewHelp renders the help view.
func (a *App) viewHelp() string {
	return `Help

Chat:
  (type)      Enter a question
  enter       Send
  esc         Cancel generation
  ↑/↓         Scroll transcript
  ctrl+p      Pick a model
  ?           Toggle help (empty input)

Models:
  j/k, ↑/↓    Navigate
  enter       Select model
  esc         Back to chat

Global:
  ctrl+c      Quit

[esc] back to chat`
}

// CurrentView returns the current view type.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

// Err returns the last error that occurred.
func (a *App) Err() error {
	return a.err
}

// Ready returns whether the app has been initialised.
func (a *App) Ready() bool {
	return a.ready
}

// SetDimensions sets the terminal dimensions (for testing).
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true
	a.chatView.SetDimensions(width, height)
	a.modelsView.SetDimensions(width, height)
}
