package tui

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragchat-cli/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/ragchat-cli/internal/core/domain"
)

func newTestPorts() *Ports {
	return &Ports{
		Chat:   &MockChatService{},
		Models: &MockModelCatalog{},
	}
}

func TestNewApp_Success(t *testing.T) {
	app, err := NewApp(newTestPorts(), Config{})

	require.NoError(t, err)
	require.NotNil(t, app)
	assert.Equal(t, messages.ViewChat, app.CurrentView())
}

func TestNewApp_InvalidPorts(t *testing.T) {
	app, err := NewApp(&Ports{Models: &MockModelCatalog{}}, Config{})

	assert.Error(t, err)
	assert.Nil(t, app)
}

func TestApp_WithContext(t *testing.T) {
	app, _ := NewApp(newTestPorts(), Config{})

	type contextKey string
	ctx := context.WithValue(context.Background(), contextKey("key"), "value")
	result := app.WithContext(ctx)

	assert.Equal(t, app, result)
}

func TestApp_Init(t *testing.T) {
	app, _ := NewApp(newTestPorts(), Config{})

	cmd := app.Init()

	assert.NotNil(t, cmd)
}

func TestApp_Update_WindowSize(t *testing.T) {
	app, _ := NewApp(newTestPorts(), Config{})

	model, cmd := app.Update(tea.WindowSizeMsg{Width: 80, Height: 24})

	assert.Equal(t, app, model)
	assert.Nil(t, cmd)
	assert.True(t, app.Ready())
}

func TestApp_Update_SessionCreated(t *testing.T) {
	app, _ := NewApp(newTestPorts(), Config{})

	info := &domain.SessionInfo{ID: "sess-9", ModelAlias: "smart"}
	_, cmd := app.Update(messages.SessionCreated{Info: info})

	assert.Nil(t, cmd)
	assert.Equal(t, "sess-9", app.chatView.SessionID())
}

func TestApp_Update_SessionCreatedError_Quits(t *testing.T) {
	app, _ := NewApp(newTestPorts(), Config{})

	_, cmd := app.Update(messages.SessionCreated{Err: domain.ErrUnknownModel})

	require.NotNil(t, cmd)
	assert.ErrorIs(t, app.Err(), domain.ErrUnknownModel)
}

func TestApp_CtrlP_OpensModelPicker(t *testing.T) {
	app, _ := NewApp(newTestPorts(), Config{})
	app.SetDimensions(80, 24)

	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyCtrlP})

	assert.Equal(t, messages.ViewModels, app.CurrentView())
	assert.NotNil(t, cmd)
}

func TestApp_ModelChosen_SelectsAndReturnsToChat(t *testing.T) {
	var selected string
	ports := newTestPorts()
	ports.Chat = &MockChatService{
		SelectModelFunc: func(_ context.Context, _, alias string) error {
			selected = alias
			return nil
		},
	}
	app, _ := NewApp(ports, Config{})
	app.SetDimensions(80, 24)
	app.Update(tea.KeyMsg{Type: tea.KeyCtrlP})

	_, cmd := app.Update(messages.ModelChosen{Alias: "smart"})
	require.NotNil(t, cmd)
	msg := cmd()

	_, _ = app.Update(msg)

	assert.Equal(t, "smart", selected)
	assert.Equal(t, messages.ViewChat, app.CurrentView())
}

func TestApp_ModelSelected_ErrorStaysInPicker(t *testing.T) {
	app, _ := NewApp(newTestPorts(), Config{})
	app.SetDimensions(80, 24)
	app.Update(tea.KeyMsg{Type: tea.KeyCtrlP})

	_, _ = app.Update(messages.ModelSelected{Alias: "ghost", Err: domain.ErrUnknownModel})

	assert.Equal(t, messages.ViewModels, app.CurrentView())
	assert.ErrorIs(t, app.Err(), domain.ErrUnknownModel)
}

func TestApp_HelpToggle(t *testing.T) {
	app, _ := NewApp(newTestPorts(), Config{})
	app.SetDimensions(80, 24)

	app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'?'}})
	assert.Equal(t, messages.ViewHelp, app.CurrentView())
	assert.Contains(t, app.View(), "ctrl+c")

	app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, messages.ViewChat, app.CurrentView())
}

func TestApp_View_NotReady(t *testing.T) {
	app, _ := NewApp(newTestPorts(), Config{})

	assert.Equal(t, "Initialising...", app.View())
}

func TestApp_View_Chat(t *testing.T) {
	app, _ := NewApp(newTestPorts(), Config{})
	app.SetDimensions(80, 24)

	out := app.View()

	assert.Contains(t, out, "ragchat")
}
