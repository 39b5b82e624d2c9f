// Package chat provides the conversation view for the TUI.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/ragchat-cli/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/ragchat-cli/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/ragchat-cli/internal/core/domain"
	"github.com/custodia-labs/ragchat-cli/internal/core/ports/driving"
)

// streamEvent is one item produced by an in-flight turn: either a
// fragment or the terminal result.
type streamEvent struct {
	fragment string
	result   *driving.TurnResult
	err      error
	done     bool
}

// entry is one rendered transcript block.
type entry struct {
	role      domain.Role
	content   string
	citations []driving.Citation
}

// View is the conversation view: transcript viewport on top, message
// input at the bottom.
type View struct {
	styles   *styles.Styles
	input    textinput.Model
	viewport viewport.Model

	chat driving.ChatService
	ctx  context.Context

	sessionID  string
	modelAlias string

	entries   []entry
	streaming bool
	partial   string
	events    chan streamEvent
	cancel    context.CancelFunc
	err       error

	width  int
	height int
	ready  bool
}

// NewView creates a new chat view.
func NewView(s *styles.Styles, chat driving.ChatService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}

	ti := textinput.New()
	ti.Placeholder = "Ask about your documents..."
	ti.Focus()
	ti.CharLimit = 4096
	ti.Width = 70

	vp := viewport.New(80, 16)

	return &View{
		styles:   s,
		input:    ti,
		viewport: vp,
		chat:     chat,
		ctx:      context.Background(),
		width:    80,
		height:   24,
	}
}

// WithContext sets the context for the view.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// SetSession binds the view to a session.
func (v *View) SetSession(info *domain.SessionInfo) {
	v.sessionID = info.ID
	v.modelAlias = info.ModelAlias
}

// SetModelAlias updates the displayed model name.
func (v *View) SetModelAlias(alias string) {
	v.modelAlias = alias
}

// SessionID returns the bound session ID.
func (v *View) SessionID() string {
	return v.sessionID
}

// Streaming reports whether a turn is in flight.
func (v *View) Streaming() bool {
	return v.streaming
}

// Err returns the last error, if any.
func (v *View) Err() error {
	return v.err
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the chat view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.Fragment:
		v.partial += msg.Text
		v.refreshTranscript()
		return v, v.listen()

	case messages.TurnCompleted:
		v.finishTurn(msg)
		return v, nil

	case messages.ErrorOccurred:
		v.err = msg.Err
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// handleKeyMsg processes keyboard input.
func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	//nolint:exhaustive // handling only relevant key types
	switch msg.Type {
	case tea.KeyEsc:
		if v.streaming {
			v.CancelTurn()
			return v, v.listen()
		}
		return v, nil

	case tea.KeyEnter:
		if v.streaming {
			return v, nil
		}
		text := strings.TrimSpace(v.input.Value())
		if text == "" {
			return v, nil
		}
		v.input.SetValue("")
		return v, v.sendTurn(text)

	case tea.KeyUp, tea.KeyDown, tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		v.viewport, cmd = v.viewport.Update(msg)
		return v, cmd
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// sendTurn starts a turn: the pipeline runs in a goroutine that feeds
// events into a channel, and listen commands drain it one message at
// a time so fragments render as they arrive.
func (v *View) sendTurn(text string) tea.Cmd {
	v.entries = append(v.entries, entry{role: domain.RoleUser, content: text})
	v.streaming = true
	v.partial = ""
	v.err = nil
	v.refreshTranscript()

	ch := make(chan streamEvent, 16)
	v.events = ch

	ctx, cancel := context.WithCancel(v.ctx)
	v.cancel = cancel

	sessionID := v.sessionID
	chat := v.chat
	go func() {
		defer close(ch)
		result, err := chat.Send(ctx, sessionID, text, func(fragment string) error {
			select {
			case ch <- streamEvent{fragment: fragment}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		ch <- streamEvent{result: result, err: err, done: true}
	}()

	return v.listen()
}

// listen waits for the next stream event and converts it to a message.
func (v *View) listen() tea.Cmd {
	ch := v.events
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok || ev.done {
			return messages.TurnCompleted{Result: ev.result, Err: ev.err}
		}
		return messages.Fragment{Text: ev.fragment}
	}
}

// CancelTurn aborts the in-flight turn. The turn resolves through the
// usual TurnCompleted path carrying context.Canceled.
func (v *View) CancelTurn() {
	if v.cancel != nil {
		v.cancel()
	}
}

// finishTurn resolves the in-flight turn.
func (v *View) finishTurn(msg messages.TurnCompleted) {
	v.streaming = false
	v.partial = ""
	v.events = nil
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}

	switch {
	case msg.Err != nil && errors.Is(msg.Err, context.Canceled):
		v.entries = append(v.entries, entry{
			role:    domain.RoleAssistant,
			content: "(generation cancelled)",
		})
	case msg.Err != nil:
		v.err = msg.Err
	case msg.Result != nil:
		v.entries = append(v.entries, entry{
			role:      domain.RoleAssistant,
			content:   msg.Result.Assistant.Content,
			citations: msg.Result.Citations,
		})
	}
	v.refreshTranscript()
}

// refreshTranscript re-renders the viewport content and scrolls to
// the bottom.
func (v *View) refreshTranscript() {
	v.viewport.SetContent(v.renderTranscript())
	v.viewport.GotoBottom()
}

// renderTranscript renders all entries plus any in-flight partial.
func (v *View) renderTranscript() string {
	if len(v.entries) == 0 && v.partial == "" {
		return v.styles.Muted.Render("No messages yet. Type a question and press Enter.")
	}

	blocks := make([]string, 0, len(v.entries)+1)
	for _, e := range v.entries {
		blocks = append(blocks, v.renderEntry(e))
	}
	if v.streaming {
		label := v.styles.AssistantLabel.Render("Assistant")
		body := v.styles.Normal.Render(v.partial + "▌")
		blocks = append(blocks, label+"\n"+body)
	}
	return strings.Join(blocks, "\n\n")
}

// renderEntry renders one transcript block with speaker label and,
// for assistant turns, the cited sources.
func (v *View) renderEntry(e entry) string {
	var label string
	if e.role == domain.RoleUser {
		label = v.styles.UserLabel.Render("You")
	} else {
		label = v.styles.AssistantLabel.Render("Assistant")
	}

	lines := []string{label, v.styles.Normal.Render(e.content)}

	if len(e.citations) > 0 {
		cites := make([]string, 0, len(e.citations))
		for _, c := range e.citations {
			cites = append(cites, fmt.Sprintf("[%d] %s", c.Marker, c.SourceName))
		}
		lines = append(lines, v.styles.Citation.Render("Sources: "+strings.Join(cites, ", ")))
	}

	return strings.Join(lines, "\n")
}

// View renders the chat view.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	sections := make([]string, 0, 6)

	header := v.styles.Title.Render("ragchat")
	if v.modelAlias != "" {
		header += "  " + v.styles.Muted.Render("model: "+v.modelAlias)
	}
	sections = append(sections, header, "")

	sections = append(sections, v.viewport.View(), "")

	if v.err != nil {
		sections = append(sections, v.styles.Error.Render("Error: "+domain.UserMessage(v.err)), "")
	}

	sections = append(sections, v.styles.InputField.Render(v.input.View()))

	status := "enter send · ctrl+p models · ? help · ctrl+c quit"
	if v.streaming {
		status = "generating... esc to cancel"
	}
	sections = append(sections, v.styles.StatusBar.Render(status))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true

	v.input.Width = width - 8
	v.viewport.Width = width
	v.viewport.Height = height - 8
	if v.viewport.Height < 4 {
		v.viewport.Height = 4
	}
	v.refreshTranscript()
}

// InputEmpty reports whether the message input is empty.
func (v *View) InputEmpty() bool {
	return strings.TrimSpace(v.input.Value()) == ""
}

// Entries returns the transcript length (for testing).
func (v *View) Entries() int {
	return len(v.entries)
}

// Ready returns whether the view is ready to render.
func (v *View) Ready() bool {
	return v.ready
}
