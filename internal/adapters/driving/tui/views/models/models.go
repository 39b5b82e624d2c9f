// Package models provides the model picker view for the TUI.
package models

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/ragchat-cli/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/ragchat-cli/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/ragchat-cli/internal/core/domain"
	"github.com/custodia-labs/ragchat-cli/internal/core/ports/driving"
)

// View is the model picker: a navigable list of configured deployments.
type View struct {
	styles  *styles.Styles
	catalog driving.ModelCatalog
	ctx     context.Context

	deployments []domain.ModelDeployment
	current     string
	selected    int
	err         error

	width  int
	height int
	ready  bool
}

// NewView creates a new model picker view.
func NewView(s *styles.Styles, catalog driving.ModelCatalog) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{
		styles:  s,
		catalog: catalog,
		ctx:     context.Background(),
		width:   80,
		height:  24,
	}
}

// WithContext sets the context for the view.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// SetCurrent marks the alias the session currently uses.
func (v *View) SetCurrent(alias string) {
	v.current = alias
}

// Init loads the catalog snapshot.
func (v *View) Init() tea.Cmd {
	return v.loadModels()
}

// loadModels fetches the deployment list.
func (v *View) loadModels() tea.Cmd {
	return func() tea.Msg {
		deployments, err := v.catalog.List(v.ctx)
		return messages.ModelsLoaded{Deployments: deployments, Err: err}
	}
}

// Update handles messages for the picker.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case messages.ModelsLoaded:
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.err = nil
		v.deployments = msg.Deployments
		v.selected = 0
		for i, d := range v.deployments {
			if d.Alias == v.current {
				v.selected = i
				break
			}
		}
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)
	}

	return v, nil
}

// handleKeyMsg processes keyboard input.
func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	//nolint:exhaustive // handling only relevant key types
	switch msg.Type {
	case tea.KeyEsc:
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewChat}
		}
	case tea.KeyUp:
		v.moveUp()
		return v, nil
	case tea.KeyDown:
		v.moveDown()
		return v, nil
	case tea.KeyEnter:
		if v.selected < len(v.deployments) {
			alias := v.deployments[v.selected].Alias
			return v, func() tea.Msg {
				return messages.ModelChosen{Alias: alias}
			}
		}
		return v, nil
	}

	switch msg.String() {
	case "k":
		v.moveUp()
	case "j":
		v.moveDown()
	}
	return v, nil
}

func (v *View) moveUp() {
	if v.selected > 0 {
		v.selected--
	}
}

func (v *View) moveDown() {
	if v.selected < len(v.deployments)-1 {
		v.selected++
	}
}

// Selected returns the highlighted index (for testing).
func (v *View) Selected() int {
	return v.selected
}

// Err returns the last error, if any.
func (v *View) Err() error {
	return v.err
}

// View renders the picker.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	sections := make([]string, 0, 4+len(v.deployments))
	sections = append(sections, v.styles.Title.Render("Select model"), "")

	if v.err != nil {
		sections = append(sections, v.styles.Error.Render("Error: "+v.err.Error()))
	}

	if len(v.deployments) == 0 && v.err == nil {
		sections = append(sections, v.styles.Muted.Render("No models configured."))
	}

	for i, d := range v.deployments {
		line := v.renderDeployment(d)
		if i == v.selected {
			line = v.styles.Selected.Render("> " + line)
		} else {
			line = v.styles.Normal.Render("  " + line)
		}
		sections = append(sections, line)
	}

	sections = append(sections, "", v.styles.Help.Render("[j/k, ↑/↓] navigate  [enter] select  [esc] back"))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderDeployment formats one list row.
func (v *View) renderDeployment(d domain.ModelDeployment) string {
	parts := []string{fmt.Sprintf("%-12s %s (%s)", d.Alias, d.Handle, d.Provider)}
	if d.Alias == v.current {
		parts = append(parts, "(current)")
	}
	return strings.Join(parts, " ")
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
}

// Ready returns whether the view is ready to render.
func (v *View) Ready() bool {
	return v.ready
}
