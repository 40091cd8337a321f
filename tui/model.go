// Package tui is a terminal front end for adding games to the wishlist
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/drummonds/playday/format"
	"github.com/drummonds/playday/igdb"
	"github.com/drummonds/playday/wishlist"
)

// Logger is replaced by main with the configured logger
var Logger = slog.Default()

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	cursorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	chipStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252"))

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

type focus int

const (
	focusInput focus = iota
	focusResults
)

type searchDoneMsg struct{ err error }

type saveDoneMsg struct {
	count int
	err   error
}

// Model drives a wishlist.Controller from the keyboard
type Model struct {
	ctx    context.Context
	ctrl   *wishlist.Controller
	input  textinput.Model
	focus  focus
	cursor int
	status string
	width  int
}

// New opens the controller's modal and focuses the keyword input
func New(ctx context.Context, ctrl *wishlist.Controller) Model {
	input := textinput.New()
	input.Placeholder = "Search for a game"
	input.Prompt = "› "
	input.CharLimit = 100
	input.Focus()
	ctrl.Open()
	return Model{ctx: ctx, ctrl: ctrl, input: input}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) searchCmd() tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		return searchDoneMsg{err: ctrl.Search(ctx)}
	}
}

func (m Model) saveCmd() tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	count := len(ctrl.State().Selected)
	return func() tea.Msg {
		return saveDoneMsg{count: count, err: ctrl.AddToWishlist(ctx)}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(msg.Width-4, 10)
		return m, nil

	case searchDoneMsg:
		if msg.err != nil {
			Logger.Warn("Search failed", "error", msg.err)
		}
		m.clampCursor()
		return m, nil

	case saveDoneMsg:
		if msg.err != nil {
			Logger.Warn("Saving wishlist failed", "error", msg.err)
			return m, nil
		}
		if !m.ctrl.State().Open {
			// saved, start over for the next batch
			m.status = fmt.Sprintf("Added %d game(s) to your wishlist", msg.count)
			m.ctrl.Open()
			m.input.SetValue("")
			m.setFocus(focusInput)
			m.cursor = 0
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.ctrl.CloseModal()
		return m, tea.Quit
	case "esc":
		if m.ctrl.State().Err != nil {
			m.ctrl.DismissError()
			return m, nil
		}
		m.ctrl.CloseModal()
		return m, tea.Quit
	case "ctrl+s":
		state := m.ctrl.State()
		if len(state.Selected) == 0 || state.IsSaving {
			return m, nil
		}
		m.status = ""
		return m, m.saveCmd()
	case "tab", "shift+tab":
		if m.focus == focusInput {
			m.setFocus(focusResults)
		} else {
			m.setFocus(focusInput)
		}
		return m, nil
	}

	if m.focus == focusInput {
		if msg.Type == tea.KeyEnter {
			m.ctrl.SetKeyword(m.input.Value())
			if strings.TrimSpace(m.input.Value()) == "" {
				return m, nil
			}
			m.status = ""
			return m, m.searchCmd()
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		m.ctrl.SetKeyword(m.input.Value())
		return m, cmd
	}

	results := m.ctrl.State().Results
	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(results)-1 {
			m.cursor++
		}
	case " ", "enter", "x":
		if m.cursor < len(results) {
			m.ctrl.Toggle(results[m.cursor])
		}
	}
	return m, nil
}

func (m *Model) setFocus(f focus) {
	m.focus = f
	if f == focusInput {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}

func (m *Model) clampCursor() {
	n := len(m.ctrl.State().Results)
	if m.cursor >= n {
		m.cursor = max(n-1, 0)
	}
}

// View implements tea.Model.
func (m Model) View() string {
	state := m.ctrl.State()
	var b strings.Builder

	b.WriteString(titleStyle.Render("Add games to your wishlist"))
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	if state.IsSearching {
		b.WriteString(hintStyle.Render("  searching..."))
	}
	b.WriteString("\n\n")

	if state.Err != nil {
		b.WriteString(errorStyle.Render("✗ " + state.Err.Error() + " (esc to dismiss)"))
		b.WriteString("\n\n")
	}

	if len(state.Results) == 0 && state.Keyword != "" && !state.IsSearching {
		b.WriteString(hintStyle.Render("No results"))
		b.WriteString("\n")
	}
	for i, game := range state.Results {
		b.WriteString(m.renderResult(i, game))
		b.WriteString("\n")
	}

	if len(state.Selected) > 0 {
		b.WriteString("\n")
		chips := make([]string, 0, len(state.Selected))
		for _, game := range state.Selected {
			chips = append(chips, chipStyle.Render(game.Name))
		}
		b.WriteString(strings.Join(chips, " "))
		b.WriteString("\n")
	}

	if state.IsSaving {
		b.WriteString("\n" + hintStyle.Render("saving..."))
	} else if m.status != "" {
		b.WriteString("\n" + selectedStyle.Render(m.status))
	}
	b.WriteString("\n\n")
	b.WriteString(hintStyle.Render("enter search • tab results • space select • ctrl+s save • esc close"))
	return b.String()
}

func (m Model) renderResult(i int, game wishlist.Game) string {
	marker := "[ ]"
	line := game.Name
	if m.ctrl.IsSelected(game.ID) {
		marker = "[x]"
		line = selectedStyle.Render(line)
	}

	var info igdb.Game
	if err := game.Decode(&info); err == nil {
		if date := info.PCReleaseDate(); date != 0 {
			line += hintStyle.Render("  PC " + format.EpochToHuman(date))
		} else if info.FirstReleaseDate != nil {
			line += hintStyle.Render("  " + format.EpochToHuman(*info.FirstReleaseDate))
		}
	}

	prefix := "  "
	if m.focus == focusResults && i == m.cursor {
		prefix = cursorStyle.Render("> ")
	}
	return prefix + marker + " " + line
}
