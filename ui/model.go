package ui

import (
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"orderviz/overlay"
)

// maxCardWidth caps the card width on wide terminals.
const maxCardWidth = 72

// StateMsg delivers a render transition to the program.
type StateMsg overlay.State

// Closer receives user close requests.
type Closer interface {
	RequestClose()
}

// CloseFunc adapts a function to Closer.
type CloseFunc func()

func (f CloseFunc) RequestClose() { f() }

// Model is the full-screen overlay view.
type Model struct {
	state  overlay.State
	text   string
	closer Closer
	styles *Styles
	width  int
	height int
}

// NewModel creates a hidden overlay view.
func NewModel(closer Closer) Model {
	return Model{closer: closer, styles: NewStyles()}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case StateMsg:
		m.state = overlay.State(msg)
		m.text = ""
		if m.state.Visible {
			m.text = Text(m.state.Content)
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "esc", "enter", "x":
			return m, m.closeCmd()
		}

	case tea.MouseMsg:
		// clicks on the card itself keep it open
		if msg.Action == tea.MouseActionRelease && !m.onCard(msg.X, msg.Y) {
			return m, m.closeCmd()
		}
	}
	return m, nil
}

// closeCmd runs the close request outside Update: the controller may be
// blocked delivering a StateMsg to this program.
func (m Model) closeCmd() tea.Cmd {
	if !m.state.Visible || m.closer == nil {
		return nil
	}
	closer := m.closer
	return func() tea.Msg {
		closer.RequestClose()
		return nil
	}
}

// State returns the last rendered state.
func (m Model) State() overlay.State { return m.state }

func (m Model) View() string {
	if !m.state.Visible {
		return m.place(m.styles.Idle.Render("Waiting for your order…"))
	}
	return m.place(m.card())
}

func (m Model) card() string {
	width := maxCardWidth
	if m.width > 0 && m.width-4 < width {
		width = m.width - 4
	}
	body := m.text
	if body == "" {
		body = m.state.Content
	}
	var b strings.Builder
	b.WriteString(m.styles.Title.Render("Your order"))
	b.WriteString("\n\n")
	b.WriteString(body)
	b.WriteString("\n\n")
	b.WriteString(m.styles.Hint.Render("esc close · click outside close · q quit"))
	return m.styles.Card.Width(width).Render(b.String())
}

func (m Model) place(content string) string {
	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

// onCard reports whether the cell at x, y falls on the visible card.
func (m Model) onCard(x, y int) bool {
	if !m.state.Visible {
		return false
	}
	card := m.card()
	w, h := lipgloss.Width(card), lipgloss.Height(card)
	left, top := centerOffset(m.width, w), centerOffset(m.height, h)
	return x >= left && x < left+w && y >= top && y < top+h
}

// centerOffset mirrors how lipgloss.Place centers content of size n in
// a span of total cells.
func centerOffset(total, n int) int {
	gap := total - n
	if gap <= 0 {
		return 0
	}
	return gap - int(math.Round(float64(gap)*0.5))
}
