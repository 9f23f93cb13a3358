package ui

import "github.com/charmbracelet/lipgloss"

// Styles holds the overlay styles.
type Styles struct {
	Card  lipgloss.Style
	Title lipgloss.Style
	Hint  lipgloss.Style
	Idle  lipgloss.Style
}

// NewStyles returns the default styles.
func NewStyles() *Styles {
	return &Styles{
		Card: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("180")).
			Padding(1, 3),
		Title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("180")),
		Hint:  lipgloss.NewStyle().Faint(true),
		Idle:  lipgloss.NewStyle().Faint(true).Italic(true),
	}
}
