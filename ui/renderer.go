package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"orderviz/overlay"
)

// Renderer forwards render effects to a running program.
type Renderer struct {
	send func(tea.Msg)
}

// NewRenderer creates a Renderer for p.
func NewRenderer(p *tea.Program) *Renderer {
	return &Renderer{send: p.Send}
}

// Apply implements overlay.Sink.
func (r *Renderer) Apply(e overlay.Effect) {
	if e.Kind == overlay.EffectRender {
		r.send(StateMsg(e.State))
	}
}

// LogRenderer reports render transitions in headless mode.
type LogRenderer struct {
	Log logrus.FieldLogger
}

// Apply implements overlay.Sink.
func (r LogRenderer) Apply(e overlay.Effect) {
	if e.Kind != overlay.EffectRender {
		return
	}
	if e.State.Visible {
		r.Log.WithField("text", Text(e.State.Content)).Info("overlay shown")
		return
	}
	r.Log.Info("overlay hidden")
}
