package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"
	tea "github.com/charmbracelet/bubbletea"

	"orderviz/overlay"
	"orderviz/session"
	"orderviz/ui"
)

// joinRoom connects the configured session transport.
func joinRoom(ctx context.Context, s *Settings) (session.Room, func(), error) {
	switch s.Transport() {
	case transportSIP:
		return startSIP(s)
	case transportWebRTC:
		return startWebRTC(ctx, s)
	default:
		return nil, nil, fmt.Errorf("unknown session transport %q", s.Transport())
	}
}

// runClient joins the session and drives the overlay until ctx is done
// or the user quits.
func runClient(ctx context.Context, s *Settings) error {
	room, leave, err := joinRoom(ctx, s)
	if err != nil {
		return err
	}
	defer leave()
	coreLog.Info("joined session")

	adapter := session.NewAdapter(s.PublishTimeout(), coreLog.WithField("component", "adapter"))

	var (
		ctrl    *overlay.Controller
		program *tea.Program
		render  overlay.Sink
	)
	if s.UIEnabled() {
		model := ui.NewModel(ui.CloseFunc(func() { ctrl.RequestClose() }))
		program = tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
		render = ui.NewRenderer(program)
	} else {
		render = ui.LogRenderer{Log: coreLog.WithField("component", "overlay")}
	}

	ctrl = overlay.NewController(clock.New(), s.AutoCloseDelay(), overlay.Sinks{adapter, render}, coreLog.WithField("component", "overlay"))
	defer ctrl.Dispose()

	adapter.Bind(room, ctrl)
	defer adapter.Unbind()

	if program == nil {
		<-ctx.Done()
		return nil
	}
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}
