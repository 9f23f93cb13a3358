package overlay

import (
	"time"

	"github.com/benbjohnson/clock"
)

// AutoCloseDelay is how long a visualization stays up without user action.
const AutoCloseDelay = 30 * time.Second

// Machine is the show/hide state machine. It is not safe for concurrent
// use; Controller serialises access to it.
//
// Transitions return the effects they issue in dispatch order. Timer
// callbacks do not mutate the machine directly: they report the generation
// they were armed with, and the owner feeds it back through Expire.
type Machine struct {
	clock  clock.Clock
	delay  time.Duration
	expire func(generation uint64)

	state      State
	showing    bool
	timer      *clock.Timer
	generation uint64
	disposed   bool
}

// NewMachine creates a hidden machine. expire is invoked from the timer
// goroutine with the generation the timer was armed with.
func NewMachine(clk clock.Clock, delay time.Duration, expire func(generation uint64)) *Machine {
	if delay <= 0 {
		delay = AutoCloseDelay
	}
	return &Machine{clock: clk, delay: delay, expire: expire}
}

// Show makes content visible unless a visualization is already showing.
// Rejected requests issue no effects.
func (m *Machine) Show(content string) []Effect {
	if m.disposed || m.showing || content == "" {
		return nil
	}
	m.showing = true
	effects := []Effect{{Kind: EffectMute}}

	m.state = State{Visible: true, Content: content}
	effects = append(effects, Effect{Kind: EffectRender, State: m.state})

	m.stopTimer()
	generation := m.generation
	m.timer = m.clock.AfterFunc(m.delay, func() {
		if m.expire != nil {
			m.expire(generation)
		}
	})
	return effects
}

// Close hides the overlay. Closing a hidden overlay is a no-op.
func (m *Machine) Close() []Effect {
	if m.disposed || !m.state.Visible {
		return nil
	}
	return m.hide()
}

// Expire handles a fired timer. Timers that were stopped or superseded
// carry a stale generation and are ignored.
func (m *Machine) Expire(generation uint64) []Effect {
	if m.disposed || m.timer == nil || generation != m.generation || !m.state.Visible {
		return nil
	}
	return m.hide()
}

// Dispose cancels any pending timer. The machine accepts no further
// transitions.
func (m *Machine) Dispose() {
	if m.disposed {
		return
	}
	m.stopTimer()
	m.disposed = true
}

// State returns the current render state.
func (m *Machine) State() State { return m.state }

// Showing reports whether the re-entrancy guard is set.
func (m *Machine) Showing() bool { return m.showing }

// Disposed reports whether Dispose was called.
func (m *Machine) Disposed() bool { return m.disposed }

func (m *Machine) hide() []Effect {
	m.stopTimer()
	m.state = State{}
	effects := []Effect{
		{Kind: EffectRender, State: m.state},
		{Kind: EffectUnmute},
		{Kind: EffectNotifyClosed},
	}
	m.showing = false
	return effects
}

// stopTimer cancels the pending timer and invalidates its generation so a
// callback already in flight becomes a no-op.
func (m *Machine) stopTimer() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.generation++
}
