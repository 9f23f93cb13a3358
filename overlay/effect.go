package overlay

// State is the render-relevant part of the overlay.
type State struct {
	Visible bool
	Content string
}

// EffectKind enumerates the commands a transition can issue.
type EffectKind int

const (
	EffectMute EffectKind = iota
	EffectRender
	EffectUnmute
	EffectNotifyClosed
)

func (k EffectKind) String() string {
	switch k {
	case EffectMute:
		return "mute"
	case EffectRender:
		return "render"
	case EffectUnmute:
		return "unmute"
	case EffectNotifyClosed:
		return "notify-closed"
	default:
		return "unknown"
	}
}

// Effect is a fire-and-forget command produced by a transition.
// State is only meaningful for EffectRender.
type Effect struct {
	Kind  EffectKind
	State State
}

// Sink consumes effects. Apply must not call back into the Controller.
type Sink interface {
	Apply(Effect)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Effect)

func (f SinkFunc) Apply(e Effect) { f(e) }

// Sinks applies every effect to each sink in order.
type Sinks []Sink

func (s Sinks) Apply(e Effect) {
	for _, sink := range s {
		if sink != nil {
			sink.Apply(e)
		}
	}
}
