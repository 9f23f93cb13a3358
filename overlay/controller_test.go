package overlay

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu      sync.Mutex
	effects []Effect
}

func (r *recordingSink) Apply(e Effect) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.effects = append(r.effects, e)
}

func (r *recordingSink) kinds() []EffectKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return kinds(r.effects)
}

func (r *recordingSink) count(kind EffectKind) int {
	n := 0
	for _, k := range r.kinds() {
		if k == kind {
			n++
		}
	}
	return n
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestController() (*Controller, *clock.Mock, *recordingSink) {
	mock := clock.NewMock()
	sink := &recordingSink{}
	return NewController(mock, AutoCloseDelay, sink, quietLogger()), mock, sink
}

func TestController_SecondRequestDropped(t *testing.T) {
	c, _, sink := newTestController()

	c.RequestShow("A")
	c.RequestShow("B")

	assert.Equal(t, State{Visible: true, Content: "A"}, c.CurrentState())
	assert.Equal(t, []EffectKind{EffectMute, EffectRender}, sink.kinds())
}

func TestController_TimeoutRoundTrip(t *testing.T) {
	c, mock, sink := newTestController()

	c.RequestShow("X")
	mock.Add(AutoCloseDelay)

	require.Eventually(t, func() bool {
		return !c.CurrentState().Visible
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, []EffectKind{
		EffectMute, EffectRender,
		EffectRender, EffectUnmute, EffectNotifyClosed,
	}, sink.kinds())
}

func TestController_ExplicitCloseBeforeTimeout(t *testing.T) {
	c, mock, sink := newTestController()

	c.RequestShow("X")
	c.RequestClose()
	c.RequestClose()

	assert.False(t, c.CurrentState().Visible)
	assert.Equal(t, 1, sink.count(EffectUnmute))
	assert.Equal(t, 1, sink.count(EffectNotifyClosed))

	mock.Add(AutoCloseDelay * 2)
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, 1, sink.count(EffectUnmute), "no spurious unmute after expiry")
	assert.Equal(t, 1, sink.count(EffectNotifyClosed), "no spurious notify after expiry")
}

func TestController_CloseWhenHiddenHasNoEffects(t *testing.T) {
	c, _, sink := newTestController()

	c.RequestClose()

	assert.Empty(t, sink.kinds())
}

func TestController_DisposeWhileVisible(t *testing.T) {
	c, mock, sink := newTestController()
	c.RequestShow("X")

	c.Dispose()
	mock.Add(AutoCloseDelay * 2)
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, []EffectKind{EffectMute, EffectRender}, sink.kinds())
	c.RequestShow("Y")
	c.RequestClose()
	assert.Equal(t, []EffectKind{EffectMute, EffectRender}, sink.kinds())
}

func TestController_ShowAgainAfterClose(t *testing.T) {
	c, _, sink := newTestController()

	c.RequestShow("A")
	c.RequestClose()
	c.RequestShow("B")

	assert.Equal(t, State{Visible: true, Content: "B"}, c.CurrentState())
	assert.Equal(t, 2, sink.count(EffectMute))
	assert.Equal(t, 1, sink.count(EffectNotifyClosed))
}

func TestController_ConcurrentCloseAndExpire(t *testing.T) {
	c, mock, sink := newTestController()
	c.RequestShow("X")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		mock.Add(AutoCloseDelay)
	}()
	go func() {
		defer wg.Done()
		c.RequestClose()
	}()
	wg.Wait()
	time.Sleep(20 * time.Millisecond)

	assert.False(t, c.CurrentState().Visible)
	assert.Equal(t, 1, sink.count(EffectUnmute))
	assert.Equal(t, 1, sink.count(EffectNotifyClosed))
}

func TestSinks_AppliesInOrder(t *testing.T) {
	var order []string
	sinks := Sinks{
		SinkFunc(func(e Effect) { order = append(order, "a:"+e.Kind.String()) }),
		nil,
		SinkFunc(func(e Effect) { order = append(order, "b:"+e.Kind.String()) }),
	}

	sinks.Apply(Effect{Kind: EffectMute})

	assert.Equal(t, []string{"a:mute", "b:mute"}, order)
}
