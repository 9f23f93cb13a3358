package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderviz/overlay"
)

type fakeTrack struct {
	volumes []float64
	err     error
}

func (t *fakeTrack) SetVolume(v float64) error {
	t.volumes = append(t.volumes, v)
	return t.err
}

type fakeParticipant struct {
	identity string
	tracks   []AudioTrack
}

func (p *fakeParticipant) Identity() string          { return p.identity }
func (p *fakeParticipant) AudioTracks() []AudioTrack { return p.tracks }

type fakeRoom struct {
	mu           sync.Mutex
	handlers     map[int]func(DataPacket)
	next         int
	published    []DataPacket
	publishErr   error
	participants []Participant
}

func newFakeRoom() *fakeRoom {
	return &fakeRoom{handlers: make(map[int]func(DataPacket))}
}

func (r *fakeRoom) OnData(fn func(DataPacket)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.next
	r.next++
	r.handlers[id] = fn
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.handlers, id)
	}
}

func (r *fakeRoom) PublishData(ctx context.Context, p DataPacket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("publish without deadline")
	}
	r.published = append(r.published, p)
	return r.publishErr
}

func (r *fakeRoom) RemoteParticipants() []Participant { return r.participants }

func (r *fakeRoom) listeners() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handlers)
}

func (r *fakeRoom) deliver(p DataPacket) {
	r.mu.Lock()
	handlers := make([]func(DataPacket), 0, len(r.handlers))
	for _, h := range r.handlers {
		handlers = append(handlers, h)
	}
	r.mu.Unlock()
	for _, h := range handlers {
		h(p)
	}
}

type recordingShower struct{ requests []string }

func (s *recordingShower) RequestShow(content string) { s.requests = append(s.requests, content) }

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestAdapter_ForwardsVisualizationTopic(t *testing.T) {
	room := newFakeRoom()
	shower := &recordingShower{}
	a := NewAdapter(0, quietLogger())
	a.Bind(room, shower)

	room.deliver(DataPacket{Topic: "other-topic", Payload: []byte("ignored")})
	room.deliver(DataPacket{Topic: TopicVisualization, Payload: []byte("<b>order</b>")})

	assert.Equal(t, []string{"<b>order</b>"}, shower.requests)
}

func TestAdapter_DropsInvalidUTF8(t *testing.T) {
	room := newFakeRoom()
	shower := &recordingShower{}
	a := NewAdapter(0, quietLogger())
	a.Bind(room, shower)

	room.deliver(DataPacket{Topic: TopicVisualization, Payload: []byte{0xff, 0xfe, 0x00}})

	assert.Empty(t, shower.requests)
}

func TestAdapter_RebindKeepsSingleSubscription(t *testing.T) {
	room := newFakeRoom()
	shower := &recordingShower{}
	a := NewAdapter(0, quietLogger())

	a.Bind(room, shower)
	a.Bind(room, shower)
	a.Bind(room, shower)
	require.Equal(t, 1, room.listeners())

	room.deliver(DataPacket{Topic: TopicVisualization, Payload: []byte("x")})
	assert.Equal(t, []string{"x"}, shower.requests)

	other := newFakeRoom()
	a.Bind(other, shower)
	assert.Equal(t, 0, room.listeners())
	assert.Equal(t, 1, other.listeners())

	a.Unbind()
	assert.Equal(t, 0, other.listeners())
}

func TestAdapter_StaleSubscriptionIgnored(t *testing.T) {
	room := newFakeRoom()
	shower := &recordingShower{}
	a := NewAdapter(0, quietLogger())
	a.Bind(room, shower)

	room.mu.Lock()
	var stale func(DataPacket)
	for _, h := range room.handlers {
		stale = h
	}
	room.mu.Unlock()

	a.Bind(newFakeRoom(), shower)
	stale(DataPacket{Topic: TopicVisualization, Payload: []byte("late")})

	assert.Empty(t, shower.requests)
}

func TestAdapter_MuteAndUnmuteAllRemoteAudio(t *testing.T) {
	room := newFakeRoom()
	t1, t2, t3 := &fakeTrack{}, &fakeTrack{err: errors.New("detached")}, &fakeTrack{}
	room.participants = []Participant{
		&fakeParticipant{identity: "agent", tracks: []AudioTrack{t1, t2}},
		&fakeParticipant{identity: "silent"},
		&fakeParticipant{identity: "guest", tracks: []AudioTrack{t3}},
	}
	a := NewAdapter(0, quietLogger())
	a.Bind(room, &recordingShower{})

	a.Apply(overlay.Effect{Kind: overlay.EffectMute})
	a.Apply(overlay.Effect{Kind: overlay.EffectUnmute})

	for _, track := range []*fakeTrack{t1, t2, t3} {
		assert.Equal(t, []float64{0, 1}, track.volumes)
	}
}

func TestAdapter_NotifyClosedPayload(t *testing.T) {
	room := newFakeRoom()
	a := NewAdapter(time.Second, quietLogger())
	a.Bind(room, &recordingShower{})

	a.Apply(overlay.Effect{Kind: overlay.EffectNotifyClosed})

	require.Len(t, room.published, 1)
	assert.Equal(t, "visualization-closed", room.published[0].Topic)
	assert.Equal(t, "receipt-closed", string(room.published[0].Payload))
}

func TestAdapter_DetachedIsNoop(t *testing.T) {
	a := NewAdapter(0, quietLogger())

	assert.NotPanics(t, func() {
		a.Apply(overlay.Effect{Kind: overlay.EffectMute})
		a.Apply(overlay.Effect{Kind: overlay.EffectNotifyClosed})
		a.Bind(nil, nil)
		a.Unbind()
	})
}

func newWiredOverlay(room *fakeRoom) (*overlay.Controller, *clock.Mock, *Adapter) {
	mock := clock.NewMock()
	a := NewAdapter(time.Second, quietLogger())
	c := overlay.NewController(mock, overlay.AutoCloseDelay, a, quietLogger())
	a.Bind(room, c)
	return c, mock, a
}

func TestAdapter_TimeoutScenario(t *testing.T) {
	room := newFakeRoom()
	track := &fakeTrack{}
	room.participants = []Participant{&fakeParticipant{identity: "agent", tracks: []AudioTrack{track}}}
	c, mock, _ := newWiredOverlay(room)

	room.deliver(DataPacket{Topic: TopicVisualization, Payload: []byte("X")})
	require.Equal(t, overlay.State{Visible: true, Content: "X"}, c.CurrentState())
	assert.Equal(t, []float64{0}, track.volumes)

	mock.Add(overlay.AutoCloseDelay)
	require.Eventually(t, func() bool { return !c.CurrentState().Visible }, 2*time.Second, 5*time.Millisecond)

	room.mu.Lock()
	defer room.mu.Unlock()
	require.Len(t, room.published, 1)
	assert.Equal(t, DataPacket{Topic: TopicClosed, Payload: []byte(ClosedPayload)}, room.published[0])
	assert.Equal(t, []float64{0, 1}, track.volumes)
}

func TestAdapter_IgnoresRequestWhileShowing(t *testing.T) {
	room := newFakeRoom()
	c, _, _ := newWiredOverlay(room)

	room.deliver(DataPacket{Topic: TopicVisualization, Payload: []byte("A")})
	room.deliver(DataPacket{Topic: TopicVisualization, Payload: []byte("B")})
	room.deliver(DataPacket{Topic: "other-topic", Payload: []byte("C")})

	assert.Equal(t, overlay.State{Visible: true, Content: "A"}, c.CurrentState())
}

func TestAdapter_PublishFailureStillHides(t *testing.T) {
	room := newFakeRoom()
	room.publishErr = errors.New("data channel closed")
	track := &fakeTrack{err: errors.New("gone")}
	room.participants = []Participant{&fakeParticipant{identity: "agent", tracks: []AudioTrack{track}}}
	c, _, _ := newWiredOverlay(room)

	room.deliver(DataPacket{Topic: TopicVisualization, Payload: []byte("A")})
	c.RequestClose()

	assert.Equal(t, overlay.State{}, c.CurrentState())
	room.deliver(DataPacket{Topic: TopicVisualization, Payload: []byte("B")})
	assert.Equal(t, overlay.State{Visible: true, Content: "B"}, c.CurrentState())
}
