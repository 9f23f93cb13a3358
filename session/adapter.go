package session

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"orderviz/overlay"
)

// DefaultPublishTimeout bounds the closed notification.
const DefaultPublishTimeout = 5 * time.Second

// Shower receives decoded visualization requests.
type Shower interface {
	RequestShow(content string)
}

// Adapter bridges a Room and an overlay controller. It forwards
// visualization requests from the room and realises mute, unmute and
// notify-closed effects on it. Every room side effect is best effort.
type Adapter struct {
	log            logrus.FieldLogger
	publishTimeout time.Duration

	mu           sync.Mutex
	room         Room
	target       Shower
	unsubscribe  func()
	subscription uint64
}

// NewAdapter creates a detached adapter.
func NewAdapter(publishTimeout time.Duration, log logrus.FieldLogger) *Adapter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if publishTimeout <= 0 {
		publishTimeout = DefaultPublishTimeout
	}
	return &Adapter{log: log, publishTimeout: publishTimeout}
}

// Bind subscribes to room, forwarding visualization requests to target.
// Any previous subscription is removed first. A nil room detaches.
func (a *Adapter) Bind(room Room, target Shower) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.unbindLocked()
	a.room = room
	a.target = target
	if room == nil {
		return
	}
	id := a.subscription
	a.unsubscribe = room.OnData(func(p DataPacket) { a.handleData(id, p) })
	a.log.Debug("subscribed to session data")
}

// Unbind removes the active subscription and detaches from the room.
func (a *Adapter) Unbind() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.unbindLocked()
}

func (a *Adapter) unbindLocked() {
	if a.unsubscribe != nil {
		a.unsubscribe()
		a.unsubscribe = nil
		a.log.Debug("unsubscribed from session data")
	}
	a.subscription++
	a.room = nil
	a.target = nil
}

// handleData runs on the transport's goroutine. The lock is released
// before calling into the controller, which may call Apply.
func (a *Adapter) handleData(subscription uint64, p DataPacket) {
	if p.Topic != TopicVisualization {
		return
	}
	a.mu.Lock()
	target := a.target
	current := subscription == a.subscription
	a.mu.Unlock()
	if !current || target == nil {
		return
	}
	if !utf8.Valid(p.Payload) {
		a.log.WithField("from", p.From).Warn("dropping visualization with invalid UTF-8 payload")
		return
	}
	a.log.WithFields(logrus.Fields{"from": p.From, "bytes": len(p.Payload)}).Debug("visualization request received")
	target.RequestShow(string(p.Payload))
}

// Apply implements overlay.Sink.
func (a *Adapter) Apply(e overlay.Effect) {
	switch e.Kind {
	case overlay.EffectMute:
		a.setRemoteVolume(0)
	case overlay.EffectUnmute:
		a.setRemoteVolume(1)
	case overlay.EffectNotifyClosed:
		a.notifyClosed()
	}
}

func (a *Adapter) currentRoom() Room {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.room
}

func (a *Adapter) setRemoteVolume(volume float64) {
	room := a.currentRoom()
	if room == nil {
		return
	}
	for _, p := range room.RemoteParticipants() {
		if p == nil {
			continue
		}
		for _, track := range p.AudioTracks() {
			if track == nil {
				continue
			}
			if err := track.SetVolume(volume); err != nil {
				a.log.WithField("participant", p.Identity()).Warnf("set volume %v: %v", volume, err)
			}
		}
	}
}

func (a *Adapter) notifyClosed() {
	room := a.currentRoom()
	if room == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.publishTimeout)
	defer cancel()
	packet := DataPacket{Topic: TopicClosed, Payload: []byte(ClosedPayload)}
	if err := room.PublishData(ctx, packet); err != nil {
		a.log.Warnf("failed to notify backend: %v", err)
		return
	}
	a.log.Debug("published visualization closed")
}
