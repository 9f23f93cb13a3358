package rtcroom

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"

	"orderviz/audio"
	"orderviz/session"
)

// Compile-time interface check.
var _ session.Room = (*Room)(nil)

// reliableLabel is the data channel carrying topic-tagged packets.
const reliableLabel = "_reliable"

// iceGatherTimeout bounds vanilla ICE candidate gathering.
const iceGatherTimeout = 15 * time.Second

// ErrNotConnected is returned when publishing before the data channel is
// open or after Close.
var ErrNotConnected = errors.New("rtcroom: data channel not open")

// Config describes how to join the session.
type Config struct {
	// Identity is stamped on outbound packets.
	Identity string
	// ICEServers lists STUN/TURN URLs.
	ICEServers []string
	// Playback receives Opus RTP from unmuted remote audio tracks. Nil
	// discards.
	Playback func(track *audio.Track, packet *rtp.Packet)
}

// Room is a session joined over a single WebRTC PeerConnection.
type Room struct {
	identity string
	playback func(*audio.Track, *rtp.Packet)
	log      *logrus.Entry

	pc *webrtc.PeerConnection
	dc *webrtc.DataChannel

	mu           sync.Mutex
	handlers     map[uint64]func(session.DataPacket)
	nextHandler  uint64
	participants map[string][]*audio.Track

	closed    chan struct{}
	closeOnce sync.Once
}

// Connect creates a PeerConnection, exchanges SDP through signaler and
// waits for the reliable data channel to open.
func Connect(ctx context.Context, signaler Signaler, cfg Config, log *logrus.Entry) (*Room, error) {
	pc, err := newPeerConnection(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	r := &Room{
		identity:     cfg.Identity,
		playback:     cfg.Playback,
		log:          log,
		pc:           pc,
		handlers:     make(map[uint64]func(session.DataPacket)),
		participants: make(map[string][]*audio.Track),
		closed:       make(chan struct{}),
	}
	if err := r.establish(ctx, signaler); err != nil {
		pc.Close()
		return nil, err
	}
	return r, nil
}

func (r *Room) establish(ctx context.Context, signaler Signaler) error {
	r.pc.OnTrack(r.handleTrack)
	r.pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		r.log.Infof("peer connection state: %s", state)
	})

	if _, err := r.pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		return fmt.Errorf("add audio transceiver: %w", err)
	}

	ordered := true
	dc, err := r.pc.CreateDataChannel(reliableLabel, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return fmt.Errorf("create data channel: %w", err)
	}
	opened := make(chan struct{})
	dc.OnOpen(func() {
		r.log.Debug("data channel opened")
		close(opened)
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		r.dispatch(decodePacket(msg.Data))
	})
	r.dc = dc

	offer, err := r.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	gatherComplete := webrtc.GatheringCompletePromise(r.pc)
	if err := r.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}
	select {
	case <-gatherComplete:
	case <-time.After(iceGatherTimeout):
		return fmt.Errorf("ICE gathering timed out after %s", iceGatherTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}

	answer, err := signaler.Exchange(ctx, r.pc.LocalDescription().SDP)
	if err != nil {
		return fmt.Errorf("signaling: %w", err)
	}
	if err := r.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answer,
	}); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}

	select {
	case <-opened:
		r.log.Info("joined session")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnData implements session.Room. Handlers run on pion's goroutine and
// are invoked without the room lock held.
func (r *Room) OnData(fn func(session.DataPacket)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextHandler
	r.nextHandler++
	r.handlers[id] = fn
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.handlers, id)
	}
}

func (r *Room) dispatch(p session.DataPacket) {
	r.mu.Lock()
	handlers := make([]func(session.DataPacket), 0, len(r.handlers))
	for _, h := range r.handlers {
		handlers = append(handlers, h)
	}
	r.mu.Unlock()
	for _, h := range handlers {
		h(p)
	}
}

// PublishData implements session.Room. The packet reaches every
// participant through the media server.
func (r *Room) PublishData(ctx context.Context, p session.DataPacket) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-r.closed:
		return ErrNotConnected
	default:
	}
	if r.dc == nil || r.dc.ReadyState() != webrtc.DataChannelStateOpen {
		return ErrNotConnected
	}
	if p.From == "" {
		p.From = r.identity
	}
	data, err := encodePacket(p)
	if err != nil {
		return fmt.Errorf("encode packet: %w", err)
	}
	if err := r.dc.Send(data); err != nil {
		return fmt.Errorf("send on %s: %w", reliableLabel, err)
	}
	return nil
}

// RemoteParticipants implements session.Room, ordered by identity.
func (r *Room) RemoteParticipants() []session.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]session.Participant, 0, len(r.participants))
	for identity, tracks := range r.participants {
		p := remoteParticipant{identity: identity}
		for _, t := range tracks {
			p.tracks = append(p.tracks, t)
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity() < out[j].Identity() })
	return out
}

// Close leaves the session.
func (r *Room) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.closed)
		err = r.pc.Close()
	})
	return err
}

func (r *Room) handleTrack(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
	if remote.Kind() != webrtc.RTPCodecTypeAudio {
		return
	}
	identity := remote.StreamID()
	track := audio.NewTrack(remote.ID())

	r.mu.Lock()
	r.participants[identity] = append(r.participants[identity], track)
	r.mu.Unlock()
	r.log.WithFields(logrus.Fields{"participant": identity, "track": track.ID()}).Info("remote audio track added")

	play := r.playback
	if mime := remote.Codec().MimeType; !strings.EqualFold(mime, webrtc.MimeTypeOpus) {
		r.log.WithField("track", track.ID()).Warnf("no playback for %s track", mime)
		play = nil
	}
	read := func() (*rtp.Packet, error) {
		packet, _, err := remote.ReadRTP()
		return packet, err
	}
	go r.pump(read, identity, track, play)
}

// pump reads RTP until the track ends, forwarding packets to play while
// the track is unmuted.
func (r *Room) pump(read func() (*rtp.Packet, error), identity string, track *audio.Track, play func(*audio.Track, *rtp.Packet)) {
	defer r.removeTrack(identity, track)
	for {
		packet, err := read()
		if err != nil {
			r.log.WithField("track", track.ID()).Debugf("remote track ended: %v", err)
			return
		}
		if play == nil || track.Muted() {
			continue
		}
		play(track, packet)
	}
}

func (r *Room) removeTrack(identity string, track *audio.Track) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tracks := r.participants[identity]
	for i, t := range tracks {
		if t == track {
			tracks = append(tracks[:i], tracks[i+1:]...)
			break
		}
	}
	if len(tracks) == 0 {
		delete(r.participants, identity)
		return
	}
	r.participants[identity] = tracks
}

type remoteParticipant struct {
	identity string
	tracks   []session.AudioTrack
}

func (p remoteParticipant) Identity() string                  { return p.identity }
func (p remoteParticipant) AudioTracks() []session.AudioTrack { return p.tracks }

func newPeerConnection(cfg Config, log *logrus.Entry) (*webrtc.PeerConnection, error) {
	media := &webrtc.MediaEngine{}
	if err := media.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	settingEngine := webrtc.SettingEngine{LoggerFactory: loggerFactory{entry: log}}
	settingEngine.SetIncludeLoopbackCandidate(true)

	config := webrtc.Configuration{}
	if len(cfg.ICEServers) > 0 {
		config.ICEServers = []webrtc.ICEServer{{URLs: cfg.ICEServers}}
	}

	api := webrtc.NewAPI(webrtc.WithMediaEngine(media), webrtc.WithSettingEngine(settingEngine))
	return api.NewPeerConnection(config)
}
