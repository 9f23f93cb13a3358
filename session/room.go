package session

import "context"

// Topics and payloads exchanged with the backend agent.
const (
	TopicVisualization = "order-visualization"
	TopicClosed        = "visualization-closed"
	ClosedPayload      = "receipt-closed"
)

// DataPacket is a topic-tagged message on the session data channel.
type DataPacket struct {
	Topic   string
	Payload []byte
	From    string
}

// Room is the real-time session the client is joined to.
type Room interface {
	// OnData registers fn for inbound data packets. The returned function
	// removes the registration.
	OnData(fn func(DataPacket)) (unsubscribe func())
	// PublishData sends a packet to all participants.
	PublishData(ctx context.Context, packet DataPacket) error
	// RemoteParticipants returns a snapshot of the other participants.
	RemoteParticipants() []Participant
}

// Participant is a remote member of a Room.
type Participant interface {
	Identity() string
	AudioTracks() []AudioTrack
}

// AudioTrack is a remote audio publication with local playback volume.
type AudioTrack interface {
	SetVolume(volume float64) error
}
