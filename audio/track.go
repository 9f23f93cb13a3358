package audio

import (
	"fmt"
	"math"
	"sync/atomic"
)

// Track is a remote audio track with a local playback volume. Transports
// create one per received track and consult Muted on the playback path,
// so changing the volume never touches the network.
type Track struct {
	id     string
	volume atomic.Uint64
}

// NewTrack creates a track at full volume.
func NewTrack(id string) *Track {
	t := &Track{id: id}
	t.volume.Store(math.Float64bits(1))
	return t
}

// ID returns the track identifier.
func (t *Track) ID() string { return t.id }

// SetVolume sets playback volume in the range [0, 1].
func (t *Track) SetVolume(v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return fmt.Errorf("track %s: volume %v out of range", t.id, v)
	}
	t.volume.Store(math.Float64bits(v))
	return nil
}

// Volume returns the current playback volume.
func (t *Track) Volume() float64 {
	return math.Float64frombits(t.volume.Load())
}

// Muted reports whether playback volume is zero.
func (t *Track) Muted() bool { return t.Volume() == 0 }
