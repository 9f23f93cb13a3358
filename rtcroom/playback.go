package rtcroom

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
	"github.com/sirupsen/logrus"

	"orderviz/audio"
)

const (
	opusSampleRate = 48000
	opusChannels   = 2
)

// OggSink is a Config.Playback target that writes every remote Opus
// track to its own Ogg file under a directory. Muted tracks never reach
// it, so the files hold exactly what the user would have heard.
type OggSink struct {
	dir string
	log *logrus.Entry

	mu      sync.Mutex
	writers map[*audio.Track]*oggwriter.OggWriter
	closed  bool
}

// NewOggSink creates dir if needed.
func NewOggSink(dir string, log *logrus.Entry) (*OggSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create playback dir: %w", err)
	}
	return &OggSink{
		dir:     dir,
		log:     log,
		writers: make(map[*audio.Track]*oggwriter.OggWriter),
	}, nil
}

// Play writes packet to the track's file, opening it on first use.
func (s *OggSink) Play(track *audio.Track, packet *rtp.Packet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	w, ok := s.writers[track]
	if !ok {
		path := s.Path(track)
		var err error
		w, err = oggwriter.New(path, opusSampleRate, opusChannels)
		if err != nil {
			// nil marks the track as failed so it is not retried per packet
			s.log.Warnf("open playback file %s: %v", path, err)
		}
		s.writers[track] = w
	}
	if w == nil {
		return
	}
	if err := w.WriteRTP(packet); err != nil {
		s.log.WithField("track", track.ID()).Warnf("write playback: %v", err)
	}
}

// Path returns the file a track is written to.
func (s *OggSink) Path(track *audio.Track) string {
	return filepath.Join(s.dir, fileName(track.ID())+".ogg")
}

// Close finalizes every open file. Later packets are dropped.
func (s *OggSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	var errs []error
	for track, w := range s.writers {
		if w == nil {
			continue
		}
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", track.ID(), err))
		}
	}
	return errors.Join(errs...)
}

func fileName(id string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, id)
	if name == "" {
		return "track"
	}
	return name
}
