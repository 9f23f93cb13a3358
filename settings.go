package main

import (
	"fmt"
	"time"

	ini "gopkg.in/ini.v1"
)

const (
	transportWebRTC = "webrtc"
	transportSIP    = "sip"
)

// Settings holds application configuration loaded from settings.ini.
type Settings struct {
	transport string
	identity  string

	signalingURL   string
	signalingToken string
	iceServers     []string
	playbackDir    string

	sipPort       int
	sipPortRange  int
	publicAddress string
	userAgent     string

	autoCloseSeconds int
	publishTimeoutMS int

	uiEnabled bool
}

// LoadSettings reads configuration from ini file and validates required fields.
func LoadSettings(cfg *ini.File) (*Settings, error) {
	s := &Settings{}

	sec := cfg.Section("session")
	s.transport = sec.Key("transport").In(transportWebRTC, []string{transportWebRTC, transportSIP})
	s.identity = sec.Key("identity").MustString("kiosk")

	sec = cfg.Section("webrtc")
	s.signalingURL = sec.Key("signaling_url").String()
	s.signalingToken = sec.Key("signaling_token").String()
	s.iceServers = sec.Key("ice_servers").Strings(",")
	s.playbackDir = sec.Key("playback_dir").String()

	sec = cfg.Section("sip")
	s.sipPort = sec.Key("port").MustInt(5060)
	s.sipPortRange = sec.Key("port_range").MustInt(0)
	s.publicAddress = sec.Key("public_address").String()
	s.userAgent = sec.Key("user_agent").MustString("orderviz")

	sec = cfg.Section("overlay")
	s.autoCloseSeconds = sec.Key("auto_close_seconds").MustInt(30)
	s.publishTimeoutMS = sec.Key("publish_timeout_ms").MustInt(5000)

	s.uiEnabled = cfg.Section("ui").Key("enabled").MustBool(true)

	if raw := cfg.Section("session").Key("transport").String(); raw != "" && raw != s.transport {
		return nil, fmt.Errorf("unknown session transport %q", raw)
	}
	if s.transport == transportWebRTC && s.signalingURL == "" {
		return nil, fmt.Errorf("webrtc signaling_url must be set")
	}
	if s.autoCloseSeconds <= 0 {
		return nil, fmt.Errorf("overlay auto_close_seconds must be positive")
	}

	return s, nil
}

func (s *Settings) Transport() string { return s.transport }
func (s *Settings) Identity() string  { return s.identity }

func (s *Settings) SignalingURL() string   { return s.signalingURL }
func (s *Settings) SignalingToken() string { return s.signalingToken }
func (s *Settings) ICEServers() []string   { return s.iceServers }
func (s *Settings) PlaybackDir() string    { return s.playbackDir }

func (s *Settings) SIPPort() int          { return s.sipPort }
func (s *Settings) SIPPortRange() int     { return s.sipPortRange }
func (s *Settings) PublicAddress() string { return s.publicAddress }
func (s *Settings) UserAgent() string     { return s.userAgent }

func (s *Settings) UIEnabled() bool { return s.uiEnabled }

func (s *Settings) AutoCloseDelay() time.Duration {
	return time.Duration(s.autoCloseSeconds) * time.Second
}

func (s *Settings) PublishTimeout() time.Duration {
	return time.Duration(s.publishTimeoutMS) * time.Millisecond
}
