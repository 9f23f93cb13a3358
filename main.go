package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	gosip "github.com/ghettovoice/gosip"
	gosiplog "github.com/ghettovoice/gosip/log"
	"github.com/spf13/pflag"
	"gopkg.in/ini.v1"

	"orderviz/rtcroom"
	"orderviz/session"
	"orderviz/siproom"
)

// joinTimeout bounds signaling and data channel setup.
const joinTimeout = 45 * time.Second

// startSIP listens for the agent's call and returns the SIP-backed room.
func startSIP(cfg *Settings) (session.Room, func(), error) {
	sipLog.Info("starting SIP server")

	port := cfg.SIPPort()
	portRange := cfg.SIPPortRange()
	host, err := hostAddress(cfg.PublicAddress())
	if err != nil {
		return nil, nil, fmt.Errorf("sip host address: %w", err)
	}

	logger := gosiplog.NewLogrusLogger(sipLog, "SIP", nil)
	srv := gosip.NewServer(gosip.ServerConfig{Host: host, UserAgent: cfg.UserAgent()}, nil, nil, logger)

	room, err := siproom.New(srv, sipLog)
	if err != nil {
		srv.Shutdown()
		return nil, nil, err
	}

	var listenErr error
	for i := 0; i <= portRange; i++ {
		addr := fmt.Sprintf(":%d", port+i)
		listenErr = srv.Listen("udp", addr)
		if listenErr == nil {
			sipLog.Infof("SIP server listening on %s/udp", addr)
			return room, srv.Shutdown, nil
		}
		sipLog.Warnf("failed to listen on %s: %v", addr, listenErr)
	}
	srv.Shutdown()
	return nil, nil, fmt.Errorf("sip listen: %w", listenErr)
}

// startWebRTC joins the session through the signaling endpoint.
func startWebRTC(ctx context.Context, cfg *Settings) (session.Room, func(), error) {
	rtcLog.Infof("joining session via %s", cfg.SignalingURL())

	ctx, cancel := context.WithTimeout(ctx, joinTimeout)
	defer cancel()

	cfgRTC := rtcroom.Config{
		Identity:   cfg.Identity(),
		ICEServers: cfg.ICEServers(),
	}
	var sink *rtcroom.OggSink
	if dir := cfg.PlaybackDir(); dir != "" {
		var err error
		sink, err = rtcroom.NewOggSink(dir, rtcLog)
		if err != nil {
			return nil, nil, err
		}
		cfgRTC.Playback = sink.Play
		rtcLog.Infof("writing remote audio to %s", dir)
	}
	closeSink := func() {
		if sink == nil {
			return
		}
		if err := sink.Close(); err != nil {
			rtcLog.Warnf("close playback: %v", err)
		}
	}

	signaler := &rtcroom.HTTPSignaler{URL: cfg.SignalingURL(), Token: cfg.SignalingToken()}
	room, err := rtcroom.Connect(ctx, signaler, cfgRTC, rtcLog)
	if err != nil {
		closeSink()
		return nil, nil, fmt.Errorf("join session: %w", err)
	}
	return room, func() {
		_ = room.Close()
		closeSink()
	}, nil
}

func main() {
	configPath := pflag.StringP("config", "c", "settings.ini", "path to settings file")
	transport := pflag.String("transport", "", "session transport: webrtc or sip")
	headless := pflag.Bool("headless", false, "log overlay transitions instead of drawing them")
	pflag.Parse()

	cfg, err := ini.Load(*configPath)
	if err != nil {
		fmt.Printf("failed to load settings: %v\n", err)
		os.Exit(1)
	}
	if *transport != "" {
		cfg.Section("session").Key("transport").SetValue(*transport)
	}
	if *headless {
		cfg.Section("ui").Key("enabled").SetValue("false")
	}

	settings, err := LoadSettings(cfg)
	if err != nil {
		fmt.Printf("failed to parse settings: %v\n", err)
		os.Exit(1)
	}

	initLogging(cfg, !settings.UIEnabled())
	defer closeLogging()
	coreLog.WithField("transport", settings.Transport()).Info("settings loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runClient(ctx, settings); err != nil {
		coreLog.Errorf("client stopped: %v", err)
		closeLogging()
		os.Exit(1)
	}
	coreLog.Info("performing a graceful shutdown...")
}
