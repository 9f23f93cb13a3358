package main

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	coreLog *logrus.Entry
	rtcLog  *logrus.Entry
	sipLog  *logrus.Entry
	logFile *lumberjack.Logger
)

// initLogging configures the per-subsystem loggers. Console output is
// turned off while the terminal UI owns the screen.
func initLogging(cfg *ini.File, console bool) {
	sec := cfg.Section("logging")

	consoleMin := toLogrusLevel(sec.Key("console_min_level").MustInt(0))
	fileMin := toLogrusLevel(sec.Key("file_min_level").MustInt(0))

	logFile = &lumberjack.Logger{
		Filename:   sec.Key("file").MustString("orderviz.log"),
		MaxSize:    sec.Key("file_max_size").MustInt(100), // megabytes
		MaxBackups: 1,
	}

	var consoleOut io.Writer = os.Stdout
	if !console {
		consoleOut = io.Discard
	}

	// full SIP message dumps are opt-in
	var skipSIP func(*logrus.Entry) bool
	if !sec.Key("sip_messages").MustBool(false) {
		skipSIP = isSIPMessageDump
	}

	coreLog = newLogger("core", toLogrusLevel(sec.Key("core").MustInt(2)), consoleMin, fileMin, consoleOut, logFile, nil)
	rtcLog = newLogger("rtc", toLogrusLevel(sec.Key("rtc").MustInt(3)), consoleMin, fileMin, consoleOut, logFile, nil)
	sipLog = newLogger("sip", toLogrusLevel(sec.Key("sip").MustInt(2)), consoleMin, fileMin, consoleOut, logFile, skipSIP)
}

// closeLogging flushes and closes log files.
func closeLogging() {
	if logFile != nil {
		_ = logFile.Close()
	}
}

// writerHook writes logs to the specified writer for provided levels.
// Entries matched by Skip are dropped.
type writerHook struct {
	Writer    io.Writer
	LogLevels []logrus.Level
	Skip      func(*logrus.Entry) bool
}

func (h *writerHook) Fire(e *logrus.Entry) error {
	if h.Skip != nil && h.Skip(e) {
		return nil
	}
	line, err := e.String()
	if err != nil {
		return err
	}
	_, err = h.Writer.Write([]byte(line))
	return err
}

func (h *writerHook) Levels() []logrus.Level {
	return h.LogLevels
}

func newLogger(name string, level, consoleMin, fileMin logrus.Level, console, file io.Writer, skip func(*logrus.Entry) bool) *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetOutput(io.Discard)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	logger.AddHook(&writerHook{Writer: console, LogLevels: availableLevels(consoleMin), Skip: skip})
	logger.AddHook(&writerHook{Writer: file, LogLevels: availableLevels(fileMin), Skip: skip})
	return logger.WithField("name", name)
}

// availableLevels returns the levels at least as severe as min.
func availableLevels(min logrus.Level) []logrus.Level {
	levels := []logrus.Level{}
	for _, l := range logrus.AllLevels {
		if l <= min {
			levels = append(levels, l)
		}
	}
	return levels
}

// toLogrusLevel maps settings.ini levels, 0 = trace through 6 = off.
func toLogrusLevel(v int) logrus.Level {
	switch {
	case v <= 0:
		return logrus.TraceLevel
	case v == 1:
		return logrus.DebugLevel
	case v == 2:
		return logrus.InfoLevel
	case v == 3:
		return logrus.WarnLevel
	case v == 4:
		return logrus.ErrorLevel
	case v == 5:
		return logrus.FatalLevel
	default:
		return logrus.PanicLevel // off
	}
}

// sipDumpPrefix starts gosip's full message dumps.
const sipDumpPrefix = "received SIP message:"

// isSIPMessageDump matches gosip's full message dumps. Other entries that
// merely mention SIP messages, such as parse failures, are kept.
func isSIPMessageDump(e *logrus.Entry) bool {
	return strings.HasPrefix(e.Message, sipDumpPrefix)
}
