// Package applog constructs the structured loggers the simulation
// controller writes its step records to: the host opens one log file per
// websocket connection, and every episode of that connection appends to it.
package applog

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// NewLogger builds a JSON-formatted logrus.Logger at the given level. If
// output is empty, or the file cannot be opened, it falls back to
// stdout — a session's log sink is never fatal to construct.
func NewLogger(level, output string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	logger.SetLevel(parseLevel(level))

	if output == "" {
		logger.SetOutput(os.Stdout)
		return logger
	}

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		logger.SetOutput(os.Stdout)
		logger.Warnf("applog: could not create log dir for %s, falling back to stdout: %v", output, err)
		return logger
	}

	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger.SetOutput(os.Stdout)
		logger.Warnf("applog: could not open log file %s, falling back to stdout: %v", output, err)
		return logger
	}
	logger.SetOutput(f)
	return logger
}

// EpisodePath builds the per-episode log path spec §6 requires:
// <logsDir>/simulations/<timestamp>.log.
func EpisodePath(logsDir, timestamp string) string {
	return filepath.Join(logsDir, "simulations", fmt.Sprintf("%s.log", timestamp))
}

func parseLevel(level string) logrus.Level {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
