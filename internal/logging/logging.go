// Package logging holds the process-wide structured logger shared by
// the adapter daemon and the simulation server.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Log is the global logger instance. Every package logs through it
// rather than creating its own, so a single SetLevel/SetOutput call
// governs the whole process.
var Log = logrus.New()

func init() {
	Log.SetOutput(os.Stderr)
	Log.SetLevel(logrus.InfoLevel)
	Log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
}

// SetLevel parses level and applies it, leaving the level unchanged on
// a parse error.
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	Log.SetLevel(lvl)
	return nil
}

// SetOutput redirects the logger, mainly for tests that want to
// assert on emitted lines.
func SetOutput(w io.Writer) {
	Log.SetOutput(w)
}

// SetJSON switches to JSON-formatted output.
func SetJSON() {
	Log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05Z07:00",
	})
}

// WithAdapter returns a logger scoped to one adapter instance.
func WithAdapter(id string) *logrus.Entry {
	return Log.WithField("adapter", id)
}

// WithDevice returns a logger scoped to one device id.
func WithDevice(id string) *logrus.Entry {
	return Log.WithField("device", id)
}
