// Package logging provides the Logger interface used by every mccache
// component, mirroring the shape of the teacher library's definition
// package but backed by logrus instead of the bare standard log package.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the logging surface every component depends on. Components
// never import logrus directly, so a caller can supply its own
// implementation (e.g. to route into an existing application logger).
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Criticalf(format string, args ...interface{})

	// With returns a derived logger carrying the given structured fields
	// on every subsequent call, the way Synnergy's HTTP middleware attaches
	// per-request fields.
	With(fields map[string]interface{}) Logger
}

// logrusLogger is the default Logger implementation.
type logrusLogger struct {
	entry *logrus.Entry
}

// NewDefault returns a Logger writing to stderr at info level; use
// NewWithLevel for debug logging or a debug file.
func NewDefault() Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.SetLevel(logrus.InfoLevel)
	return &logrusLogger{entry: logrus.NewEntry(log)}
}

// NewWithLevel returns a Logger at the given logrus level, writing to
// debugFile when it is non-empty and can be opened, else to stderr. Used
// by cmd/mccached with the --debug flag and MCCACHE_DEBUG_FILE.
func NewWithLevel(level logrus.Level, debugFile string) Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.SetLevel(level)
	if debugFile != "" {
		f, err := os.OpenFile(debugFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err == nil {
			log.SetOutput(f)
		}
	}
	return &logrusLogger{entry: logrus.NewEntry(log)}
}

func (l *logrusLogger) Debugf(format string, args ...interface{})    { l.entry.Debugf(format, args...) }
func (l *logrusLogger) Infof(format string, args ...interface{})     { l.entry.Infof(format, args...) }
func (l *logrusLogger) Warnf(format string, args ...interface{})     { l.entry.Warnf(format, args...) }
func (l *logrusLogger) Errorf(format string, args ...interface{})    { l.entry.Errorf(format, args...) }
func (l *logrusLogger) Criticalf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

func (l *logrusLogger) With(fields map[string]interface{}) Logger {
	return &logrusLogger{entry: l.entry.WithFields(fields)}
}
