// Package definition holds the default collaborators the Tangle
// coordinator falls back to when a caller doesn't supply its own: a
// logrus-backed Logger and a Prometheus metrics set. Grounded on the
// teacher's pkg/mcast/definition/default_logger.go, generalized from
// stdlib log.Logger to logrus.Logger (already pulled transitively into the
// teacher's dependency closure via relt, and promoted here to direct use).
package definition

import (
	"github.com/sirupsen/logrus"

	"github.com/jabolina/tangle/types"
)

// LogrusLogger backs types.Logger with a *logrus.Logger, the teacher's
// leveled Info/Warn/Error/Debug contract with structured fields instead of
// pre-formatted strings.
type LogrusLogger struct {
	*logrus.Logger
}

// NewDefaultLogger returns the Logger used when a Config doesn't supply
// one: logrus at Info level, text output to stderr.
func NewDefaultLogger() types.Logger {
	l := logrus.New()
	l.SetLevel(logrus.InfoLevel)
	return &LogrusLogger{Logger: l}
}

func (l *LogrusLogger) Infof(format string, args ...interface{}) {
	l.Logger.Infof(format, args...)
}

func (l *LogrusLogger) Warnf(format string, args ...interface{}) {
	l.Logger.Warnf(format, args...)
}

func (l *LogrusLogger) Errorf(format string, args ...interface{}) {
	l.Logger.Errorf(format, args...)
}

func (l *LogrusLogger) Debugf(format string, args ...interface{}) {
	l.Logger.Debugf(format, args...)
}
