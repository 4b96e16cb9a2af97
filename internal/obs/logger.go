// Package obs is the ambient logging and metrics substrate shared by every
// engine: a level-filtered structured Logger over logrus, and the
// Prometheus counters/gauges/histograms the engines publish to.
package obs

import (
	log "github.com/sirupsen/logrus"
)

// Logger publishes structured log events for one component. Implementations
// may filter by Level() before formatting fields, so callers should not
// assume every Log call actually writes anything.
type Logger interface {
	Log(level log.Level, fields log.Fields, message string)
	Level() log.Level
}

// NewLoggerWithFields wraps delegate and returns a Logger that merges `add`
// into every subsequent call's fields, without re-allocating a merged map
// when the delegate would filter the event anyway.
func NewLoggerWithFields(delegate Logger, add log.Fields) Logger {
	return &withFieldsLogger{delegate: delegate, add: add}
}

type withFieldsLogger struct {
	delegate Logger
	add      log.Fields
}

func (l *withFieldsLogger) Level() log.Level { return l.delegate.Level() }

func (l *withFieldsLogger) Log(level log.Level, fields log.Fields, message string) {
	if level > l.delegate.Level() {
		return
	}
	var merged log.Fields
	if len(fields) == 0 {
		merged = l.add
	} else {
		merged = make(log.Fields, len(fields)+len(l.add))
		for k, v := range l.add {
			merged[k] = v
		}
		for k, v := range fields {
			merged[k] = v
		}
	}
	l.delegate.Log(level, merged, message)
}

// stdLogger forwards directly to the logrus standard logger.
type stdLogger struct{}

// StdLogger returns a Logger backed by the logrus standard logger, used by
// cmd/dispatchd at process startup before any component-scoped logger has
// been constructed.
func StdLogger() Logger { return stdLogger{} }

func (stdLogger) Level() log.Level { return log.GetLevel() }

func (stdLogger) Log(level log.Level, fields log.Fields, message string) {
	if level > log.GetLevel() {
		return
	}
	log.WithFields(fields).Log(level, message)
}

// Component returns a Logger scoped to one named engine component, e.g.
// "dispatch", "escalation" — every field logged through it carries
// component=<name> so operators can filter a single engine's stream.
func Component(name string) Logger {
	return NewLoggerWithFields(StdLogger(), log.Fields{"component": name})
}
