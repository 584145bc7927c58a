// Package logging builds the application logger and the sinks it can feed:
// syslog, a JSON line file rotated daily, and Graylog over GELF/UDP.
//
// Messages logged through Log carry a "[SEVERITY]" prefix and the syslog
// priority they map to, so every sink agrees on how severe an event is.
package logging

import (
	"github.com/rs/zerolog"
)

// Priority is a syslog priority (RFC 5424 severity).
type Priority int

const (
	PriorityEmerg   Priority = 0
	PriorityAlert   Priority = 1
	PriorityCrit    Priority = 2
	PriorityErr     Priority = 3
	PriorityWarning Priority = 4
	PriorityNotice  Priority = 5
	PriorityInfo    Priority = 6
	PriorityDebug   Priority = 7
)

// Severity is a framework log severity.
type Severity int

const (
	Debug Severity = iota
	Info
	Warning
	Error
	Critical
)

// String returns the severity label used in message prefixes.
func (s Severity) String() string {
	switch s {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warning:
		return "WARNING"
	case Error:
		return "ERROR"
	case Critical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Priority maps the severity to syslog.
func (s Severity) Priority() Priority {
	switch s {
	case Debug:
		return PriorityDebug
	case Warning:
		return PriorityWarning
	case Error:
		return PriorityErr
	case Critical:
		return PriorityCrit
	default:
		return PriorityInfo
	}
}

// Level maps the severity to zerolog. Critical uses PanicLevel because
// zerolog's syslog writer sends that level as LOG_CRIT; it is emitted with
// WithLevel and never panics.
func (s Severity) Level() zerolog.Level {
	switch s {
	case Debug:
		return zerolog.DebugLevel
	case Warning:
		return zerolog.WarnLevel
	case Error:
		return zerolog.ErrorLevel
	case Critical:
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

// Prefix prepends the severity label to msg. Error severities without a
// message report an unhandled exception.
func Prefix(s Severity, msg string) string {
	if msg == "" && s >= Error {
		msg = "Unhandled exception"
	}
	return "[" + s.String() + "] " + msg
}

// Log writes a severity-prefixed message. err may be nil.
func Log(logger zerolog.Logger, s Severity, msg string, err error) {
	ev := logger.WithLevel(s.Level()).Int("syslog_priority", int(s.Priority()))
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg(Prefix(s, msg))
}

// priorityForLevel maps a zerolog level name, as found in encoded events, to
// a syslog priority.
func priorityForLevel(level string) Priority {
	switch level {
	case zerolog.LevelTraceValue, zerolog.LevelDebugValue:
		return PriorityDebug
	case zerolog.LevelWarnValue:
		return PriorityWarning
	case zerolog.LevelErrorValue:
		return PriorityErr
	case zerolog.LevelFatalValue:
		return PriorityEmerg
	case zerolog.LevelPanicValue:
		return PriorityCrit
	default:
		return PriorityInfo
	}
}

// isErrorLevel reports whether an encoded level name denotes an error.
func isErrorLevel(level string) bool {
	switch level {
	case zerolog.LevelErrorValue, zerolog.LevelFatalValue, zerolog.LevelPanicValue:
		return true
	}
	return false
}
