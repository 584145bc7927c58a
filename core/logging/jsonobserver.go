package logging

import (
	"bufio"
	"encoding/json"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// accessLogPattern matches combined-log-format access lines.
var accessLogPattern = regexp.MustCompile(
	`^(?P<ip>\d+\.\d+\.\d+\.\d+) - - \[(?P<timestamp>[^\]]+)\] "(?P<method>\w+) (?P<url>[^\s]+) [^"]+" (?P<status>\d+) (?P<size>\d+) "[^"]*" "(?P<user_agent>[^"]+)"`,
)

const observerTimeFormat = "2006-01-02T15:04:05"

// JSONObserver re-encodes zerolog events as flat JSON lines:
//
//	{"log_level":"INFO","message":"...","system":"...","timestamp":"..."}
//
// Access log messages additionally get their fields extracted (ip, method,
// url, status, size, user_agent; timestamp becomes the request time). Each
// line is flushed as soon as it is written.
type JSONObserver struct {
	mu     sync.Mutex
	w      *bufio.Writer
	system string
	now    func() time.Time
}

// NewJSONObserver creates an observer writing to w. system is used for
// events that carry no "system" field.
func NewJSONObserver(w io.Writer, system string) *JSONObserver {
	return &JSONObserver{
		w:      bufio.NewWriter(w),
		system: system,
		now:    time.Now,
	}
}

// Write consumes one encoded zerolog event.
func (o *JSONObserver) Write(p []byte) (int, error) {
	data, err := json.Marshal(o.entry(p))
	if err != nil {
		return 0, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if _, err := o.w.Write(append(data, '\n')); err != nil {
		return 0, err
	}
	if err := o.w.Flush(); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (o *JSONObserver) entry(p []byte) map[string]string {
	var ev map[string]any
	if err := json.Unmarshal(p, &ev); err != nil {
		ev = map[string]any{zerolog.MessageFieldName: strings.TrimSpace(string(p))}
	}

	level, _ := ev[zerolog.LevelFieldName].(string)
	logLevel := "INFO"
	if isErrorLevel(level) {
		logLevel = "ERROR"
	}

	system, _ := ev["system"].(string)
	if system == "" {
		system = o.system
	}

	entry := map[string]string{
		"timestamp": o.timestamp(ev),
		"log_level": logLevel,
		"system":    system,
		"message":   formatMessage(ev, logLevel == "ERROR", p),
	}
	for k, v := range ExtractAccessFields(entry["message"]) {
		entry[k] = v
	}
	return entry
}

func (o *JSONObserver) timestamp(ev map[string]any) string {
	if s, ok := ev[zerolog.TimestampFieldName].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t.UTC().Format(observerTimeFormat)
		}
	}
	return o.now().UTC().Format(observerTimeFormat)
}

func formatMessage(ev map[string]any, isError bool, raw []byte) string {
	if msg, ok := ev[zerolog.MessageFieldName].(string); ok && msg != "" {
		return msg
	}
	if isError {
		if e, ok := ev[zerolog.ErrorFieldName].(string); ok {
			return e
		}
	}
	return strings.TrimSpace(string(raw))
}

// ExtractAccessFields parses a combined-log-format line. It returns nil for
// messages that are not access log lines.
func ExtractAccessFields(message string) map[string]string {
	m := accessLogPattern.FindStringSubmatch(message)
	if m == nil {
		return nil
	}
	fields := make(map[string]string, len(m)-1)
	for i, name := range accessLogPattern.SubexpNames() {
		if name != "" {
			fields[name] = m[i]
		}
	}
	return fields
}
