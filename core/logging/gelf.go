package logging

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// GraylogConfig configures the GELF sink.
type GraylogConfig struct {
	Active bool   `yaml:"active"`
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
}

// Addr returns host:port.
func (c GraylogConfig) Addr() string {
	return net.JoinHostPort(c.Host, fmt.Sprint(c.Port))
}

// GELFWriter sends zerolog events to Graylog as uncompressed GELF 1.1
// datagrams over UDP. Every message is tagged with the application name.
type GELFWriter struct {
	mu   sync.Mutex
	conn net.Conn
	host string
	tag  string
}

// DialGELF connects to a Graylog UDP input.
func DialGELF(addr, tag string) (*GELFWriter, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial graylog: %w", err)
	}
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}
	return &GELFWriter{conn: conn, host: host, tag: tag}, nil
}

// Write converts one encoded zerolog event to GELF and sends it.
func (g *GELFWriter) Write(p []byte) (int, error) {
	data, err := json.Marshal(g.message(p))
	if err != nil {
		return 0, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, err := g.conn.Write(data); err != nil {
		return 0, fmt.Errorf("send gelf message: %w", err)
	}
	return len(p), nil
}

// Close closes the UDP socket.
func (g *GELFWriter) Close() error {
	return g.conn.Close()
}

func (g *GELFWriter) message(p []byte) map[string]any {
	var ev map[string]any
	if err := json.Unmarshal(p, &ev); err != nil {
		ev = map[string]any{zerolog.MessageFieldName: strings.TrimSpace(string(p))}
	}

	short, _ := ev[zerolog.MessageFieldName].(string)
	if short == "" {
		short = "-"
	}
	level, _ := ev[zerolog.LevelFieldName].(string)

	ts := float64(time.Now().UnixMilli()) / 1000
	if s, ok := ev[zerolog.TimestampFieldName].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			ts = float64(t.UnixMilli()) / 1000
		}
	}

	msg := map[string]any{
		"version":       "1.1",
		"host":          g.host,
		"short_message": short,
		"timestamp":     ts,
		"level":         int(priorityForLevel(level)),
		"_tag":          g.tag,
	}
	for k, v := range ev {
		switch k {
		case zerolog.MessageFieldName, zerolog.LevelFieldName, zerolog.TimestampFieldName:
			continue
		case "id":
			// "_id" is reserved by GELF
			k = "field_id"
		}
		msg["_"+k] = v
	}
	return msg
}
