//go:build !windows && !plan9

package logging

import (
	"io"
	"log/syslog"

	"github.com/rs/zerolog"
)

func openSyslog(tag string) (io.Writer, io.Closer, error) {
	w, err := syslog.New(syslog.LOG_INFO|syslog.LOG_DAEMON, tag)
	if err != nil {
		return nil, nil, err
	}
	return zerolog.SyslogLevelWriter(w), w, nil
}
