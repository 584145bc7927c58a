//go:build windows || plan9

package logging

import (
	"errors"
	"io"
)

func openSyslog(string) (io.Writer, io.Closer, error) {
	return nil, nil, errors.New("syslog is not supported on this platform")
}
