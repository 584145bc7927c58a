package web

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const accessTimeFormat = "02/Jan/2006:15:04:05 -0700"

// NewAccessLogMiddleware logs every request as a combined log format line.
// Requests whose path starts with one of skip are not logged.
func NewAccessLogMiddleware(logger zerolog.Logger, skip ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			for _, prefix := range skip {
				if prefix != "" && strings.HasPrefix(r.URL.Path, prefix) {
					return
				}
			}

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			logger.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Dur("duration", time.Since(start)).
				Msg(CombinedLogLine(r, status, ww.BytesWritten(), start))
		})
	}
}

// CombinedLogLine formats a request in the Apache combined log format.
func CombinedLogLine(r *http.Request, status, size int, at time.Time) string {
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		host = h
	}

	return fmt.Sprintf(`%s - - [%s] "%s %s %s" %d %d "%s" "%s"`,
		host,
		at.Format(accessTimeFormat),
		r.Method,
		r.URL.RequestURI(),
		r.Proto,
		status,
		size,
		orDash(r.Referer()),
		orDash(r.UserAgent()),
	)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
