package logging

import (
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/rs/zerolog"
)

// Middleware logs one event per request with method, path, status and
// duration. Server errors are logged at error level, client errors at
// warn, everything else at info.
func Middleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m := httpsnoop.CaptureMetrics(next, w, r)

			var event *zerolog.Event
			switch {
			case m.Code >= 500:
				event = logger.Error()
			case m.Code >= 400:
				event = logger.Warn()
			default:
				event = logger.Info()
			}

			event.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status_code", m.Code).
				Int64("bytes", m.Written).
				Dur("duration", m.Duration).
				Str("cache", w.Header().Get("X-Cache")).
				Msg("Request completed")
		})
	}
}
