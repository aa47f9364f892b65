package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// RequestLogger attaches a per-request logger carrying the request id to the
// context and logs each completed request. Server errors log at error level,
// client errors at warn.
func RequestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			reqID := middleware.GetReqID(r.Context())
			reqLogger := logger.With().Str("request_id", reqID).Logger()
			ctx := reqLogger.WithContext(r.Context())
			r = r.WithContext(ctx)

			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)

			// Inner middleware may have added fields to the context logger.
			final := zerolog.Ctx(ctx)
			var event *zerolog.Event
			switch {
			case ww.status >= http.StatusInternalServerError:
				event = final.Error()
			case ww.status >= http.StatusBadRequest:
				event = final.Warn()
			default:
				event = final.Info()
			}
			event.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote_ip", r.RemoteAddr).
				Int("status", ww.status).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}
