package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// AccessLogger logs every request served by the operational endpoints.
type AccessLogger struct {
	logger zerolog.Logger
}

func NewAccessLogger(logger zerolog.Logger) *AccessLogger {
	return &AccessLogger{
		logger: logger.With().Str("component", "http_access").Logger(),
	}
}

func (a *AccessLogger) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()
		recorder := NewStatusRecorder(w)

		next.ServeHTTP(recorder, r)

		duration := time.Since(startTime)

		var logEvent *zerolog.Event

		switch {
		case recorder.StatusCode() >= http.StatusInternalServerError:
			logEvent = a.logger.Error()
		case recorder.StatusCode() >= http.StatusBadRequest:
			logEvent = a.logger.Warn()
		default:
			logEvent = a.logger.Info()
		}

		logEvent.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status_code", recorder.StatusCode()).
			Int64("response_size_bytes", recorder.BytesWritten()).
			Dur("duration", duration)

		if requestID := r.Header.Get("X-Request-ID"); requestID != "" {
			logEvent.Str("request_id", requestID)
		}

		logEvent.Msg("request completed")
	})
}
