package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// DefaultSlowRequestThreshold is the latency above which AccessLog warns.
const DefaultSlowRequestThreshold = time.Second

// statusRecorder captures the status code and size of a response.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int64
}

func (w *statusRecorder) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.written += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// AccessLog logs one line per request and a warning for requests slower than
// slow. A zero slow uses DefaultSlowRequestThreshold.
func AccessLog(logger *slog.Logger, slow time.Duration) func(http.Handler) http.Handler {
	if slow <= 0 {
		slow = DefaultSlowRequestThreshold
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}

			next.ServeHTTP(rec, r)

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			took := time.Since(start)

			log := logger
			if reqID := GetRequestID(r.Context()); reqID != "" {
				log = log.With(slog.String("request_id", reqID))
			}
			log.InfoContext(r.Context(), "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Int64("bytes", rec.written),
				slog.Int64("duration_ms", took.Milliseconds()),
			)
			if took > slow {
				log.WarnContext(r.Context(), "slow request detected",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int64("duration_ms", took.Milliseconds()),
				)
			}
		})
	}
}
