package service

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/hazyhaar/inkplay/kit"
)

// RequestLogger assigns a trace ID to each request and logs it on
// completion with status and latency. Incoming X-Trace-Id headers are
// honoured so upstream proxies can correlate.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID := r.Header.Get("X-Trace-Id")
			if traceID == "" {
				traceID = uuid.NewString()
			}
			ctx := kit.WithTraceID(r.Context(), traceID)
			ctx = kit.WithRequestID(ctx, uuid.NewString())
			w.Header().Set("X-Trace-Id", traceID)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r.WithContext(ctx))

			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"trace_id", traceID)
		})
	}
}
