package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"assetlib/internal/logger"
	"assetlib/internal/observability"
)

// Metrics logs each request and records its duration under the matched route
// pattern, so path parameters do not explode the label set.
func Metrics(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			duration := time.Since(start)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = p
				}
			}

			log.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"duration", duration.String(),
				"request_id", chimw.GetReqID(r.Context()),
			)
			observability.HTTPRequestDuration.WithLabelValues(
				r.Method,
				route,
				strconv.Itoa(status),
			).Observe(duration.Seconds())
		})
	}
}
