package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"
)

// observe logs each request and feeds the HTTP metrics. Routes are labelled
// by their chi pattern so path parameters do not blow up cardinality.
func (a *API) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		a.metrics.ObserveHTTP(route, r.Method, status, elapsed)

		args := []any{
			"method", r.Method,
			"route", route,
			"status", status,
			"duration", elapsed,
			"request_id", middleware.GetReqID(r.Context()),
		}
		if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
			args = append(args, "trace_id", sc.TraceID().String())
		}
		a.logger.Info(r.Context(), "http request", args...)
	})
}
