package plugin

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nalonix/better-auth/internal/auth/dispatch"
)

const metricsStartKey = "metrics_started_at"

// Metrics counts dispatches and observes their latency.
//
// The catch-all middleware stamps a start time into the request overlay and
// counts the call; the after-hook reads the stamp back from the original
// context and observes the elapsed time. Failed dispatches abort before the
// after-hook, so the histogram only covers completed operations.
func Metrics(reg prometheus.Registerer) dispatch.Plugin {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "better_auth",
		Subsystem: "dispatch",
		Name:      "requests_total",
		Help:      "Dispatched operations by path and method.",
	}, []string{"path", "method"})

	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "better_auth",
		Subsystem: "dispatch",
		Name:      "request_duration_seconds",
		Help:      "Latency of completed operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"path"})

	reg.MustRegister(requests, latency)

	return dispatch.Plugin{
		ID: "metrics",
		Middlewares: []dispatch.Middleware{{
			Path: "/*",
			Handler: func(ctx *dispatch.Context) (any, error) {
				requests.WithLabelValues(ctx.Path, ctx.Method).Inc()
				ctx.Values[metricsStartKey] = time.Now()
				return nil, nil
			},
		}},
		Hooks: dispatch.Hooks{
			After: []dispatch.AfterHook{{
				Matcher: func(ctx *dispatch.Context) bool {
					_, ok := ctx.Values[metricsStartKey].(time.Time)
					return ok
				},
				Handler: func(ctx *dispatch.Context) (*dispatch.Replacement, error) {
					if started, ok := ctx.Values[metricsStartKey].(time.Time); ok {
						latency.WithLabelValues(ctx.Path).Observe(time.Since(started).Seconds())
					}
					return nil, nil
				},
			}},
		},
	}
}
