package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "riskshield",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests served, by method, path pattern and status.",
	}, []string{"method", "path", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "riskshield",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	scoringDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "riskshield",
		Subsystem: "scoring",
		Name:      "duration_seconds",
		Help:      "End-to-end scoring pipeline latency.",
		Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	})

	fraudDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "riskshield",
		Subsystem: "scoring",
		Name:      "decisions_total",
		Help:      "Scoring decisions, by verdict.",
	}, []string{"verdict"})
)

// MetricsMiddleware records per-request Prometheus metrics.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		requestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rw.statusCode)).Inc()
		requestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

func observeDecision(isFraud int, elapsed time.Duration) {
	scoringDuration.Observe(elapsed.Seconds())
	verdict := "legitimate"
	if isFraud == 1 {
		verdict = "fraud"
	}
	fraudDecisions.WithLabelValues(verdict).Inc()
}
