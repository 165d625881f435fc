package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projectile_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "projectile_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	computationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projectile_computations_total",
			Help: "Plot actions by outcome (ok, parse, no_solution, render).",
		},
		[]string{"outcome"},
	)

	computationDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "projectile_computation_duration_seconds",
			Help:    "Time to compute and render the three charts.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	flightTimeSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "projectile_flight_time_seconds",
			Help:    "Computed time of flight of plotted launches.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)

	renderCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "projectile_render_cache_hits_total",
		Help: "Render cache hits.",
	})

	renderCacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "projectile_render_cache_misses_total",
		Help: "Render cache misses.",
	})

	renderCacheEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "projectile_render_cache_evictions_total",
		Help: "Render cache entries evicted by age or size.",
	})

	renderCacheEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "projectile_render_cache_entries",
		Help: "Encoded charts currently cached.",
	})

	renderCacheBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "projectile_render_cache_size_bytes",
		Help: "Total size of encoded charts currently cached.",
	})

	sessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "projectile_sessions_active",
		Help: "Open interactive websocket sessions.",
	})

	sessionConnections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projectile_session_connections_total",
			Help: "Session connect and disconnect events.",
		},
		[]string{"event"},
	)

	sessionMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projectile_session_messages_total",
			Help: "Session messages by direction (in, out).",
		},
		[]string{"direction"},
	)

	sessionErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projectile_session_errors_total",
			Help: "Session errors by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		computationsTotal,
		computationDurationSeconds,
		flightTimeSeconds,
		renderCacheHits,
		renderCacheMisses,
		renderCacheEvictions,
		renderCacheEntries,
		renderCacheBytes,
		sessionsActive,
		sessionConnections,
		sessionMessages,
		sessionErrors,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordComputation counts a plot action. Duration is only observed for
// actions that reached the kinematics engine.
func RecordComputation(outcome string, d time.Duration) {
	computationsTotal.WithLabelValues(outcome).Inc()
	if d > 0 {
		computationDurationSeconds.Observe(d.Seconds())
	}
}

// ObserveFlightTime records the time of flight of a plotted launch.
func ObserveFlightTime(seconds float64) { flightTimeSeconds.Observe(seconds) }

func IncRenderCacheHits()   { renderCacheHits.Inc() }
func IncRenderCacheMisses() { renderCacheMisses.Inc() }

func AddRenderCacheEvictions(n int) {
	renderCacheEvictions.Add(float64(n))
}

// SetRenderCacheSize publishes the current cache occupancy.
func SetRenderCacheSize(entries int, bytes int64) {
	renderCacheEntries.Set(float64(entries))
	renderCacheBytes.Set(float64(bytes))
}

func IncSessionsActive() { sessionsActive.Inc() }
func DecSessionsActive() { sessionsActive.Dec() }

func IncSessionConnections(event string) {
	sessionConnections.WithLabelValues(event).Inc()
}

func IncSessionMessages(direction string) {
	sessionMessages.WithLabelValues(direction).Inc()
}

func IncSessionErrors(reason string) {
	sessionErrors.WithLabelValues(reason).Inc()
}

// knownRoutes are exact paths reported under their own label.
var knownRoutes = map[string]bool{
	"/":                   true,
	"/healthz":            true,
	"/readyz":             true,
	"/metrics":            true,
	"/app.js":             true,
	"/styles.css":         true,
	"/api/v1/trajectory":  true,
	"/api/v1/cache/stats": true,
	"/api/v1/session":     true,
}

// normalizeRoute maps a request path to a bounded set of metric labels.
// Chart paths collapse to one label; anything unknown becomes "other".
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	if rest, ok := strings.CutPrefix(path, "/api/v1/charts/"); ok && rest != "" && !strings.Contains(rest, "/") {
		return "/api/v1/charts/{kind}"
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Hijack is required by the websocket upgrader.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: underlying ResponseWriter does not support hijacking")
	}
	return h.Hijack()
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
