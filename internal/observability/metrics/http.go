package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	searchTotal       *prometheus.CounterVec
	retrievedResults  *prometheus.HistogramVec
	retrievalDuration *prometheus.HistogramVec
	evidenceTotal     *prometheus.CounterVec
	webSearchTotal    *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sa",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sa",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sa",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	searchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sa",
			Subsystem: "retrieval",
			Name:      "search_total",
			Help:      "Total document searches by outcome.",
		},
		[]string{"service", "endpoint", "outcome"},
	)
	retrievedResults := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sa",
			Subsystem: "retrieval",
			Name:      "results",
			Help:      "Distribution of results per search.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service", "endpoint"},
	)
	retrievalDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sa",
			Subsystem: "retrieval",
			Name:      "duration_seconds",
			Help:      "Retrieval execution duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	evidenceTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sa",
			Subsystem: "retrieval",
			Name:      "evidence_total",
			Help:      "Total evidence requests by contributing source mix.",
		},
		[]string{"service", "sources"},
	)
	webSearchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sa",
			Subsystem: "retrieval",
			Name:      "web_search_total",
			Help:      "Total web search calls by status.",
		},
		[]string{"service", "status"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		searchTotal,
		retrievedResults,
		retrievalDuration,
		evidenceTotal,
		webSearchTotal,
	)

	return &HTTPServerMetrics{
		registry:          registry,
		requestTotal:      requestTotal,
		requestDuration:   requestDuration,
		requestInFlight:   requestInFlight,
		searchTotal:       searchTotal,
		retrievedResults:  retrievedResults,
		retrievalDuration: retrievalDuration,
		evidenceTotal:     evidenceTotal,
		webSearchTotal:    webSearchTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/documents/"):
		if strings.HasSuffix(path, "/reprocess") {
			return "/v1/documents/{document_id}/reprocess"
		}
		return "/v1/documents/{document_id}"
	default:
		return path
	}
}

// RecordSearch counts one search and its result distribution. Outcome is
// "hit" when anything came back, "empty" otherwise.
func (m *HTTPServerMetrics) RecordSearch(service, endpoint string, resultCount int, duration time.Duration) {
	outcome := "empty"
	if resultCount > 0 {
		outcome = "hit"
	}
	m.searchTotal.WithLabelValues(service, endpoint, outcome).Inc()
	m.retrievedResults.WithLabelValues(service, endpoint).Observe(float64(resultCount))
	m.retrievalDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())
}

// RecordEvidence tracks which sources actually contributed to a bundle:
// "documents", "web", "both", or "none".
func (m *HTTPServerMetrics) RecordEvidence(service string, docCount, webCount int) {
	sources := "none"
	switch {
	case docCount > 0 && webCount > 0:
		sources = "both"
	case docCount > 0:
		sources = "documents"
	case webCount > 0:
		sources = "web"
	}
	m.evidenceTotal.WithLabelValues(service, sources).Inc()
}

func (m *HTTPServerMetrics) RecordWebSearch(service string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.webSearchTotal.WithLabelValues(service, status).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
