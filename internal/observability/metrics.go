package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry          *prometheus.Registry
	runsTotal         *prometheus.CounterVec
	runDuration       prometheus.Observer
	mergesTotal       prometheus.Counter
	storeHits         prometheus.Counter
	storeMisses       prometheus.Counter
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	runsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "segmentation_runs_total",
		Help: "Total count of segmentation runs by outcome.",
	}, []string{"status"})
	runDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "segmentation_run_duration_seconds",
		Help:    "Histogram of end-to-end segmentation run durations.",
		Buckets: prometheus.DefBuckets,
	})
	mergesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "segmentation_merges_total",
		Help: "Total segment merges performed during viability optimization.",
	})
	storeHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "store_hits_total",
		Help: "Total result-store cache hits observed.",
	})
	storeMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "store_misses_total",
		Help: "Total result-store cache misses observed.",
	})
	httpRequestsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total count of HTTP requests processed by route and status.",
	}, []string{"route", "status"})
	httpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Histogram of HTTP request durations by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		runsTotal,
		runDuration,
		mergesTotal,
		storeHits,
		storeMisses,
		httpRequestsTotal,
		httpDuration,
	)

	return &Metrics{
		registry:          registry,
		runsTotal:         runsTotal,
		runDuration:       runDuration,
		mergesTotal:       mergesTotal,
		storeHits:         storeHits,
		storeMisses:       storeMisses,
		httpRequestsTotal: httpRequestsTotal,
		httpDuration:      httpDuration,
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		duration := time.Since(start).Seconds()
		if m != nil {
			m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(duration)
		}
	})
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RunObserved(duration time.Duration, status string) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.Observe(duration.Seconds())
}

func (m *Metrics) MergesObserved(count int) {
	if m == nil {
		return
	}
	m.mergesTotal.Add(float64(count))
}

func (m *Metrics) StoreHit() {
	if m == nil {
		return
	}
	m.storeHits.Inc()
}

func (m *Metrics) StoreMiss() {
	if m == nil {
		return
	}
	m.storeMisses.Inc()
}
