// Package metrics exposes Prometheus collectors for the watch agent and the phone library.
package metrics

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sample drop reasons
const (
	DropNotRecording = "not_recording"
	DropNoReading    = "no_reading"
	DropBeforeZero   = "before_zero"
	DropInvalid      = "invalid"
)

// Ingest results
const (
	IngestStored    = "stored"
	IngestDuplicate = "duplicate"
	IngestMalformed = "malformed"
	IngestError     = "error"
)

// Collector provides application metrics collection.
// All methods are safe to call on a nil *Collector.
type Collector struct {
	registry *prometheus.Registry

	// HTTP Metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Watch Metrics
	SamplesAcceptedTotal prometheus.Counter
	SamplesDroppedTotal  *prometheus.CounterVec
	SessionsTotal        *prometheus.CounterVec
	RecordPoints         prometheus.Histogram
	TransmitTotal        *prometheus.CounterVec

	// Phone Metrics
	IngestTotal    *prometheus.CounterVec
	IngestDuration prometheus.Histogram
	LibraryRecords prometheus.Gauge

	// Database Metrics
	DBConnectionPool *prometheus.GaugeVec
}

// NewCollector creates a collector registered on its own registry
func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Collector{
		registry: reg,

		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests by route, method, and status",
			},
			[]string{"route", "method", "status"},
		),

		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0},
			},
			[]string{"route"},
		),

		SamplesAcceptedTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "samples_accepted_total",
				Help:      "Total number of heart-rate samples buffered into a session",
			},
		),

		SamplesDroppedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "samples_dropped_total",
				Help:      "Total number of heart-rate samples not buffered, by reason",
			},
			[]string{"reason"},
		),

		SessionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_total",
				Help:      "Total number of stopped sessions by outcome",
			},
			[]string{"outcome"}, // "finalized", "empty", "failed"
		),

		RecordPoints: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "record_points",
				Help:      "Number of data points per finalized record",
				Buckets:   []float64{1, 10, 50, 100, 500, 1000, 5000, 10000},
			},
		),

		TransmitTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transmit_total",
				Help:      "Total number of record transmissions by result",
			},
			[]string{"result"},
		),

		IngestTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingest_total",
				Help:      "Total number of inbound record payloads by result",
			},
			[]string{"result"},
		),

		IngestDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ingest_duration_seconds",
				Help:      "Duration of record ingestion in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1.0},
			},
		),

		LibraryRecords: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "library_records",
				Help:      "Number of records in the library",
			},
		),

		DBConnectionPool: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connection_pool",
				Help:      "Database connection pool statistics",
			},
			[]string{"state"}, // "in_use", "idle", "open"
		),
	}
}

// Registry returns the registry the collectors are registered on
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the collector's registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and durations by matched route
func (c *Collector) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		if c == nil {
			return
		}
		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		c.HTTPRequestsTotal.WithLabelValues(route, ctx.Request.Method, strconv.Itoa(ctx.Writer.Status())).Inc()
		c.HTTPRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// SampleAccepted counts a buffered sample
func (c *Collector) SampleAccepted() {
	if c == nil {
		return
	}
	c.SamplesAcceptedTotal.Inc()
}

// SampleDropped counts a sample that was not buffered
func (c *Collector) SampleDropped(reason string) {
	if c == nil {
		return
	}
	c.SamplesDroppedTotal.WithLabelValues(reason).Inc()
}

// SessionFinalized counts a stopped session that produced a record
func (c *Collector) SessionFinalized(points int) {
	if c == nil {
		return
	}
	c.SessionsTotal.WithLabelValues("finalized").Inc()
	c.RecordPoints.Observe(float64(points))
}

// SessionEmpty counts a stopped session that buffered nothing
func (c *Collector) SessionEmpty() {
	if c == nil {
		return
	}
	c.SessionsTotal.WithLabelValues("empty").Inc()
}

// SessionFailed counts a stopped session whose record could not be built
func (c *Collector) SessionFailed() {
	if c == nil {
		return
	}
	c.SessionsTotal.WithLabelValues("failed").Inc()
}

// RecordTransmit counts a transmission attempt
func (c *Collector) RecordTransmit(err error) {
	if c == nil {
		return
	}
	result := "sent"
	if err != nil {
		result = "failed"
	}
	c.TransmitTotal.WithLabelValues(result).Inc()
}

// RecordIngest counts an inbound payload and its handling time
func (c *Collector) RecordIngest(result string, d time.Duration) {
	if c == nil {
		return
	}
	c.IngestTotal.WithLabelValues(result).Inc()
	c.IngestDuration.Observe(d.Seconds())
}

// SetLibrarySize updates the library size gauge
func (c *Collector) SetLibrarySize(n int) {
	if c == nil {
		return
	}
	c.LibraryRecords.Set(float64(n))
}

// UpdateDBConnectionPool updates database connection pool metrics
func (c *Collector) UpdateDBConnectionPool(stats sql.DBStats) {
	if c == nil {
		return
	}
	c.DBConnectionPool.WithLabelValues("in_use").Set(float64(stats.InUse))
	c.DBConnectionPool.WithLabelValues("idle").Set(float64(stats.Idle))
	c.DBConnectionPool.WithLabelValues("open").Set(float64(stats.OpenConnections))
}
