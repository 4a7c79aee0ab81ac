// Package metrics exposes request and catalog counters for scraping.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studyshelf_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "studyshelf_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	notesCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "studyshelf_notes_created_total",
			Help: "Total number of notes created",
		},
	)

	downloadsServed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "studyshelf_downloads_served_total",
			Help: "Total number of file downloads resolved",
		},
	)
)

func init() {
	prometheus.MustRegister(requestsTotal, requestDuration, notesCreated, downloadsServed)
}

// NoteCreated bumps the created-notes counter.
func NoteCreated() {
	notesCreated.Inc()
}

// DownloadServed bumps the served-downloads counter.
func DownloadServed() {
	downloadsServed.Inc()
}

// Middleware records per-request counters and latency for gin routes.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		requestsTotal.WithLabelValues(c.Request.Method, route, status).Inc()
		requestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the scrape endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
