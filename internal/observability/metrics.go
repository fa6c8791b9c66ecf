package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce         sync.Once
	httpRequestsTotal    *prometheus.CounterVec
	httpLatencySeconds   *prometheus.HistogramVec
	uploadsTotal         *prometheus.CounterVec
	uploadLatencySeconds prometheus.Histogram
	gradeEventsPublished *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "homework",
			Name:      "http_requests_total",
			Help:      "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "homework",
			Name:      "http_request_duration_seconds",
			Help:      "Latency distribution for API requests.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5, 10, 30},
		}, []string{"method", "route"})

		uploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "homework",
			Name:      "uploads_total",
			Help:      "Uploaded documents by type and pipeline outcome.",
		}, []string{"doc_type", "outcome"})

		uploadLatencySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "homework",
			Name:      "upload_duration_seconds",
			Help:      "End-to-end duration of the upload and grading pipeline.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		})

		gradeEventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "homework",
			Name:      "grade_events_total",
			Help:      "Grade events published by transport and result.",
		}, []string{"transport", "result"})

		prometheus.MustRegister(httpRequestsTotal, httpLatencySeconds, uploadsTotal, uploadLatencySeconds, gradeEventsPublished)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// Uploads exposes the upload outcome counter.
func Uploads() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadsTotal
}

// UploadLatency exposes the pipeline duration histogram.
func UploadLatency() prometheus.Histogram {
	RegisterMetrics()
	return uploadLatencySeconds
}

// GradeEvents exposes the grade event publish counter.
func GradeEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return gradeEventsPublished
}
