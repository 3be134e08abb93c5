package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "calbook",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	bookings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "calbook",
			Name:      "bookings_total",
			Help:      "Bookings by terminal status.",
		},
		[]string{"status"},
	)

	automationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "calbook",
			Name:      "automation_duration_seconds",
			Help:      "Wall time of completed booking automations.",
			Buckets:   []float64{5, 10, 20, 30, 45, 60, 90, 120, 180},
		},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "calbook",
			Name:      "automation_queue_depth",
			Help:      "Jobs waiting for a browser session.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, bookings, automationDuration, queueDepth)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncBooking increments the counter for a terminal booking status.
func IncBooking(status string) {
	bookings.WithLabelValues(status).Inc()
}

// ObserveAutomationDuration records how long a successful automation took.
func ObserveAutomationDuration(d time.Duration) {
	automationDuration.Observe(d.Seconds())
}

// SetQueueDepth records the current automation queue backlog.
func SetQueueDepth(depth int) {
	queueDepth.Set(float64(depth))
}
