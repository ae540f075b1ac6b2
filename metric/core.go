package metric

import "github.com/prometheus/client_golang/prometheus"

// Metric namespace shared by all service metrics.
const Namespace = "playerlist"

// CoreMetrics holds the service-level metrics every deployment exports.
type CoreMetrics struct {
	// HTTPRequests counts requests served, labeled by path and status code.
	HTTPRequests *prometheus.CounterVec

	// LookupFailures counts profile lookups that returned an error.
	LookupFailures prometheus.Counter

	// LookupDuration observes profile lookup latency in seconds.
	LookupDuration prometheus.Histogram

	// RefreshCycles counts warm-up cycles, labeled by result
	// (ok, offline, error).
	RefreshCycles *prometheus.CounterVec

	// PlayersOnline is the player count reported by the last successful
	// status fetch.
	PlayersOnline prometheus.Gauge
}

func newCoreMetrics() *CoreMetrics {
	return &CoreMetrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests served",
		}, []string{"path", "code"}),
		LookupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "lookup",
			Name:      "failures_total",
			Help:      "Total profile lookups that failed",
		}),
		LookupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "lookup",
			Name:      "duration_seconds",
			Help:      "Profile lookup latency",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		RefreshCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "refresh",
			Name:      "cycles_total",
			Help:      "Total cache warm-up cycles by result",
		}, []string{"result"}),
		PlayersOnline: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "players_online",
			Help:      "Player count reported by the last successful status fetch",
		}),
	}
}
