package cache

import (
	"time"

	"github.com/c360/playerlist/metric"
)

// Option configures cache behavior using the functional options pattern.
type Option[V any] func(*cacheOptions[V])

type cacheOptions[V any] struct {
	clock         func() time.Time
	metricsReg    *metric.Registry
	metricsPrefix string
}

// WithClock injects the time source used for FetchedAt stamps and freshness
// checks. Defaults to time.Now.
func WithClock[V any](clock func() time.Time) Option[V] {
	return func(o *cacheOptions[V]) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithMetrics enables Prometheus export of cache statistics.
// If registry is nil or prefix is empty the option is ignored.
func WithMetrics[V any](registry *metric.Registry, prefix string) Option[V] {
	return func(o *cacheOptions[V]) {
		if registry != nil && prefix != "" {
			o.metricsReg = registry
			o.metricsPrefix = prefix
		}
	}
}

func applyOptions[V any](opts ...Option[V]) *cacheOptions[V] {
	o := &cacheOptions[V]{
		clock: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}
