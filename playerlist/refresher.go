package playerlist

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/c360/playerlist/health"
	"github.com/c360/playerlist/metric"
	"github.com/c360/playerlist/pkg/worker"
)

// Publisher receives the aggregate snapshot after each successful refresh
// cycle.
type Publisher interface {
	Publish(ctx context.Context, status Status) error
}

// Refresher warms the profile cache on a fixed interval so viewer requests
// are served from cache. Each cycle fetches the server status, refreshes
// every connected player's profile through a worker pool, then hands the
// resulting snapshot to the registered publishers.
type Refresher struct {
	service  *Service
	interval time.Duration
	pool     *worker.Pool[warmJob]

	logger     *slog.Logger
	metrics    *metric.CoreMetrics
	registry   *metric.Registry
	monitor    *health.Monitor
	publishers []Publisher
}

type warmJob struct {
	username string
	wg       *sync.WaitGroup
}

// RefresherOption configures a Refresher.
type RefresherOption func(*Refresher)

// WithRefresherLogger sets the refresher logger.
func WithRefresherLogger(logger *slog.Logger) RefresherOption {
	return func(r *Refresher) {
		if logger != nil {
			r.logger = logger.With("component", "refresher")
		}
	}
}

// WithRefresherMetrics attaches the core service metrics.
func WithRefresherMetrics(m *metric.CoreMetrics) RefresherOption {
	return func(r *Refresher) { r.metrics = m }
}

// WithWorkerMetrics exports the lookup pool's counters on the registry.
func WithWorkerMetrics(registry *metric.Registry) RefresherOption {
	return func(r *Refresher) { r.registry = registry }
}

// WithHealthMonitor reports cycle outcomes to the health monitor.
func WithHealthMonitor(m *health.Monitor) RefresherOption {
	return func(r *Refresher) { r.monitor = m }
}

// WithPublishers registers snapshot publishers.
func WithPublishers(pubs ...Publisher) RefresherOption {
	return func(r *Refresher) { r.publishers = append(r.publishers, pubs...) }
}

// NewRefresher creates a refresher that runs a warm cycle every interval
// using a pool of the given number of lookup workers.
func NewRefresher(service *Service, interval time.Duration, workers int, opts ...RefresherOption) *Refresher {
	r := &Refresher{
		service:  service,
		interval: interval,
		logger:   slog.Default().With("component", "refresher"),
	}
	for _, opt := range opts {
		opt(r)
	}

	var poolOpts []worker.Option[warmJob]
	if r.registry != nil {
		poolOpts = append(poolOpts, worker.WithMetrics[warmJob](r.registry, "refresh"))
	}
	r.pool = worker.NewPool(workers, workers*16, r.process, poolOpts...)
	return r
}

func (r *Refresher) process(ctx context.Context, job warmJob) error {
	defer job.wg.Done()
	if err := r.service.Warm(ctx, job.username); err != nil {
		r.logger.Warn("profile refresh failed", "username", job.username, "error", err)
		return err
	}
	return nil
}

// Run executes the initial warm cycle, then one per interval until the
// context is cancelled. Cycle failures never stop the loop.
func (r *Refresher) Run(ctx context.Context) error {
	if err := r.pool.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := r.pool.Stop(5 * time.Second); err != nil {
			r.logger.Warn("worker pool stop", "error", err)
		}
	}()

	r.runCycle(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.runCycle(ctx)
		}
	}
}

func (r *Refresher) runCycle(ctx context.Context) {
	serverStatus, err := r.service.FetchStatus(ctx)
	if err != nil {
		r.countCycle("error")
		r.reportUnhealthy("status fetch failed: " + err.Error())
		r.logger.Warn("refresh cycle skipped, status fetch failed", "error", err)
		return
	}

	if !serverStatus.Online {
		r.countCycle("offline")
		r.reportHealthy("server offline, nothing to refresh")
		r.logger.Debug("refresh cycle skipped, server offline")
		return
	}

	var wg sync.WaitGroup
	for _, username := range serverStatus.Players.List {
		wg.Add(1)
		if err := r.pool.Submit(warmJob{username: username, wg: &wg}); err != nil {
			wg.Done()
			r.logger.Warn("refresh job dropped", "username", username, "error", err)
		}
	}

	// Queued jobs are abandoned when the context is cancelled, so the wait
	// must not outlive it.
	warmed := make(chan struct{})
	go func() {
		wg.Wait()
		close(warmed)
	}()
	select {
	case <-ctx.Done():
		return
	case <-warmed:
	}

	r.publish(ctx)

	r.countCycle("ok")
	r.reportHealthy("last cycle ok")
	r.logger.Info("refresh cycle complete", "players", len(serverStatus.Players.List))
}

// publish builds the aggregate snapshot and hands it to every publisher.
// With the cache just warmed this serves entirely from cache.
func (r *Refresher) publish(ctx context.Context) {
	if len(r.publishers) == 0 {
		return
	}

	snapshot, err := r.service.Aggregate(ctx)
	if err != nil {
		r.logger.Warn("snapshot aggregation failed", "error", err)
		return
	}
	for _, pub := range r.publishers {
		if err := pub.Publish(ctx, snapshot); err != nil {
			r.logger.Warn("snapshot publish failed", "error", err)
		}
	}
}

func (r *Refresher) countCycle(result string) {
	if r.metrics != nil {
		r.metrics.RefreshCycles.WithLabelValues(result).Inc()
	}
}

func (r *Refresher) reportHealthy(message string) {
	if r.monitor != nil {
		r.monitor.SetHealthy("refresher", message)
	}
}

func (r *Refresher) reportUnhealthy(message string) {
	if r.monitor != nil {
		r.monitor.SetUnhealthy("refresher", message)
	}
}
