package playerlist

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/playerlist/errors"
	"github.com/c360/playerlist/health"
	"github.com/c360/playerlist/upstream"
)

type capturePublisher struct {
	mu        sync.Mutex
	snapshots []Status
}

func (p *capturePublisher) Publish(_ context.Context, status Status) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots = append(p.snapshots, status)
	return nil
}

func (p *capturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.snapshots)
}

func (p *capturePublisher) last() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshots[len(p.snapshots)-1]
}

func startRefresher(t *testing.T, r *Refresher) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, r.pool.Start(ctx))
	t.Cleanup(func() { _ = r.pool.Stop(time.Second) })
	return ctx
}

func TestRefresher_WarmCycleFillsCache(t *testing.T) {
	status := &fakeStatusSource{status: onlineStatus("Alice", "Bob")}
	profiles := newFakeProfiles()
	profiles.profiles["Alice"] = upstream.Profile{UUID: "f84c6a79-0a4e-45e0-879b-cd49ebd4c4e2", Username: "Alice"}
	profiles.profiles["Bob"] = upstream.Profile{UUID: "069a79f4-44e9-4726-a5be-fca90e38aaf5", Username: "Bob"}

	svc := newTestService(t, status, profiles)
	r := NewRefresher(svc, time.Minute, 2)
	ctx := startRefresher(t, r)

	r.runCycle(ctx)

	assert.Equal(t, int64(2), profiles.lookups.Load())

	// Aggregation now serves entirely from cache.
	got, err := svc.Aggregate(ctx)
	require.NoError(t, err)
	require.Len(t, got.Players, 2)
	assert.NotEmpty(t, got.Players[0].UUID)
	assert.Equal(t, int64(2), profiles.lookups.Load())
}

func TestRefresher_OfflineCycleSkipsLookups(t *testing.T) {
	status := &fakeStatusSource{status: upstream.ServerStatus{Online: false}}
	profiles := newFakeProfiles()
	monitor := health.NewMonitor()

	svc := newTestService(t, status, profiles)
	r := NewRefresher(svc, time.Minute, 2, WithHealthMonitor(monitor))
	ctx := startRefresher(t, r)

	r.runCycle(ctx)

	assert.Equal(t, int64(0), profiles.lookups.Load())
	st, ok := monitor.Get("refresher")
	require.True(t, ok)
	assert.True(t, st.Healthy)
}

func TestRefresher_FetchFailureReportsUnhealthy(t *testing.T) {
	status := &fakeStatusSource{err: errors.ErrUpstreamUnavailable}
	monitor := health.NewMonitor()

	svc := newTestService(t, status, newFakeProfiles())
	r := NewRefresher(svc, time.Minute, 2, WithHealthMonitor(monitor))
	ctx := startRefresher(t, r)

	r.runCycle(ctx)

	st, ok := monitor.Get("refresher")
	require.True(t, ok)
	assert.False(t, st.Healthy)
	assert.Equal(t, health.StateUnhealthy, st.Status)
}

func TestRefresher_PublishesSnapshotAfterWarmCycle(t *testing.T) {
	status := &fakeStatusSource{status: onlineStatus("Alice")}
	profiles := newFakeProfiles()
	profiles.profiles["Alice"] = upstream.Profile{UUID: "f84c6a79-0a4e-45e0-879b-cd49ebd4c4e2", Username: "Alice"}

	pub := &capturePublisher{}
	svc := newTestService(t, status, profiles)
	r := NewRefresher(svc, time.Minute, 2, WithPublishers(pub))
	ctx := startRefresher(t, r)

	r.runCycle(ctx)

	require.Equal(t, 1, pub.count())
	snapshot := pub.last()
	assert.True(t, snapshot.Online)
	require.Len(t, snapshot.Players, 1)
	assert.Equal(t, "f84c6a79-0a4e-45e0-879b-cd49ebd4c4e2", snapshot.Players[0].UUID)
}

func TestRefresher_LookupFailureDoesNotStopCycle(t *testing.T) {
	status := &fakeStatusSource{status: onlineStatus("Alice", "Ghost")}
	profiles := newFakeProfiles()
	profiles.profiles["Alice"] = upstream.Profile{UUID: "f84c6a79-0a4e-45e0-879b-cd49ebd4c4e2", Username: "Alice"}
	profiles.failing["Ghost"] = true

	pub := &capturePublisher{}
	svc := newTestService(t, status, profiles)
	r := NewRefresher(svc, time.Minute, 2, WithPublishers(pub))
	ctx := startRefresher(t, r)

	r.runCycle(ctx)

	require.Equal(t, 1, pub.count())
	snapshot := pub.last()
	require.Len(t, snapshot.Players, 2)
	assert.NotEmpty(t, snapshot.Players[0].UUID)
	assert.Empty(t, snapshot.Players[1].UUID)
}

func TestRefresher_RunStopsOnContextCancel(t *testing.T) {
	status := &fakeStatusSource{status: upstream.ServerStatus{Online: false}}
	svc := newTestService(t, status, newFakeProfiles())
	r := NewRefresher(svc, 10*time.Millisecond, 2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool {
		status.mu.Lock()
		defer status.mu.Unlock()
		return status.calls >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("refresher did not stop")
	}
}
