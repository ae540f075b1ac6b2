package health

import (
	"sort"
	"sync"
	"time"
)

// Monitor tracks health of multiple components in a thread-safe manner.
type Monitor struct {
	mu       sync.RWMutex
	statuses map[string]Status
}

// NewMonitor creates a new health monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		statuses: make(map[string]Status),
	}
}

// Update records the health status for a named component.
func (m *Monitor) Update(name string, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status.Component = name
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}
	m.statuses[name] = status
}

// SetHealthy marks a component as healthy.
func (m *Monitor) SetHealthy(name, message string) {
	m.Update(name, NewHealthy(name, message))
}

// SetDegraded marks a component as degraded.
func (m *Monitor) SetDegraded(name, message string) {
	m.Update(name, NewDegraded(name, message))
}

// SetUnhealthy marks a component as unhealthy.
func (m *Monitor) SetUnhealthy(name, message string) {
	m.Update(name, NewUnhealthy(name, message))
}

// Get retrieves the health status for a named component.
func (m *Monitor) Get(name string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, exists := m.statuses[name]
	return status, exists
}

// Aggregate returns the aggregated system status, with sub-statuses
// ordered by component name for stable output.
func (m *Monitor) Aggregate(system string) Status {
	m.mu.RLock()
	statuses := make([]Status, 0, len(m.statuses))
	for _, s := range m.statuses {
		statuses = append(statuses, s)
	}
	m.mu.RUnlock()

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Component < statuses[j].Component
	})
	return Aggregate(system, statuses)
}
