// Package health provides health monitoring for service components.
package health

import "time"

// Component states reported through the monitor.
const (
	StateHealthy   = "healthy"
	StateDegraded  = "degraded"
	StateUnhealthy = "unhealthy"
)

// Status represents the health state of a component or of the whole system.
type Status struct {
	Component   string    `json:"component"`
	Healthy     bool      `json:"healthy"`
	Status      string    `json:"status"`
	Message     string    `json:"message,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	SubStatuses []Status  `json:"sub_statuses,omitempty"`
}

// NewHealthy creates a healthy status for a component.
func NewHealthy(component, message string) Status {
	return Status{
		Component: component,
		Healthy:   true,
		Status:    StateHealthy,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewDegraded creates a degraded status for a component.
func NewDegraded(component, message string) Status {
	return Status{
		Component: component,
		Healthy:   false,
		Status:    StateDegraded,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewUnhealthy creates an unhealthy status for a component.
func NewUnhealthy(component, message string) Status {
	return Status{
		Component: component,
		Healthy:   false,
		Status:    StateUnhealthy,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Aggregate combines component statuses into a system status using
// worst-of semantics: any unhealthy component makes the system unhealthy,
// otherwise any degraded component makes it degraded.
func Aggregate(system string, statuses []Status) Status {
	agg := Status{
		Component:   system,
		Healthy:     true,
		Status:      StateHealthy,
		Timestamp:   time.Now(),
		SubStatuses: statuses,
	}

	for _, s := range statuses {
		switch s.Status {
		case StateUnhealthy:
			agg.Healthy = false
			agg.Status = StateUnhealthy
			return agg
		case StateDegraded:
			agg.Healthy = false
			agg.Status = StateDegraded
		}
	}

	return agg
}
