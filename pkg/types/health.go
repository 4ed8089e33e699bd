package types

import (
	"sort"
	"time"
)

// HealthState is the health of one target as reported by its target group
type HealthState string

const (
	HealthInitial     HealthState = "initial"
	HealthHealthy     HealthState = "healthy"
	HealthUnhealthy   HealthState = "unhealthy"
	HealthDraining    HealthState = "draining"
	HealthUnused      HealthState = "unused"
	HealthUnavailable HealthState = "unavailable"
)

// ParseHealthState maps a provider state string to a HealthState.
// Unknown values are treated as unhealthy.
func ParseHealthState(s string) HealthState {
	switch HealthState(s) {
	case HealthInitial, HealthHealthy, HealthUnhealthy, HealthDraining, HealthUnused, HealthUnavailable:
		return HealthState(s)
	default:
		return HealthUnhealthy
	}
}

// HealthSnapshot is the health of every registered target of one target group at one instant.
// A new snapshot is taken on every poll; snapshots are never updated in place.
type HealthSnapshot struct {
	TargetGroup ResourceHandle
	Targets     map[ResourceHandle]HealthState
	Reasons     map[ResourceHandle]string
	TakenAt     time.Time
}

// AllHealthy reports whether every target is healthy. An empty snapshot is healthy.
func (s HealthSnapshot) AllHealthy() bool {
	for _, state := range s.Targets {
		if state != HealthHealthy {
			return false
		}
	}
	return true
}

// Count returns the number of targets in the given state
func (s HealthSnapshot) Count(state HealthState) int {
	n := 0
	for _, st := range s.Targets {
		if st == state {
			n++
		}
	}
	return n
}

// NotHealthy returns the targets that are not healthy, sorted by id
func (s HealthSnapshot) NotHealthy() []ResourceHandle {
	var out []ResourceHandle
	for h, state := range s.Targets {
		if state != HealthHealthy {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}
