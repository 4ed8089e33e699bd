package types

import (
	"sort"
	"time"
)

// TeardownStep is one delete operation in a teardown plan
type TeardownStep struct {
	Handle ResourceHandle
	Name   string
	Parent ResourceHandle // owning load balancer for listeners
}

// TeardownPlan lists discovered resources in deletion order.
// It is built from a fresh discovery pass and never persisted.
type TeardownPlan struct {
	LoadBalancers        []TeardownStep
	Listeners            map[ResourceHandle][]TeardownStep // keyed by load balancer
	ClassicLoadBalancers []TeardownStep
	TargetGroups         []TeardownStep
	Instances            []TeardownStep
	DiscoveredAt         time.Time
	Errors               []error // discovery failures confined to one resource
}

// Steps flattens the plan into execution order
func (p TeardownPlan) Steps() []TeardownStep {
	var steps []TeardownStep
	for _, lb := range p.LoadBalancers {
		steps = append(steps, p.Listeners[lb.Handle]...)
		steps = append(steps, lb)
	}
	steps = append(steps, p.ClassicLoadBalancers...)
	steps = append(steps, p.TargetGroups...)
	steps = append(steps, p.Instances...)
	return steps
}

// Empty reports whether the plan has nothing to delete
func (p TeardownPlan) Empty() bool {
	return len(p.Steps()) == 0
}

// TeardownTally counts teardown outcomes for one resource kind
type TeardownTally struct {
	Deleted  int `yaml:"deleted"`
	Skipped  int `yaml:"skipped"`
	NotFound int `yaml:"not_found"`
	Failed   int `yaml:"failed"`
}

// TeardownReport summarizes one teardown pass
type TeardownReport struct {
	Tallies  map[ResourceKind]TeardownTally
	Started  time.Time
	Finished time.Time
}

// Tally returns the counts recorded for kind
func (r TeardownReport) Tally(kind ResourceKind) TeardownTally {
	return r.Tallies[kind]
}

// Add merges delta into the counts for kind
func (r *TeardownReport) Add(kind ResourceKind, delta TeardownTally) {
	if r.Tallies == nil {
		r.Tallies = make(map[ResourceKind]TeardownTally)
	}
	t := r.Tallies[kind]
	t.Deleted += delta.Deleted
	t.Skipped += delta.Skipped
	t.NotFound += delta.NotFound
	t.Failed += delta.Failed
	r.Tallies[kind] = t
}

// IsZero reports whether nothing was recorded
func (r TeardownReport) IsZero() bool {
	for _, t := range r.Tallies {
		if t != (TeardownTally{}) {
			return false
		}
	}
	return true
}

// Kinds returns the recorded kinds in stable order
func (r TeardownReport) Kinds() []ResourceKind {
	kinds := make([]ResourceKind, 0, len(r.Tallies))
	for k := range r.Tallies {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
