package types

import "time"

// Event is a progress record emitted by long-running operations
type Event struct {
	Phase  string
	Kind   ResourceKind
	Target string
	Result string
	Err    error
	At     time.Time
}
