package types

import "fmt"

// ResourceKind identifies the kind of cloud resource a handle refers to
type ResourceKind string

const (
	KindInstance            ResourceKind = "instance"
	KindSecurityGroup       ResourceKind = "security-group"
	KindTargetGroup         ResourceKind = "target-group"
	KindLoadBalancer        ResourceKind = "load-balancer"
	KindClassicLoadBalancer ResourceKind = "classic-load-balancer"
	KindListener            ResourceKind = "listener"
	KindRule                ResourceKind = "rule"
	KindKeyPair             ResourceKind = "key-pair"
	KindVolume              ResourceKind = "volume"
)

// ResourceHandle is an opaque reference to a provider resource.
// Handles are values: the kind and id never change after construction,
// and two handles are equal when both fields are equal.
type ResourceHandle struct {
	kind ResourceKind
	id   string
}

// NewHandle returns a handle for the given kind and provider id (ARN, instance id, group id, key name)
func NewHandle(kind ResourceKind, id string) ResourceHandle {
	return ResourceHandle{kind: kind, id: id}
}

// Kind returns the resource kind
func (h ResourceHandle) Kind() ResourceKind {
	return h.kind
}

// ID returns the provider identifier
func (h ResourceHandle) ID() string {
	return h.id
}

// IsZero reports whether the handle was never set
func (h ResourceHandle) IsZero() bool {
	return h.kind == "" && h.id == ""
}

func (h ResourceHandle) String() string {
	if h.IsZero() {
		return "<none>"
	}
	return fmt.Sprintf("%s/%s", h.kind, h.id)
}

// HandleIDs returns the provider ids of the given handles, in order
func HandleIDs(handles []ResourceHandle) []string {
	ids := make([]string, 0, len(handles))
	for _, h := range handles {
		ids = append(ids, h.id)
	}
	return ids
}
