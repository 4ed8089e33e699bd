package types

import "time"

// Instance represents an EC2 instance
type Instance struct {
	ID         string
	Name       string
	PrivateIP  string
	PublicIP   string
	State      string
	Type       string
	AZ         string
	RunID      string // value of the run tag, if any
	LaunchTime time.Time
}

// Handle returns the resource handle of the instance
func (i Instance) Handle() ResourceHandle {
	return NewHandle(KindInstance, i.ID)
}

// Terminated reports whether the instance is gone or going away
func (i Instance) Terminated() bool {
	return i.State == "terminated" || i.State == "shutting-down"
}

// InstanceHandles returns the handles of the given instances, in order
func InstanceHandles(instances []Instance) []ResourceHandle {
	out := make([]ResourceHandle, 0, len(instances))
	for _, i := range instances {
		out = append(out, i.Handle())
	}
	return out
}

// Volume represents an EBS volume
type Volume struct {
	ID         string
	AZ         string
	SizeGiB    int
	Type       string
	State      string // creating, available, in-use
	InstanceID string // attached instance, if any
	Device     string
	Attached   bool
}
