package types

import "time"

// LoadBalancer represents an application load balancer
type LoadBalancer struct {
	Name      string
	ARN       string
	DNSName   string
	Type      string // application, network, gateway
	Scheme    string // internet-facing, internal
	State     string
	VPCID     string
	AZs       []string
	CreatedAt time.Time
}

// Handle returns the resource handle of the load balancer
func (lb LoadBalancer) Handle() ResourceHandle {
	return NewHandle(KindLoadBalancer, lb.ARN)
}

// TargetGroup represents a target group behind a load balancer
type TargetGroup struct {
	Name            string
	ARN             string
	Protocol        string
	Port            int
	VPCID           string
	Type            string // instance, ip, lambda
	HealthCheckPath string
	LBARNs          []string // load balancers routing to this group
}

// Handle returns the resource handle of the target group
func (tg TargetGroup) Handle() ResourceHandle {
	return NewHandle(KindTargetGroup, tg.ARN)
}

// InUse reports whether a load balancer still routes to the group
func (tg TargetGroup) InUse() bool {
	return len(tg.LBARNs) > 0
}

// Target represents a target in a target group
type Target struct {
	ID     string // instance ID or IP
	Port   int
	AZ     string
	Health string
	Reason string
}

// Listener represents a load balancer listener
type Listener struct {
	ARN      string
	LBARN    string
	Port     int
	Protocol string
}

// Handle returns the resource handle of the listener
func (l Listener) Handle() ResourceHandle {
	return NewHandle(KindListener, l.ARN)
}

// TargetGroupBinding associates a target group with the instances registered to it.
// A recreated group yields a new binding.
type TargetGroupBinding struct {
	Cluster         string
	TargetGroup     ResourceHandle
	Instances       []ResourceHandle
	HealthCheckPath string
	Port            int
}
