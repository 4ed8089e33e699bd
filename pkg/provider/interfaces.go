package provider

import (
	"context"
	"errors"
	"time"

	"github.com/vietdv277/clusterbench/pkg/types"
)

// Common errors
var (
	ErrNotFound         = errors.New("resource not found")
	ErrNotConfigured    = errors.New("provider not configured")
	ErrAuthFailed       = errors.New("authentication failed")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNoDefaultVPC     = errors.New("no default VPC in region")
	ErrNotEnoughSubnets = errors.New("not enough subnets for a load balancer")
)

// Tags are key/value pairs attached to created resources
type Tags map[string]string

// TagFilter restricts discovery to resources carrying Key=Value.
// A nil filter matches everything.
type TagFilter struct {
	Key   string
	Value string
}

// Matches reports whether tags satisfy the filter
func (f *TagFilter) Matches(tags Tags) bool {
	if f == nil {
		return true
	}
	return tags[f.Key] == f.Value
}

// SecurityGroupSpec describes a security group to ensure
type SecurityGroupSpec struct {
	Name         string
	Description  string
	VPCID        string
	IngressPorts []int
	CIDR         string
	Tags         Tags
}

// KeyPairSpec describes a key pair to ensure
type KeyPairSpec struct {
	Name           string
	PrivateKeyPath string // where a newly created private key is written
	Tags           Tags
}

// InstanceSpec describes one batch of identical instances
type InstanceSpec struct {
	Name            string
	InstanceType    string
	AMI             string
	Count           int
	KeyName         string
	SecurityGroupID string
	SubnetID        string
	Monitoring      bool
	Tags            Tags
}

// InstanceFilter contains filters for instance listing
type InstanceFilter struct {
	States []string // defaults to every state except terminated
	Tag    *TagFilter
}

// VolumeSpec describes an EBS volume to create
type VolumeSpec struct {
	AZ      string
	SizeGiB int
	Type    string
	Tags    Tags
}

// TargetGroupSpec describes a target group to create
type TargetGroupSpec struct {
	Name            string
	Protocol        string
	Port            int
	VPCID           string
	HealthCheckPath string
	Tags            Tags
}

// LoadBalancerSpec describes an application load balancer to create
type LoadBalancerSpec struct {
	Name           string
	SubnetIDs      []string
	SecurityGroups []string
	Tags           Tags
}

// ListenerSpec describes a listener forwarding to a default target group
type ListenerSpec struct {
	LoadBalancer       types.ResourceHandle
	Protocol           string
	Port               int
	DefaultTargetGroup types.ResourceHandle
}

// RuleSpec describes a path-based forwarding rule
type RuleSpec struct {
	Listener    types.ResourceHandle
	PathPattern string
	Priority    int
	TargetGroup types.ResourceHandle
}

// NetworkProvider defines network discovery and access setup
type NetworkProvider interface {
	// DefaultVPC returns the region's default VPC
	DefaultVPC(ctx context.Context) (*types.VPC, error)

	// ListSubnets returns the subnets of a VPC
	ListSubnets(ctx context.Context, vpcID string) ([]types.Subnet, error)

	// EnsureSecurityGroup creates the group or returns AlreadyExists with its handle
	EnsureSecurityGroup(ctx context.Context, spec SecurityGroupSpec) Result

	// EnsureKeyPair creates the key pair or returns AlreadyExists
	EnsureKeyPair(ctx context.Context, spec KeyPairSpec) Result
}

// ComputeProvider defines instance and volume operations
type ComputeProvider interface {
	// RunInstances launches Count instances and returns them as launched
	RunInstances(ctx context.Context, spec InstanceSpec) ([]types.Instance, error)

	// StartInstances starts stopped instances
	StartInstances(ctx context.Context, ids []types.ResourceHandle) error

	// WaitInstancesRunning blocks until every instance is running or maxWait elapses
	WaitInstancesRunning(ctx context.Context, ids []types.ResourceHandle, maxWait time.Duration) error

	// DescribeInstances returns the current view of the given instances
	DescribeInstances(ctx context.Context, ids []types.ResourceHandle) ([]types.Instance, error)

	// ListInstances returns instances matching the filter
	ListInstances(ctx context.Context, filter *InstanceFilter) ([]types.Instance, error)

	// TerminateInstances terminates every instance in one call
	TerminateInstances(ctx context.Context, ids []types.ResourceHandle) Result

	// CreateVolume creates a volume and waits until it is available
	CreateVolume(ctx context.Context, spec VolumeSpec) (*types.Volume, error)

	// AttachVolume requests attachment of a volume to an instance
	AttachVolume(ctx context.Context, volume, instance types.ResourceHandle, device string) error

	// DescribeVolume returns the current view of a volume
	DescribeVolume(ctx context.Context, volume types.ResourceHandle) (*types.Volume, error)

	// SetDeleteOnTermination marks the device's volume for deletion with the instance
	SetDeleteOnTermination(ctx context.Context, instance types.ResourceHandle, device string) error
}

// LoadBalancingProvider defines load balancer, listener and target group operations
type LoadBalancingProvider interface {
	// FindTargetGroup returns the named group, or nil when it does not exist
	FindTargetGroup(ctx context.Context, name string) (*types.TargetGroup, error)

	// CreateTargetGroup creates a target group
	CreateTargetGroup(ctx context.Context, spec TargetGroupSpec) Result

	// DeleteTargetGroup deletes a target group; InUse while a listener still routes to it
	DeleteTargetGroup(ctx context.Context, tg types.ResourceHandle) Result

	// ListTargetGroups returns target groups matching the filter
	ListTargetGroups(ctx context.Context, filter *TagFilter) ([]types.TargetGroup, error)

	// RegisterTargets registers instances with a target group on port
	RegisterTargets(ctx context.Context, tg types.ResourceHandle, instances []types.ResourceHandle, port int) error

	// DescribeTargetHealth returns a fresh health snapshot of a target group
	DescribeTargetHealth(ctx context.Context, tg types.ResourceHandle) (types.HealthSnapshot, error)

	// CreateLoadBalancer creates an internet-facing application load balancer
	CreateLoadBalancer(ctx context.Context, spec LoadBalancerSpec) (*types.LoadBalancer, error)

	// WaitLoadBalancerAvailable blocks until the load balancer is active or maxWait elapses
	WaitLoadBalancerAvailable(ctx context.Context, lb types.ResourceHandle, maxWait time.Duration) error

	// ListLoadBalancers returns load balancers matching the filter
	ListLoadBalancers(ctx context.Context, filter *TagFilter) ([]types.LoadBalancer, error)

	// DeleteLoadBalancer deletes a load balancer
	DeleteLoadBalancer(ctx context.Context, lb types.ResourceHandle) Result

	// WaitLoadBalancersDeleted blocks until none of the load balancers exist
	WaitLoadBalancersDeleted(ctx context.Context, lbs []types.ResourceHandle, maxWait time.Duration) error

	// ListListeners returns the listeners of a load balancer
	ListListeners(ctx context.Context, lb types.ResourceHandle) ([]types.Listener, error)

	// CreateListener creates a listener with a forward default action
	CreateListener(ctx context.Context, spec ListenerSpec) Result

	// DeleteListener deletes a listener
	DeleteListener(ctx context.Context, listener types.ResourceHandle) Result

	// CreateRule creates a path-pattern forwarding rule
	CreateRule(ctx context.Context, spec RuleSpec) Result

	// ListClassicLoadBalancers returns the names of classic load balancers
	ListClassicLoadBalancers(ctx context.Context) ([]string, error)

	// DeleteClassicLoadBalancer deletes a classic load balancer by name
	DeleteClassicLoadBalancer(ctx context.Context, name string) Result
}

// MetricsProvider reads monitoring data
type MetricsProvider interface {
	// GetSeries returns the datapoints of one metric, sorted by time
	GetSeries(ctx context.Context, query types.MetricQuery) (types.Series, error)
}

// Host is a remote execution target
type Host struct {
	InstanceID string
	Address    string
}

// ProgressFunc reports bytes sent out of total during an upload
type ProgressFunc func(sent, total int64)

// RemoteExecutor runs commands and copies files on instances
type RemoteExecutor interface {
	// WaitReachable blocks until the host accepts commands or the retry budget is spent
	WaitReachable(ctx context.Context, host Host) error

	// Run executes commands in order and returns their combined output
	Run(ctx context.Context, host Host, commands []string) (string, error)

	// Upload writes content to remotePath on the host
	Upload(ctx context.Context, host Host, content []byte, remotePath string, progress ProgressFunc) error
}
