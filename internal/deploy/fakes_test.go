package deploy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vietdv277/clusterbench/internal/bench"
	"github.com/vietdv277/clusterbench/internal/healthgate"
	"github.com/vietdv277/clusterbench/internal/report"
	"github.com/vietdv277/clusterbench/pkg/provider"
	"github.com/vietdv277/clusterbench/pkg/types"
)

// recorder keeps the order of calls across every fake
type recorder struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

func (r *recorder) record(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
	return r.fail[name]
}

func (r *recorder) first(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, c := range r.calls {
		if c == name {
			return i
		}
	}
	return -1
}

func (r *recorder) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c == name {
			n++
		}
	}
	return n
}

type fakeCloud struct {
	*recorder

	subnets     []types.Subnet
	instances   map[string]types.Instance
	ipAfter     int // DescribeInstances calls before public ips appear
	describes   int
	tgs         map[string]*types.TargetGroup
	tgInUse     bool
	volumes     map[string]*types.Volume
	attachAfter int
	volumePolls int

	listener  provider.ListenerSpec
	rules     []provider.RuleSpec
	registers map[string]int
}

func newFakeCloud(rec *recorder) *fakeCloud {
	return &fakeCloud{
		recorder: rec,
		subnets: []types.Subnet{
			{ID: "subnet-a", AZ: "us-east-1a"},
			{ID: "subnet-b", AZ: "us-east-1b"},
			{ID: "subnet-c", AZ: "us-east-1c"},
		},
		instances: map[string]types.Instance{},
		tgs:       map[string]*types.TargetGroup{},
		volumes:   map[string]*types.Volume{},
		registers: map[string]int{},
	}
}

func (f *fakeCloud) DefaultVPC(ctx context.Context) (*types.VPC, error) {
	if err := f.record("DefaultVPC"); err != nil {
		return nil, err
	}
	return &types.VPC{ID: "vpc-1", IsDefault: true}, nil
}

func (f *fakeCloud) ListSubnets(ctx context.Context, vpcID string) ([]types.Subnet, error) {
	return f.subnets, f.record("ListSubnets")
}

func (f *fakeCloud) EnsureSecurityGroup(ctx context.Context, spec provider.SecurityGroupSpec) provider.Result {
	h := types.NewHandle(types.KindSecurityGroup, "sg-1")
	if err := f.record("EnsureSecurityGroup"); err != nil {
		return provider.Failed(provider.OutcomeOtherError, h, err)
	}
	return provider.Created(h)
}

func (f *fakeCloud) EnsureKeyPair(ctx context.Context, spec provider.KeyPairSpec) provider.Result {
	h := types.NewHandle(types.KindKeyPair, spec.Name)
	if err := f.record("EnsureKeyPair"); err != nil {
		return provider.Failed(provider.OutcomeOtherError, h, err)
	}
	return provider.Result{Outcome: provider.OutcomeAlreadyExists, Handle: h}
}

func (f *fakeCloud) RunInstances(ctx context.Context, spec provider.InstanceSpec) ([]types.Instance, error) {
	if err := f.record("RunInstances"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Instance
	for n := 0; n < spec.Count; n++ {
		inst := types.Instance{
			ID:    fmt.Sprintf("i-%s-%d", spec.Name, n),
			Name:  spec.Name,
			State: "pending",
			Type:  spec.InstanceType,
			AZ:    "us-east-1a",
		}
		f.instances[inst.ID] = inst
		out = append(out, inst)
	}
	return out, nil
}

func (f *fakeCloud) StartInstances(ctx context.Context, ids []types.ResourceHandle) error {
	return f.record("StartInstances")
}

func (f *fakeCloud) WaitInstancesRunning(ctx context.Context, ids []types.ResourceHandle, maxWait time.Duration) error {
	return f.record("WaitInstancesRunning")
}

func (f *fakeCloud) DescribeInstances(ctx context.Context, ids []types.ResourceHandle) ([]types.Instance, error) {
	if err := f.record("DescribeInstances"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.describes++
	var out []types.Instance
	for i, h := range ids {
		inst := f.instances[h.ID()]
		inst.State = "running"
		if f.describes > f.ipAfter {
			inst.PublicIP = fmt.Sprintf("54.0.0.%d", i+1)
		}
		out = append(out, inst)
	}
	return out, nil
}

func (f *fakeCloud) ListInstances(ctx context.Context, filter *provider.InstanceFilter) ([]types.Instance, error) {
	return nil, errors.New("not used")
}

func (f *fakeCloud) TerminateInstances(ctx context.Context, ids []types.ResourceHandle) provider.Result {
	return provider.Failed(provider.OutcomeOtherError, types.ResourceHandle{}, errors.New("not used"))
}

func (f *fakeCloud) CreateVolume(ctx context.Context, spec provider.VolumeSpec) (*types.Volume, error) {
	if err := f.record("CreateVolume"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	vol := &types.Volume{ID: fmt.Sprintf("vol-%d", len(f.volumes)+1), AZ: spec.AZ, SizeGiB: spec.SizeGiB, Type: spec.Type, State: "available"}
	f.volumes[vol.ID] = vol
	return vol, nil
}

func (f *fakeCloud) AttachVolume(ctx context.Context, volume, instance types.ResourceHandle, device string) error {
	if err := f.record("AttachVolume"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	v := f.volumes[volume.ID()]
	v.InstanceID = instance.ID()
	v.Device = device
	return nil
}

func (f *fakeCloud) DescribeVolume(ctx context.Context, volume types.ResourceHandle) (*types.Volume, error) {
	if err := f.record("DescribeVolume"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volumePolls++
	v := *f.volumes[volume.ID()]
	if f.volumePolls%(f.attachAfter+1) == 0 {
		v.State = "in-use"
		v.Attached = true
	}
	return &v, nil
}

func (f *fakeCloud) SetDeleteOnTermination(ctx context.Context, instance types.ResourceHandle, device string) error {
	return f.record("SetDeleteOnTermination")
}

func (f *fakeCloud) FindTargetGroup(ctx context.Context, name string) (*types.TargetGroup, error) {
	if err := f.record("FindTargetGroup"); err != nil {
		return nil, err
	}
	return f.tgs[name], nil
}

func (f *fakeCloud) CreateTargetGroup(ctx context.Context, spec provider.TargetGroupSpec) provider.Result {
	arn := "arn:tg/" + spec.Name + "/new"
	h := types.NewHandle(types.KindTargetGroup, arn)
	if err := f.record("CreateTargetGroup"); err != nil {
		return provider.Failed(provider.OutcomeOtherError, h, err)
	}
	f.tgs[spec.Name] = &types.TargetGroup{Name: spec.Name, ARN: arn, Port: spec.Port, HealthCheckPath: spec.HealthCheckPath, VPCID: spec.VPCID}
	return provider.Created(h)
}

func (f *fakeCloud) DeleteTargetGroup(ctx context.Context, tg types.ResourceHandle) provider.Result {
	f.record("DeleteTargetGroup")
	if f.tgInUse {
		return provider.Failed(provider.OutcomeInUse, tg, errors.New("ResourceInUse"))
	}
	return provider.Deleted(tg)
}

func (f *fakeCloud) ListTargetGroups(ctx context.Context, filter *provider.TagFilter) ([]types.TargetGroup, error) {
	return nil, errors.New("not used")
}

func (f *fakeCloud) RegisterTargets(ctx context.Context, tg types.ResourceHandle, instances []types.ResourceHandle, port int) error {
	if err := f.record("RegisterTargets"); err != nil {
		return err
	}
	f.registers[fmt.Sprintf("%s:%d", tg.ID(), port)] = len(instances)
	return nil
}

func (f *fakeCloud) DescribeTargetHealth(ctx context.Context, tg types.ResourceHandle) (types.HealthSnapshot, error) {
	return types.HealthSnapshot{TargetGroup: tg}, nil
}

func (f *fakeCloud) CreateLoadBalancer(ctx context.Context, spec provider.LoadBalancerSpec) (*types.LoadBalancer, error) {
	if err := f.record("CreateLoadBalancer"); err != nil {
		return nil, err
	}
	return &types.LoadBalancer{
		Name:    spec.Name,
		ARN:     "arn:aws:elasticloadbalancing:us-east-1:123:loadbalancer/app/" + spec.Name + "/abc",
		DNSName: spec.Name + ".elb.amazonaws.com",
	}, nil
}

func (f *fakeCloud) WaitLoadBalancerAvailable(ctx context.Context, lb types.ResourceHandle, maxWait time.Duration) error {
	return f.record("WaitLoadBalancerAvailable")
}

func (f *fakeCloud) ListLoadBalancers(ctx context.Context, filter *provider.TagFilter) ([]types.LoadBalancer, error) {
	return nil, errors.New("not used")
}

func (f *fakeCloud) DeleteLoadBalancer(ctx context.Context, lb types.ResourceHandle) provider.Result {
	return provider.Failed(provider.OutcomeOtherError, lb, errors.New("not used"))
}

func (f *fakeCloud) WaitLoadBalancersDeleted(ctx context.Context, lbs []types.ResourceHandle, maxWait time.Duration) error {
	return errors.New("not used")
}

func (f *fakeCloud) ListListeners(ctx context.Context, lb types.ResourceHandle) ([]types.Listener, error) {
	return nil, errors.New("not used")
}

func (f *fakeCloud) CreateListener(ctx context.Context, spec provider.ListenerSpec) provider.Result {
	h := types.NewHandle(types.KindListener, "listener-1")
	if err := f.record("CreateListener"); err != nil {
		return provider.Failed(provider.OutcomeOtherError, h, err)
	}
	f.listener = spec
	return provider.Created(h)
}

func (f *fakeCloud) DeleteListener(ctx context.Context, listener types.ResourceHandle) provider.Result {
	return provider.Failed(provider.OutcomeOtherError, listener, errors.New("not used"))
}

func (f *fakeCloud) CreateRule(ctx context.Context, spec provider.RuleSpec) provider.Result {
	h := types.NewHandle(types.KindRule, fmt.Sprintf("rule-%d", spec.Priority))
	if err := f.record("CreateRule"); err != nil {
		return provider.Failed(provider.OutcomeOtherError, h, err)
	}
	f.rules = append(f.rules, spec)
	return provider.Created(h)
}

func (f *fakeCloud) ListClassicLoadBalancers(ctx context.Context) ([]string, error) {
	return nil, errors.New("not used")
}

func (f *fakeCloud) DeleteClassicLoadBalancer(ctx context.Context, name string) provider.Result {
	return provider.Failed(provider.OutcomeOtherError, types.ResourceHandle{}, errors.New("not used"))
}

type fakeExec struct {
	*recorder
	uploads map[string]string // instance id -> content
}

func (f *fakeExec) WaitReachable(ctx context.Context, host provider.Host) error {
	return f.record("WaitReachable")
}

func (f *fakeExec) Run(ctx context.Context, host provider.Host, commands []string) (string, error) {
	return "", f.record("Run")
}

func (f *fakeExec) Upload(ctx context.Context, host provider.Host, content []byte, remotePath string, progress provider.ProgressFunc) error {
	if err := f.record("Upload"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads[host.InstanceID] = string(content)
	return nil
}

type fakeGate struct {
	*recorder
	statuses map[string]healthgate.Status // by target group id
	err      error
	awaited  []string
}

func (f *fakeGate) AwaitHealthy(ctx context.Context, tg types.ResourceHandle, maxAttempts int, interval time.Duration) (healthgate.Result, error) {
	f.record("AwaitHealthy")
	f.awaited = append(f.awaited, tg.ID())
	if f.err != nil {
		return healthgate.Result{Status: healthgate.StatusTimedOut}, f.err
	}
	status, ok := f.statuses[tg.ID()]
	if !ok {
		status = healthgate.StatusReady
	}
	return healthgate.Result{Status: status, Attempts: 1}, nil
}

type fakeBench struct {
	*recorder
	host provider.Host
	opts bench.Options
}

func (f *fakeBench) Run(ctx context.Context, host provider.Host, opts bench.Options) (*bench.Result, error) {
	if err := f.record("Benchmark"); err != nil {
		return nil, err
	}
	f.host = host
	f.opts = opts
	return &bench.Result{Host: host.InstanceID, Requests: opts.Requests, Total: time.Second}, nil
}

type fakeCollector struct {
	*recorder
	bindings []types.TargetGroupBinding
}

func (f *fakeCollector) Collect(ctx context.Context, lb *types.LoadBalancer, bindings []types.TargetGroupBinding) (*report.Report, error) {
	if err := f.record("Metrics"); err != nil {
		return nil, err
	}
	f.bindings = bindings
	return &report.Report{LoadBalancer: lb.Name}, nil
}
