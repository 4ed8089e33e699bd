// Package deploy provisions the benchmark infrastructure in a fixed order,
// gates on target health and runs the traffic phases.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vietdv277/clusterbench/internal/bench"
	"github.com/vietdv277/clusterbench/internal/healthgate"
	"github.com/vietdv277/clusterbench/internal/logging"
	"github.com/vietdv277/clusterbench/internal/payload"
	"github.com/vietdv277/clusterbench/internal/report"
	"github.com/vietdv277/clusterbench/internal/retry"
	"github.com/vietdv277/clusterbench/pkg/provider"
	"github.com/vietdv277/clusterbench/pkg/types"
)

// Step names, in execution order
const (
	StepNetwork       = "network"
	StepSecurityGroup = "security-group"
	StepKeyPair       = "key-pair"
	StepInstances     = "instances"
	StepVolumes       = "volumes"
	StepPayload       = "payload"
	StepTargetGroups  = "target-groups"
	StepLoadBalancer  = "load-balancer"
	StepListener      = "listener"
	StepRules         = "rules"
	StepStart         = "start-instances"
	StepRegister      = "register-targets"
	StepHealth        = "health"
	StepBenchmark     = "benchmark"
	StepMetrics       = "metrics"
)

var (
	errNoPublicIP    = errors.New("instances have no public ip yet")
	errNotAttached   = errors.New("volume not attached yet")
	errMissingRemote = errors.New("no remote executor configured")
)

// StepError reports the step that aborted a deployment
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("deploy step %s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Provider is the cloud surface a deployment uses
type Provider interface {
	provider.NetworkProvider
	provider.ComputeProvider
	provider.LoadBalancingProvider
}

// Gate waits for a target group to become healthy
type Gate interface {
	AwaitHealthy(ctx context.Context, tg types.ResourceHandle, maxAttempts int, interval time.Duration) (healthgate.Result, error)
}

// BenchRunner runs the load test from one host
type BenchRunner interface {
	Run(ctx context.Context, host provider.Host, opts bench.Options) (*bench.Result, error)
}

// MetricsCollector gathers metrics once traffic has been sent
type MetricsCollector interface {
	Collect(ctx context.Context, lb *types.LoadBalancer, bindings []types.TargetGroupBinding) (*report.Report, error)
}

// ClusterDeployment is the state of one cluster after a run
type ClusterDeployment struct {
	Cluster     Cluster
	Instances   []types.Instance
	TargetGroup types.ResourceHandle
	TGOutcome   provider.Outcome
	Health      healthgate.Result
}

// Binding returns the cluster's target group binding
func (c *ClusterDeployment) Binding(port int) types.TargetGroupBinding {
	return types.TargetGroupBinding{
		Cluster:         c.Cluster.Name,
		TargetGroup:     c.TargetGroup,
		Instances:       types.InstanceHandles(c.Instances),
		HealthCheckPath: c.Cluster.Path,
		Port:            port,
	}
}

// Deployment is everything a run created or reused
type Deployment struct {
	RunID          string
	Network        types.Network
	SecurityGroup  types.ResourceHandle
	KeyPair        types.ResourceHandle
	Clusters       []*ClusterDeployment
	Volumes        []types.Volume
	LoadBalancer   *types.LoadBalancer
	Listener       types.ResourceHandle
	Rules          []types.ResourceHandle
	TrafficSkipped bool
	Benchmark      *bench.Result
	Metrics        *report.Report
	Started        time.Time
	Finished       time.Time

	appPort int
}

// Bindings returns one binding per cluster, in plan order
func (d *Deployment) Bindings() []types.TargetGroupBinding {
	out := make([]types.TargetGroupBinding, 0, len(d.Clusters))
	for _, c := range d.Clusters {
		out = append(out, c.Binding(d.appPort))
	}
	return out
}

// AllReady reports whether every cluster's health gate ended Ready
func (d *Deployment) AllReady() bool {
	for _, c := range d.Clusters {
		if !c.Health.Ready() {
			return false
		}
	}
	return true
}

// Instances returns every instance of every cluster
func (d *Deployment) Instances() []types.Instance {
	var out []types.Instance
	for _, c := range d.Clusters {
		out = append(out, c.Instances...)
	}
	return out
}

// Orchestrator runs deployments
type Orchestrator struct {
	provider Provider
	exec     provider.RemoteExecutor
	gate     Gate
	bench    BenchRunner
	metrics  MetricsCollector
	retrier  *retry.Retrier
	logger   *logging.Logger
	now      func() time.Time
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithGate replaces the default health gate
func WithGate(g Gate) Option {
	return func(o *Orchestrator) {
		o.gate = g
	}
}

// WithBenchmark enables the load test phase
func WithBenchmark(b BenchRunner) Option {
	return func(o *Orchestrator) {
		o.bench = b
	}
}

// WithMetrics enables the metrics phase
func WithMetrics(m MetricsCollector) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithRetrier sets the retrier used at every wait point
func WithRetrier(r *retry.Retrier) Option {
	return func(o *Orchestrator) {
		o.retrier = r
	}
}

// WithLogger sets the logger
func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// New creates an Orchestrator. Without WithGate, health is read from p through a healthgate.Gate.
func New(p Provider, exec provider.RemoteExecutor, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		provider: p,
		exec:     exec,
		retrier:  retry.New(),
		logger:   logging.Discard(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.gate == nil {
		o.gate = healthgate.New(p, healthgate.WithRetrier(o.retrier), healthgate.WithLogger(o.logger))
	}
	return o
}

// Run executes the plan. The first failing step aborts the run with a *StepError; nothing is
// rolled back. When a health gate times out the traffic phases are skipped and Run returns no error.
func (o *Orchestrator) Run(ctx context.Context, plan Plan) (*Deployment, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	if o.exec == nil {
		return nil, errMissingRemote
	}

	d := &Deployment{RunID: plan.RunID, Started: o.now(), appPort: plan.AppPort}
	for _, c := range plan.Clusters {
		d.Clusters = append(d.Clusters, &ClusterDeployment{Cluster: c})
	}
	defer func() { d.Finished = o.now() }()

	steps := []struct {
		name string
		run  func(context.Context, Plan, *Deployment) error
		skip bool
	}{
		{StepNetwork, o.network, false},
		{StepSecurityGroup, o.securityGroup, false},
		{StepKeyPair, o.keyPair, false},
		{StepInstances, o.instances, false},
		{StepVolumes, o.volumes, plan.Volume == nil},
		{StepPayload, o.payload, false},
		{StepTargetGroups, o.targetGroups, false},
		{StepLoadBalancer, o.loadBalancer, false},
		{StepListener, o.listener, false},
		{StepRules, o.rules, false},
		{StepStart, o.startInstances, false},
		{StepRegister, o.register, false},
		{StepHealth, o.health, false},
	}
	for _, s := range steps {
		if s.skip {
			continue
		}
		if err := ctx.Err(); err != nil {
			return d, &StepError{Step: s.name, Err: err}
		}
		if err := s.run(ctx, plan, d); err != nil {
			o.emit(s.name, "", "", "failed", err)
			return d, &StepError{Step: s.name, Err: err}
		}
	}

	if !d.AllReady() {
		d.TrafficSkipped = true
		o.logger.Phase("traffic").Warn("not every target group is healthy, skipping benchmark and metrics")
		return d, nil
	}

	if o.bench != nil && plan.Bench != nil {
		if err := o.benchmark(ctx, plan, d); err != nil {
			return d, &StepError{Step: StepBenchmark, Err: err}
		}
	}
	if o.metrics != nil && plan.Metrics {
		rep, err := o.metrics.Collect(ctx, d.LoadBalancer, d.Bindings())
		if err != nil {
			return d, &StepError{Step: StepMetrics, Err: err}
		}
		d.Metrics = rep
		o.emit(StepMetrics, "", d.LoadBalancer.Name, "collected", nil)
	}

	return d, nil
}

func (o *Orchestrator) emit(phase string, kind types.ResourceKind, target, result string, err error) {
	o.logger.LogEvent(types.Event{
		Phase:  phase,
		Kind:   kind,
		Target: target,
		Result: result,
		Err:    err,
		At:     o.now(),
	})
}

func (o *Orchestrator) network(ctx context.Context, _ Plan, d *Deployment) error {
	vpc, err := o.provider.DefaultVPC(ctx)
	if err != nil {
		return err
	}
	subnets, err := o.provider.ListSubnets(ctx, vpc.ID)
	if err != nil {
		return err
	}
	// an application load balancer needs subnets in two availability zones
	if len(subnets) < 2 {
		return fmt.Errorf("%w: vpc %s has %d", provider.ErrNotEnoughSubnets, vpc.ID, len(subnets))
	}

	d.Network = types.Network{VPC: *vpc, Subnets: subnets[:2]}
	o.emit(StepNetwork, "", vpc.ID, "discovered", nil)
	return nil
}

func (o *Orchestrator) securityGroup(ctx context.Context, plan Plan, d *Deployment) error {
	res := o.provider.EnsureSecurityGroup(ctx, provider.SecurityGroupSpec{
		Name:         plan.SecurityGroup,
		Description:  "clusterbench access",
		VPCID:        d.Network.VPC.ID,
		IngressPorts: plan.IngressPorts,
		Tags:         plan.Tags(plan.SecurityGroup),
	})
	if err := res.AsError(); err != nil {
		return err
	}
	d.SecurityGroup = res.Handle
	o.emit(StepSecurityGroup, types.KindSecurityGroup, res.Handle.ID(), res.Outcome.String(), nil)
	return nil
}

func (o *Orchestrator) keyPair(ctx context.Context, plan Plan, d *Deployment) error {
	res := o.provider.EnsureKeyPair(ctx, provider.KeyPairSpec{
		Name:           plan.KeyName,
		PrivateKeyPath: plan.KeyFile,
		Tags:           plan.Tags(plan.KeyName),
	})
	if err := res.AsError(); err != nil {
		return err
	}
	d.KeyPair = res.Handle
	o.emit(StepKeyPair, types.KindKeyPair, res.Handle.ID(), res.Outcome.String(), nil)
	return nil
}

// instances launches every cluster concurrently and waits for running state and public addresses
func (o *Orchestrator) instances(ctx context.Context, plan Plan, d *Deployment) error {
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range d.Clusters {
		subnet := d.Network.Subnets[i%len(d.Network.Subnets)]
		g.Go(func() error {
			launched, err := o.provider.RunInstances(gctx, provider.InstanceSpec{
				Name:            c.Cluster.Name,
				InstanceType:    c.Cluster.InstanceType,
				AMI:             plan.AMI,
				Count:           c.Cluster.Count,
				KeyName:         plan.KeyName,
				SecurityGroupID: d.SecurityGroup.ID(),
				SubnetID:        subnet.ID,
				Monitoring:      plan.Monitoring,
				Tags:            plan.Tags(c.Cluster.Name),
			})
			if err != nil {
				return fmt.Errorf("cluster %s: %w", c.Cluster.Name, err)
			}

			handles := types.InstanceHandles(launched)
			if err := o.provider.WaitInstancesRunning(gctx, handles, plan.InstanceWait); err != nil {
				return fmt.Errorf("cluster %s: %w", c.Cluster.Name, err)
			}

			running, err := o.awaitPublicIPs(gctx, plan, handles)
			if err != nil {
				return fmt.Errorf("cluster %s: %w", c.Cluster.Name, err)
			}
			c.Instances = running

			for _, inst := range running {
				o.emit(StepInstances, types.KindInstance, inst.ID, "running", nil)
			}
			return nil
		})
	}
	return g.Wait()
}

func (o *Orchestrator) awaitPublicIPs(ctx context.Context, plan Plan, handles []types.ResourceHandle) ([]types.Instance, error) {
	var instances []types.Instance
	_, err := o.retrier.Do(ctx, plan.PublicIP, func(ctx context.Context, attempt int) error {
		described, err := o.provider.DescribeInstances(ctx, handles)
		if err != nil {
			return err
		}
		for _, inst := range described {
			if inst.PublicIP == "" {
				return errNoPublicIP
			}
		}
		instances = described
		return nil
	})
	return instances, err
}

func (o *Orchestrator) volumes(ctx context.Context, plan Plan, d *Deployment) error {
	vp := plan.Volume
	for _, inst := range d.Instances() {
		vol, err := o.provider.CreateVolume(ctx, provider.VolumeSpec{
			AZ:      inst.AZ,
			SizeGiB: vp.SizeGiB,
			Type:    vp.Type,
			Tags:    plan.Tags(inst.Name + "-data"),
		})
		if err != nil {
			return err
		}
		volHandle := types.NewHandle(types.KindVolume, vol.ID)

		if err := o.provider.AttachVolume(ctx, volHandle, inst.Handle(), vp.Device); err != nil {
			return err
		}

		_, err = o.retrier.Do(ctx, vp.Attach, func(ctx context.Context, attempt int) error {
			current, err := o.provider.DescribeVolume(ctx, volHandle)
			if err != nil {
				return err
			}
			if !current.Attached {
				return errNotAttached
			}
			vol = current
			return nil
		})
		if err != nil {
			return fmt.Errorf("volume %s on %s: %w", vol.ID, inst.ID, err)
		}

		if err := o.provider.SetDeleteOnTermination(ctx, inst.Handle(), vp.Device); err != nil {
			return err
		}

		d.Volumes = append(d.Volumes, *vol)
		o.emit(StepVolumes, types.KindVolume, vol.ID, "attached", nil)
	}
	return nil
}

// payload installs and starts the service on every instance, a bounded number at a time
func (o *Orchestrator) payload(ctx context.Context, plan Plan, d *Deployment) error {
	g, gctx := errgroup.WithContext(ctx)
	if plan.Parallelism > 0 {
		g.SetLimit(plan.Parallelism)
	}

	for _, c := range d.Clusters {
		for _, inst := range c.Instances {
			g.Go(func() error {
				return o.deployApp(gctx, plan, c.Cluster, inst)
			})
		}
	}
	return g.Wait()
}

func (o *Orchestrator) deployApp(ctx context.Context, plan Plan, c Cluster, inst types.Instance) error {
	host := provider.Host{InstanceID: inst.ID, Address: inst.PublicIP}

	if err := o.exec.WaitReachable(ctx, host); err != nil {
		return err
	}

	app, err := payload.RenderApp(payload.App{
		InstanceID: inst.ID,
		Cluster:    c.Name,
		Path:       c.Path,
		Port:       plan.AppPort,
	})
	if err != nil {
		return err
	}

	if _, err := o.exec.Run(ctx, host, payload.SetupCommands()); err != nil {
		return err
	}
	if err := o.exec.Upload(ctx, host, app, plan.AppPath, nil); err != nil {
		return err
	}
	if _, err := o.exec.Run(ctx, host, payload.StartCommands(plan.AppPath, plan.AppPort)); err != nil {
		return err
	}

	o.emit(StepPayload, types.KindInstance, inst.ID, "started", nil)
	return nil
}

// targetGroups reuses a group whose VPC, port and health check match, and recreates one that differs.
// A reused group keeps the run tag it was created with.
func (o *Orchestrator) targetGroups(ctx context.Context, plan Plan, d *Deployment) error {
	for _, c := range d.Clusters {
		spec := provider.TargetGroupSpec{
			Name:            c.Cluster.Name,
			Protocol:        "HTTP",
			Port:            plan.AppPort,
			VPCID:           d.Network.VPC.ID,
			HealthCheckPath: c.Cluster.Path,
			Tags:            plan.Tags(c.Cluster.Name),
		}

		existing, err := o.provider.FindTargetGroup(ctx, spec.Name)
		if err != nil {
			return err
		}

		var res provider.Result
		switch {
		case existing == nil:
			res = o.provider.CreateTargetGroup(ctx, spec)
		case existing.Port == spec.Port && existing.HealthCheckPath == spec.HealthCheckPath && existing.VPCID == spec.VPCID:
			res = provider.Result{Outcome: provider.OutcomeAlreadyExists, Handle: existing.Handle()}
		default:
			del := o.provider.DeleteTargetGroup(ctx, existing.Handle())
			if del.Outcome != provider.OutcomeNotFound {
				if err := del.AsError(); err != nil {
					return err
				}
			}
			o.emit(StepTargetGroups, types.KindTargetGroup, existing.Name, "replaced", nil)
			res = o.provider.CreateTargetGroup(ctx, spec)
		}
		if err := res.AsError(); err != nil {
			return err
		}

		c.TargetGroup = res.Handle
		c.TGOutcome = res.Outcome
		o.emit(StepTargetGroups, types.KindTargetGroup, spec.Name, res.Outcome.String(), nil)
	}
	return nil
}

func (o *Orchestrator) loadBalancer(ctx context.Context, plan Plan, d *Deployment) error {
	lb, err := o.provider.CreateLoadBalancer(ctx, provider.LoadBalancerSpec{
		Name:           plan.LoadBalancerName,
		SubnetIDs:      d.Network.SubnetIDs(),
		SecurityGroups: []string{d.SecurityGroup.ID()},
		Tags:           plan.Tags(plan.LoadBalancerName),
	})
	if err != nil {
		return err
	}
	if err := o.provider.WaitLoadBalancerAvailable(ctx, lb.Handle(), plan.LoadBalancerWait); err != nil {
		return err
	}

	d.LoadBalancer = lb
	o.emit(StepLoadBalancer, types.KindLoadBalancer, lb.Name, "available", nil)
	return nil
}

func (o *Orchestrator) listener(ctx context.Context, plan Plan, d *Deployment) error {
	res := o.provider.CreateListener(ctx, provider.ListenerSpec{
		LoadBalancer:       d.LoadBalancer.Handle(),
		Protocol:           "HTTP",
		Port:               plan.ListenerPort,
		DefaultTargetGroup: d.Clusters[0].TargetGroup,
	})
	if err := res.AsError(); err != nil {
		return err
	}
	d.Listener = res.Handle
	o.emit(StepListener, types.KindListener, strconv.Itoa(plan.ListenerPort), res.Outcome.String(), nil)
	return nil
}

// rules routes each additional cluster by path; the first cluster is the listener default
func (o *Orchestrator) rules(ctx context.Context, _ Plan, d *Deployment) error {
	for i, c := range d.Clusters[1:] {
		res := o.provider.CreateRule(ctx, provider.RuleSpec{
			Listener:    d.Listener,
			PathPattern: c.Cluster.Path + "*",
			Priority:    i + 1,
			TargetGroup: c.TargetGroup,
		})
		if err := res.AsError(); err != nil {
			return err
		}
		d.Rules = append(d.Rules, res.Handle)
		o.emit(StepRules, types.KindRule, c.Cluster.Path, res.Outcome.String(), nil)
	}
	return nil
}

func (o *Orchestrator) startInstances(ctx context.Context, plan Plan, d *Deployment) error {
	handles := types.InstanceHandles(d.Instances())
	if err := o.provider.StartInstances(ctx, handles); err != nil {
		return err
	}
	if err := o.provider.WaitInstancesRunning(ctx, handles, plan.InstanceWait); err != nil {
		return err
	}
	o.emit(StepStart, types.KindInstance, fmt.Sprintf("%d instances", len(handles)), "running", nil)
	return nil
}

func (o *Orchestrator) register(ctx context.Context, plan Plan, d *Deployment) error {
	for _, c := range d.Clusters {
		if err := o.provider.RegisterTargets(ctx, c.TargetGroup, types.InstanceHandles(c.Instances), plan.AppPort); err != nil {
			return err
		}
		o.emit(StepRegister, types.KindTargetGroup, c.Cluster.Name, fmt.Sprintf("%d targets", len(c.Instances)), nil)
	}
	return nil
}

// health awaits every target group in turn. A timed-out gate is recorded, not returned.
func (o *Orchestrator) health(ctx context.Context, plan Plan, d *Deployment) error {
	for _, c := range d.Clusters {
		res, err := o.gate.AwaitHealthy(ctx, c.TargetGroup, plan.HealthAttempts, plan.HealthInterval)
		c.Health = res
		if err != nil {
			return fmt.Errorf("target group %s: %w", c.Cluster.Name, err)
		}
		o.emit(StepHealth, types.KindTargetGroup, c.Cluster.Name, string(res.Status), nil)
	}
	return nil
}

// benchmark runs from the first instance of the last cluster
func (o *Orchestrator) benchmark(ctx context.Context, plan Plan, d *Deployment) error {
	last := d.Clusters[len(d.Clusters)-1]
	if len(last.Instances) == 0 {
		return fmt.Errorf("cluster %s has no instances to run the benchmark from", last.Cluster.Name)
	}
	inst := last.Instances[0]

	res, err := o.bench.Run(ctx, provider.Host{InstanceID: inst.ID, Address: inst.PublicIP}, bench.Options{
		URL:        fmt.Sprintf("http://%s:%d", d.LoadBalancer.DNSName, plan.ListenerPort),
		Requests:   plan.Bench.Requests,
		ScriptPath: plan.Bench.ScriptPath,
	})
	if err != nil {
		return err
	}
	d.Benchmark = res
	o.emit(StepBenchmark, types.KindInstance, inst.ID, fmt.Sprintf("%d requests in %s", res.Requests, res.Total), nil)
	return nil
}
