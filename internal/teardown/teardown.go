// Package teardown deletes benchmark resources in dependency order: listeners, then their
// load balancers, then target groups, then instances. Resources are discovered at teardown
// time; failures on one resource never stop the rest of the pass.
package teardown

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vietdv277/clusterbench/internal/logging"
	"github.com/vietdv277/clusterbench/pkg/provider"
	"github.com/vietdv277/clusterbench/pkg/types"
)

// Provider is the subset of cloud operations teardown needs
type Provider interface {
	ListLoadBalancers(ctx context.Context, filter *provider.TagFilter) ([]types.LoadBalancer, error)
	ListListeners(ctx context.Context, lb types.ResourceHandle) ([]types.Listener, error)
	DeleteListener(ctx context.Context, listener types.ResourceHandle) provider.Result
	DeleteLoadBalancer(ctx context.Context, lb types.ResourceHandle) provider.Result
	WaitLoadBalancersDeleted(ctx context.Context, lbs []types.ResourceHandle, maxWait time.Duration) error
	ListClassicLoadBalancers(ctx context.Context) ([]string, error)
	DeleteClassicLoadBalancer(ctx context.Context, name string) provider.Result
	ListTargetGroups(ctx context.Context, filter *provider.TagFilter) ([]types.TargetGroup, error)
	DeleteTargetGroup(ctx context.Context, tg types.ResourceHandle) provider.Result
	ListInstances(ctx context.Context, filter *provider.InstanceFilter) ([]types.Instance, error)
	TerminateInstances(ctx context.Context, ids []types.ResourceHandle) provider.Result
}

// Options controls discovery scope and optional waits
type Options struct {
	// Filter scopes discovery to resources tagged with one run; nil means every resource in the region
	Filter *provider.TagFilter
	// IncludeClassic also deletes classic load balancers; ignored when Filter is set
	IncludeClassic bool
	// WaitForLoadBalancers blocks until deleted load balancers are gone before touching target groups
	WaitForLoadBalancers bool
	// DeleteWait bounds the load balancer deletion wait
	DeleteWait time.Duration
}

// Coordinator plans and executes teardown passes
type Coordinator struct {
	provider Provider
	opts     Options
	logger   *logging.Logger
	now      func() time.Time
}

// New creates a Coordinator
func New(p Provider, opts Options, logger *logging.Logger) *Coordinator {
	if logger == nil {
		logger = logging.Discard()
	}
	if opts.DeleteWait <= 0 {
		opts.DeleteWait = 5 * time.Minute
	}
	return &Coordinator{
		provider: p,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

// TeardownAll discovers and deletes every in-scope resource.
// Unclassified delete errors are returned joined after the whole pass.
func (c *Coordinator) TeardownAll(ctx context.Context) (types.TeardownReport, error) {
	plan, err := c.Plan(ctx)
	if err != nil {
		return types.TeardownReport{}, err
	}
	return c.Execute(ctx, plan)
}

// Plan discovers the resources to delete
func (c *Coordinator) Plan(ctx context.Context) (types.TeardownPlan, error) {
	plan := types.TeardownPlan{
		Listeners:    make(map[types.ResourceHandle][]types.TeardownStep),
		DiscoveredAt: c.now(),
	}

	lbs, err := c.provider.ListLoadBalancers(ctx, c.opts.Filter)
	if err != nil {
		return plan, fmt.Errorf("failed to list load balancers: %w", err)
	}
	for _, lb := range lbs {
		lbStep := types.TeardownStep{Handle: lb.Handle(), Name: lb.Name}
		plan.LoadBalancers = append(plan.LoadBalancers, lbStep)

		// a listener lookup failure stays with its load balancer, whose delete is still attempted
		listeners, err := c.provider.ListListeners(ctx, lb.Handle())
		if err != nil {
			if errors.Is(err, provider.ErrNotFound) {
				c.logger.Phase("teardown").WithField("load_balancer", lb.Name).Debug("load balancer vanished during discovery")
			} else {
				plan.Errors = append(plan.Errors, fmt.Errorf("failed to list listeners of %s: %w", lb.Name, err))
			}
			continue
		}
		for _, l := range listeners {
			plan.Listeners[lb.Handle()] = append(plan.Listeners[lb.Handle()], types.TeardownStep{
				Handle: l.Handle(),
				Name:   fmt.Sprintf("%s:%d", l.Protocol, l.Port),
				Parent: lb.Handle(),
			})
		}
	}

	if c.opts.IncludeClassic && c.opts.Filter == nil {
		names, err := c.provider.ListClassicLoadBalancers(ctx)
		if err != nil {
			return plan, fmt.Errorf("failed to list classic load balancers: %w", err)
		}
		for _, name := range names {
			plan.ClassicLoadBalancers = append(plan.ClassicLoadBalancers, types.TeardownStep{
				Handle: types.NewHandle(types.KindClassicLoadBalancer, name),
				Name:   name,
			})
		}
	}

	tgs, err := c.provider.ListTargetGroups(ctx, c.opts.Filter)
	if err != nil {
		return plan, fmt.Errorf("failed to list target groups: %w", err)
	}
	for _, tg := range tgs {
		plan.TargetGroups = append(plan.TargetGroups, types.TeardownStep{Handle: tg.Handle(), Name: tg.Name})
	}

	instances, err := c.provider.ListInstances(ctx, &provider.InstanceFilter{Tag: c.opts.Filter})
	if err != nil {
		return plan, fmt.Errorf("failed to list instances: %w", err)
	}
	for _, inst := range instances {
		if inst.Terminated() {
			continue
		}
		plan.Instances = append(plan.Instances, types.TeardownStep{Handle: inst.Handle(), Name: inst.Name})
	}

	c.logger.WithFields(logrus.Fields{
		"phase":          "teardown",
		"load_balancers": len(plan.LoadBalancers),
		"classic":        len(plan.ClassicLoadBalancers),
		"target_groups":  len(plan.TargetGroups),
		"instances":      len(plan.Instances),
		"errors":         len(plan.Errors),
	}).Info("teardown plan discovered")

	return plan, nil
}

// Execute deletes the planned resources in order and reports per-kind outcomes
func (c *Coordinator) Execute(ctx context.Context, plan types.TeardownPlan) (types.TeardownReport, error) {
	pass := &pass{
		logger: c.logger,
		report: types.TeardownReport{Started: c.now()},
		errs:   append([]error(nil), plan.Errors...),
	}

	var deletedLBs []types.ResourceHandle
	for _, lb := range plan.LoadBalancers {
		for _, l := range plan.Listeners[lb.Handle] {
			if pass.canceled(ctx) {
				return pass.finish(c.now())
			}
			pass.record(types.KindListener, 1, c.provider.DeleteListener(ctx, l.Handle))
		}
		if pass.canceled(ctx) {
			return pass.finish(c.now())
		}
		res := c.provider.DeleteLoadBalancer(ctx, lb.Handle)
		pass.record(types.KindLoadBalancer, 1, res)
		if res.Outcome == provider.OutcomeDeleted {
			deletedLBs = append(deletedLBs, lb.Handle)
		}
	}

	for _, clb := range plan.ClassicLoadBalancers {
		if pass.canceled(ctx) {
			return pass.finish(c.now())
		}
		pass.record(types.KindClassicLoadBalancer, 1, c.provider.DeleteClassicLoadBalancer(ctx, clb.Name))
	}

	if c.opts.WaitForLoadBalancers && len(deletedLBs) > 0 {
		if err := c.provider.WaitLoadBalancersDeleted(ctx, deletedLBs, c.opts.DeleteWait); err != nil {
			pass.errs = append(pass.errs, fmt.Errorf("failed waiting for load balancer deletion: %w", err))
		}
	}

	for _, tg := range plan.TargetGroups {
		if pass.canceled(ctx) {
			return pass.finish(c.now())
		}
		pass.record(types.KindTargetGroup, 1, c.provider.DeleteTargetGroup(ctx, tg.Handle))
	}

	if len(plan.Instances) > 0 && !pass.canceled(ctx) {
		ids := make([]types.ResourceHandle, 0, len(plan.Instances))
		for _, inst := range plan.Instances {
			ids = append(ids, inst.Handle)
		}
		c.terminate(ctx, pass, ids)
	}

	return pass.finish(c.now())
}

// terminate issues the batched terminate. EC2 rejects the whole batch when one id is gone,
// so a NotFound batch is retried once with the instances that still exist.
func (c *Coordinator) terminate(ctx context.Context, pass *pass, ids []types.ResourceHandle) {
	res := c.provider.TerminateInstances(ctx, ids)
	if res.Outcome != provider.OutcomeNotFound || len(ids) == 1 {
		pass.record(types.KindInstance, len(ids), res)
		return
	}

	live, err := c.provider.ListInstances(ctx, &provider.InstanceFilter{Tag: c.opts.Filter})
	if err != nil {
		pass.errs = append(pass.errs, fmt.Errorf("failed to list instances after partial terminate: %w", err))
		pass.record(types.KindInstance, len(ids), res)
		return
	}
	alive := make(map[types.ResourceHandle]bool, len(live))
	for _, inst := range live {
		if !inst.Terminated() {
			alive[inst.Handle()] = true
		}
	}

	var remaining []types.ResourceHandle
	for _, id := range ids {
		if alive[id] {
			remaining = append(remaining, id)
		}
	}

	if gone := len(ids) - len(remaining); gone > 0 {
		pass.record(types.KindInstance, gone, res)
	}
	if len(remaining) > 0 {
		pass.record(types.KindInstance, len(remaining), c.provider.TerminateInstances(ctx, remaining))
	}
}

// pass accumulates the outcome of one Execute call
type pass struct {
	logger *logging.Logger
	report types.TeardownReport
	errs   []error
}

// record counts n resources of kind under res.Outcome
func (p *pass) record(kind types.ResourceKind, n int, res provider.Result) {
	var delta types.TeardownTally
	switch res.Outcome {
	case provider.OutcomeDeleted:
		delta.Deleted = n
	case provider.OutcomeInUse:
		delta.Skipped = n
	case provider.OutcomeNotFound:
		delta.NotFound = n
	default:
		delta.Failed = n
		p.errs = append(p.errs, res.AsError())
	}
	p.report.Add(kind, delta)

	ev := types.Event{
		Phase:  "teardown",
		Kind:   kind,
		Target: res.Handle.ID(),
		Result: res.Outcome.String(),
	}
	if delta.Failed > 0 {
		ev.Err = res.Err
	}
	p.logger.LogEvent(ev)
}

func (p *pass) canceled(ctx context.Context) bool {
	if err := ctx.Err(); err != nil {
		p.errs = append(p.errs, err)
		return true
	}
	return false
}

func (p *pass) finish(at time.Time) (types.TeardownReport, error) {
	p.report.Finished = at
	return p.report, errors.Join(p.errs...)
}
