package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbv2types "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
	"github.com/sirupsen/logrus"

	"github.com/vietdv277/clusterbench/pkg/provider"
	pkgtypes "github.com/vietdv277/clusterbench/pkg/types"
)

// describeTagsBatch is the largest ARN list DescribeTags accepts
const describeTagsBatch = 20

// ListLoadBalancers returns application and network load balancers matching the filter
func (c *Client) ListLoadBalancers(ctx context.Context, filter *provider.TagFilter) ([]pkgtypes.LoadBalancer, error) {
	var lbs []pkgtypes.LoadBalancer

	paginator := elbv2.NewDescribeLoadBalancersPaginator(c.ELBv2, &elbv2.DescribeLoadBalancersInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, lb := range page.LoadBalancers {
			lbs = append(lbs, toLoadBalancer(lb))
		}
	}

	if filter == nil || len(lbs) == 0 {
		return lbs, nil
	}

	arns := make([]string, 0, len(lbs))
	for _, lb := range lbs {
		arns = append(arns, lb.ARN)
	}
	tags, err := c.tagsFor(ctx, arns)
	if err != nil {
		return nil, err
	}

	var matched []pkgtypes.LoadBalancer
	for _, lb := range lbs {
		if filter.Matches(tags[lb.ARN]) {
			matched = append(matched, lb)
		}
	}
	return matched, nil
}

// GetLoadBalancerByName returns a load balancer by name, or nil when it does not exist
func (c *Client) GetLoadBalancerByName(ctx context.Context, name string) (*pkgtypes.LoadBalancer, error) {
	output, err := c.ELBv2.DescribeLoadBalancers(ctx, &elbv2.DescribeLoadBalancersInput{
		Names: []string{name},
	})
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	if len(output.LoadBalancers) == 0 {
		return nil, nil
	}

	lb := toLoadBalancer(output.LoadBalancers[0])
	return &lb, nil
}

// CreateLoadBalancer creates an internet-facing IPv4 application load balancer
func (c *Client) CreateLoadBalancer(ctx context.Context, spec provider.LoadBalancerSpec) (*pkgtypes.LoadBalancer, error) {
	output, err := c.ELBv2.CreateLoadBalancer(ctx, &elbv2.CreateLoadBalancerInput{
		Name:           aws.String(spec.Name),
		Subnets:        spec.SubnetIDs,
		SecurityGroups: spec.SecurityGroups,
		Scheme:         elbv2types.LoadBalancerSchemeEnumInternetFacing,
		Type:           elbv2types.LoadBalancerTypeEnumApplication,
		IpAddressType:  elbv2types.IpAddressTypeIpv4,
		Tags:           elbv2Tags(spec.Tags),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create load balancer %s: %w", spec.Name, err)
	}
	if len(output.LoadBalancers) == 0 {
		return nil, fmt.Errorf("create load balancer %s returned no load balancer", spec.Name)
	}

	lb := toLoadBalancer(output.LoadBalancers[0])
	c.logger.WithFields(logrus.Fields{
		"name": lb.Name,
		"arn":  lb.ARN,
		"dns":  lb.DNSName,
	}).Info("load balancer created")
	return &lb, nil
}

// WaitLoadBalancerAvailable blocks until the load balancer is active
func (c *Client) WaitLoadBalancerAvailable(ctx context.Context, lb pkgtypes.ResourceHandle, maxWait time.Duration) error {
	waiter := elbv2.NewLoadBalancerAvailableWaiter(c.ELBv2)
	return waiter.Wait(ctx, &elbv2.DescribeLoadBalancersInput{
		LoadBalancerArns: []string{lb.ID()},
	}, maxWait)
}

// DeleteLoadBalancer deletes a load balancer
func (c *Client) DeleteLoadBalancer(ctx context.Context, lb pkgtypes.ResourceHandle) provider.Result {
	_, err := c.ELBv2.DeleteLoadBalancer(ctx, &elbv2.DeleteLoadBalancerInput{
		LoadBalancerArn: aws.String(lb.ID()),
	})
	return deleteResult(lb, err)
}

// WaitLoadBalancersDeleted blocks until none of the load balancers exist
func (c *Client) WaitLoadBalancersDeleted(ctx context.Context, lbs []pkgtypes.ResourceHandle, maxWait time.Duration) error {
	if len(lbs) == 0 {
		return nil
	}
	waiter := elbv2.NewLoadBalancersDeletedWaiter(c.ELBv2)
	return waiter.Wait(ctx, &elbv2.DescribeLoadBalancersInput{
		LoadBalancerArns: pkgtypes.HandleIDs(lbs),
	}, maxWait)
}

// ListListeners returns all listeners for a load balancer
func (c *Client) ListListeners(ctx context.Context, lb pkgtypes.ResourceHandle) ([]pkgtypes.Listener, error) {
	var listeners []pkgtypes.Listener

	input := &elbv2.DescribeListenersInput{
		LoadBalancerArn: aws.String(lb.ID()),
	}
	for {
		output, err := c.ELBv2.DescribeListeners(ctx, input)
		if err != nil {
			if IsNotFound(err) {
				return nil, fmt.Errorf("%w: %w", provider.ErrNotFound, err)
			}
			return nil, err
		}
		for _, l := range output.Listeners {
			listeners = append(listeners, toListener(l))
		}
		if output.NextMarker == nil {
			break
		}
		input.Marker = output.NextMarker
	}

	return listeners, nil
}

// CreateListener creates a listener whose default action forwards to spec.DefaultTargetGroup
func (c *Client) CreateListener(ctx context.Context, spec provider.ListenerSpec) provider.Result {
	protocol := spec.Protocol
	if protocol == "" {
		protocol = string(elbv2types.ProtocolEnumHttp)
	}

	output, err := c.ELBv2.CreateListener(ctx, &elbv2.CreateListenerInput{
		LoadBalancerArn: aws.String(spec.LoadBalancer.ID()),
		Protocol:        elbv2types.ProtocolEnum(protocol),
		Port:            aws.Int32(int32(spec.Port)),
		DefaultActions:  forwardTo(spec.DefaultTargetGroup),
	})
	if err != nil {
		return createResult(pkgtypes.NewHandle(pkgtypes.KindListener, spec.LoadBalancer.ID()), err)
	}

	arn := ""
	if len(output.Listeners) > 0 {
		arn = deref(output.Listeners[0].ListenerArn)
	}
	return provider.Created(pkgtypes.NewHandle(pkgtypes.KindListener, arn))
}

// DeleteListener deletes a listener
func (c *Client) DeleteListener(ctx context.Context, listener pkgtypes.ResourceHandle) provider.Result {
	_, err := c.ELBv2.DeleteListener(ctx, &elbv2.DeleteListenerInput{
		ListenerArn: aws.String(listener.ID()),
	})
	return deleteResult(listener, err)
}

// CreateRule creates a path-pattern rule forwarding to spec.TargetGroup
func (c *Client) CreateRule(ctx context.Context, spec provider.RuleSpec) provider.Result {
	output, err := c.ELBv2.CreateRule(ctx, &elbv2.CreateRuleInput{
		ListenerArn: aws.String(spec.Listener.ID()),
		Priority:    aws.Int32(int32(spec.Priority)),
		Conditions: []elbv2types.RuleCondition{
			{
				Field: aws.String("path-pattern"),
				PathPatternConfig: &elbv2types.PathPatternConditionConfig{
					Values: []string{spec.PathPattern},
				},
			},
		},
		Actions: forwardTo(spec.TargetGroup),
	})
	if err != nil {
		return createResult(pkgtypes.NewHandle(pkgtypes.KindRule, spec.PathPattern), err)
	}

	arn := ""
	if len(output.Rules) > 0 {
		arn = deref(output.Rules[0].RuleArn)
	}
	return provider.Created(pkgtypes.NewHandle(pkgtypes.KindRule, arn))
}

// FindTargetGroup returns the named target group, or nil when it does not exist
func (c *Client) FindTargetGroup(ctx context.Context, name string) (*pkgtypes.TargetGroup, error) {
	output, err := c.ELBv2.DescribeTargetGroups(ctx, &elbv2.DescribeTargetGroupsInput{
		Names: []string{name},
	})
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	if len(output.TargetGroups) == 0 {
		return nil, nil
	}

	tg := toTargetGroup(output.TargetGroups[0])
	return &tg, nil
}

// CreateTargetGroup creates an HTTP instance target group with the given health check path
func (c *Client) CreateTargetGroup(ctx context.Context, spec provider.TargetGroupSpec) provider.Result {
	protocol := spec.Protocol
	if protocol == "" {
		protocol = string(elbv2types.ProtocolEnumHttp)
	}

	output, err := c.ELBv2.CreateTargetGroup(ctx, &elbv2.CreateTargetGroupInput{
		Name:                aws.String(spec.Name),
		Protocol:            elbv2types.ProtocolEnum(protocol),
		Port:                aws.Int32(int32(spec.Port)),
		VpcId:               aws.String(spec.VPCID),
		TargetType:          elbv2types.TargetTypeEnumInstance,
		HealthCheckProtocol: elbv2types.ProtocolEnum(protocol),
		HealthCheckPath:     aws.String(spec.HealthCheckPath),
		Tags:                elbv2Tags(spec.Tags),
	})
	if err != nil {
		if IsAlreadyExists(err) {
			existing, lookupErr := c.FindTargetGroup(ctx, spec.Name)
			if lookupErr == nil && existing != nil {
				return provider.Result{Outcome: provider.OutcomeAlreadyExists, Handle: existing.Handle(), Err: err}
			}
		}
		return createResult(pkgtypes.NewHandle(pkgtypes.KindTargetGroup, spec.Name), err)
	}

	if len(output.TargetGroups) == 0 {
		return provider.Failed(provider.OutcomeOtherError, pkgtypes.NewHandle(pkgtypes.KindTargetGroup, spec.Name),
			fmt.Errorf("create target group %s returned no target group", spec.Name))
	}

	tg := toTargetGroup(output.TargetGroups[0])
	c.logger.WithField("name", tg.Name).WithField("path", spec.HealthCheckPath).Info("target group created")
	return provider.Created(tg.Handle())
}

// DeleteTargetGroup deletes a target group
func (c *Client) DeleteTargetGroup(ctx context.Context, tg pkgtypes.ResourceHandle) provider.Result {
	_, err := c.ELBv2.DeleteTargetGroup(ctx, &elbv2.DeleteTargetGroupInput{
		TargetGroupArn: aws.String(tg.ID()),
	})
	return deleteResult(tg, err)
}

// ListTargetGroups returns all target groups matching the filter
func (c *Client) ListTargetGroups(ctx context.Context, filter *provider.TagFilter) ([]pkgtypes.TargetGroup, error) {
	var tgs []pkgtypes.TargetGroup

	paginator := elbv2.NewDescribeTargetGroupsPaginator(c.ELBv2, &elbv2.DescribeTargetGroupsInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, tg := range page.TargetGroups {
			tgs = append(tgs, toTargetGroup(tg))
		}
	}

	if filter == nil || len(tgs) == 0 {
		return tgs, nil
	}

	arns := make([]string, 0, len(tgs))
	for _, tg := range tgs {
		arns = append(arns, tg.ARN)
	}
	tags, err := c.tagsFor(ctx, arns)
	if err != nil {
		return nil, err
	}

	var matched []pkgtypes.TargetGroup
	for _, tg := range tgs {
		if filter.Matches(tags[tg.ARN]) {
			matched = append(matched, tg)
		}
	}
	return matched, nil
}

// ListLoadBalancerTargetGroups returns the target groups a load balancer routes to
func (c *Client) ListLoadBalancerTargetGroups(ctx context.Context, lb pkgtypes.ResourceHandle) ([]pkgtypes.TargetGroup, error) {
	output, err := c.ELBv2.DescribeTargetGroups(ctx, &elbv2.DescribeTargetGroupsInput{
		LoadBalancerArn: aws.String(lb.ID()),
	})
	if err != nil {
		return nil, err
	}

	var tgs []pkgtypes.TargetGroup
	for _, tg := range output.TargetGroups {
		tgs = append(tgs, toTargetGroup(tg))
	}
	return tgs, nil
}

// RegisterTargets registers instances with a target group on port
func (c *Client) RegisterTargets(ctx context.Context, tg pkgtypes.ResourceHandle, instances []pkgtypes.ResourceHandle, port int) error {
	if len(instances) == 0 {
		return nil
	}

	targets := make([]elbv2types.TargetDescription, 0, len(instances))
	for _, inst := range instances {
		targets = append(targets, elbv2types.TargetDescription{
			Id:   aws.String(inst.ID()),
			Port: aws.Int32(int32(port)),
		})
	}

	_, err := c.ELBv2.RegisterTargets(ctx, &elbv2.RegisterTargetsInput{
		TargetGroupArn: aws.String(tg.ID()),
		Targets:        targets,
	})
	return err
}

// ListTargets returns all targets in a target group with their health status
func (c *Client) ListTargets(ctx context.Context, tg pkgtypes.ResourceHandle) ([]pkgtypes.Target, error) {
	output, err := c.ELBv2.DescribeTargetHealth(ctx, &elbv2.DescribeTargetHealthInput{
		TargetGroupArn: aws.String(tg.ID()),
	})
	if err != nil {
		return nil, err
	}

	var targets []pkgtypes.Target
	for _, thd := range output.TargetHealthDescriptions {
		targets = append(targets, toTarget(thd))
	}

	return targets, nil
}

// DescribeTargetHealth returns a fresh health snapshot of a target group
func (c *Client) DescribeTargetHealth(ctx context.Context, tg pkgtypes.ResourceHandle) (pkgtypes.HealthSnapshot, error) {
	targets, err := c.ListTargets(ctx, tg)
	if err != nil {
		return pkgtypes.HealthSnapshot{}, err
	}
	return snapshotOf(tg, targets, time.Now()), nil
}

// snapshotOf builds a snapshot from listed targets
func snapshotOf(tg pkgtypes.ResourceHandle, targets []pkgtypes.Target, at time.Time) pkgtypes.HealthSnapshot {
	snap := pkgtypes.HealthSnapshot{
		TargetGroup: tg,
		Targets:     make(map[pkgtypes.ResourceHandle]pkgtypes.HealthState, len(targets)),
		Reasons:     make(map[pkgtypes.ResourceHandle]string),
		TakenAt:     at,
	}
	for _, t := range targets {
		h := pkgtypes.NewHandle(pkgtypes.KindInstance, t.ID)
		snap.Targets[h] = pkgtypes.ParseHealthState(t.Health)
		if t.Reason != "" {
			snap.Reasons[h] = t.Reason
		}
	}
	return snap
}

// tagsFor returns the tags of each ELBv2 resource
func (c *Client) tagsFor(ctx context.Context, arns []string) (map[string]provider.Tags, error) {
	out := make(map[string]provider.Tags, len(arns))
	for start := 0; start < len(arns); start += describeTagsBatch {
		end := start + describeTagsBatch
		if end > len(arns) {
			end = len(arns)
		}
		output, err := c.ELBv2.DescribeTags(ctx, &elbv2.DescribeTagsInput{
			ResourceArns: arns[start:end],
		})
		if err != nil {
			return nil, fmt.Errorf("failed to describe tags: %w", err)
		}
		for _, td := range output.TagDescriptions {
			out[deref(td.ResourceArn)] = fromELBv2Tags(td.Tags)
		}
	}
	return out, nil
}

func forwardTo(tg pkgtypes.ResourceHandle) []elbv2types.Action {
	return []elbv2types.Action{
		{
			Type:           elbv2types.ActionTypeEnumForward,
			TargetGroupArn: aws.String(tg.ID()),
		},
	}
}

// toLoadBalancer converts an ELBv2 LoadBalancer to our LoadBalancer type
func toLoadBalancer(lb elbv2types.LoadBalancer) pkgtypes.LoadBalancer {
	result := pkgtypes.LoadBalancer{
		Name:    deref(lb.LoadBalancerName),
		ARN:     deref(lb.LoadBalancerArn),
		DNSName: deref(lb.DNSName),
		Type:    string(lb.Type),
		Scheme:  string(lb.Scheme),
		VPCID:   deref(lb.VpcId),
	}

	if lb.State != nil {
		result.State = string(lb.State.Code)
	}

	if lb.CreatedTime != nil {
		result.CreatedAt = *lb.CreatedTime
	}

	for _, az := range lb.AvailabilityZones {
		if az.ZoneName != nil {
			result.AZs = append(result.AZs, *az.ZoneName)
		}
	}

	return result
}

// toListener converts an ELBv2 Listener to our Listener type
func toListener(l elbv2types.Listener) pkgtypes.Listener {
	return pkgtypes.Listener{
		ARN:      deref(l.ListenerArn),
		LBARN:    deref(l.LoadBalancerArn),
		Port:     int(derefInt32(l.Port)),
		Protocol: string(l.Protocol),
	}
}

// toTargetGroup converts an ELBv2 TargetGroup to our TargetGroup type
func toTargetGroup(tg elbv2types.TargetGroup) pkgtypes.TargetGroup {
	return pkgtypes.TargetGroup{
		Name:            deref(tg.TargetGroupName),
		ARN:             deref(tg.TargetGroupArn),
		Protocol:        string(tg.Protocol),
		Port:            int(derefInt32(tg.Port)),
		VPCID:           deref(tg.VpcId),
		Type:            string(tg.TargetType),
		HealthCheckPath: deref(tg.HealthCheckPath),
		LBARNs:          tg.LoadBalancerArns,
	}
}

// toTarget converts an ELBv2 TargetHealthDescription to our Target type
func toTarget(thd elbv2types.TargetHealthDescription) pkgtypes.Target {
	target := pkgtypes.Target{}

	if thd.Target != nil {
		target.ID = deref(thd.Target.Id)
		target.Port = int(derefInt32(thd.Target.Port))
		target.AZ = deref(thd.Target.AvailabilityZone)
	}

	if thd.TargetHealth != nil {
		target.Health = string(thd.TargetHealth.State)
		target.Reason = string(thd.TargetHealth.Reason)
	}

	return target
}
