package teardown

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/vietdv277/clusterbench/pkg/provider"
	"github.com/vietdv277/clusterbench/pkg/types"
)

// fakeCloud is an in-memory account that records every mutating call in order
type fakeCloud struct {
	lbs       []types.LoadBalancer
	listeners map[string][]types.Listener
	classic   []string
	tgs       []types.TargetGroup
	instances []types.Instance

	inUse        map[string]bool  // target group ARNs that refuse deletion
	failures     map[string]error // ids whose delete fails with an unclassified error
	listenerErrs map[string]error // load balancer ARNs whose listeners cannot be listed
	gone         map[string]bool  // instances that vanish after the first listing
	listCalls    int
	calls        []string
	terminate    [][]string
}

func (f *fakeCloud) ListLoadBalancers(ctx context.Context, filter *provider.TagFilter) ([]types.LoadBalancer, error) {
	return f.lbs, nil
}

func (f *fakeCloud) ListListeners(ctx context.Context, lb types.ResourceHandle) ([]types.Listener, error) {
	if err, ok := f.listenerErrs[lb.ID()]; ok {
		return nil, err
	}
	return f.listeners[lb.ID()], nil
}

func (f *fakeCloud) DeleteListener(ctx context.Context, h types.ResourceHandle) provider.Result {
	f.calls = append(f.calls, "listener:"+h.ID())
	return f.result(h)
}

func (f *fakeCloud) DeleteLoadBalancer(ctx context.Context, h types.ResourceHandle) provider.Result {
	f.calls = append(f.calls, "lb:"+h.ID())
	return f.result(h)
}

func (f *fakeCloud) WaitLoadBalancersDeleted(ctx context.Context, lbs []types.ResourceHandle, maxWait time.Duration) error {
	f.calls = append(f.calls, fmt.Sprintf("wait:%d", len(lbs)))
	return nil
}

func (f *fakeCloud) ListClassicLoadBalancers(ctx context.Context) ([]string, error) {
	return f.classic, nil
}

func (f *fakeCloud) DeleteClassicLoadBalancer(ctx context.Context, name string) provider.Result {
	f.calls = append(f.calls, "classic:"+name)
	return f.result(types.NewHandle(types.KindClassicLoadBalancer, name))
}

func (f *fakeCloud) ListTargetGroups(ctx context.Context, filter *provider.TagFilter) ([]types.TargetGroup, error) {
	return f.tgs, nil
}

func (f *fakeCloud) DeleteTargetGroup(ctx context.Context, h types.ResourceHandle) provider.Result {
	f.calls = append(f.calls, "tg:"+h.ID())
	if f.inUse[h.ID()] {
		return provider.Failed(provider.OutcomeInUse, h, errors.New("ResourceInUse"))
	}
	return f.result(h)
}

func (f *fakeCloud) ListInstances(ctx context.Context, filter *provider.InstanceFilter) ([]types.Instance, error) {
	f.listCalls++
	if f.listCalls == 1 {
		return f.instances, nil
	}
	var live []types.Instance
	for _, inst := range f.instances {
		if !f.gone[inst.ID] {
			live = append(live, inst)
		}
	}
	return live, nil
}

func (f *fakeCloud) TerminateInstances(ctx context.Context, ids []types.ResourceHandle) provider.Result {
	f.calls = append(f.calls, "terminate")
	f.terminate = append(f.terminate, types.HandleIDs(ids))
	h := types.NewHandle(types.KindInstance, "batch")
	for _, id := range ids {
		if f.gone[id.ID()] {
			return provider.Failed(provider.OutcomeNotFound, h, errors.New("InvalidInstanceID.NotFound"))
		}
	}
	return provider.Deleted(h)
}

func (f *fakeCloud) result(h types.ResourceHandle) provider.Result {
	if err, ok := f.failures[h.ID()]; ok {
		return provider.Failed(provider.OutcomeOtherError, h, err)
	}
	return provider.Deleted(h)
}

func scenario() *fakeCloud {
	return &fakeCloud{
		lbs: []types.LoadBalancer{
			{Name: "lb-a", ARN: "lb-a"},
			{Name: "lb-b", ARN: "lb-b"},
		},
		listeners: map[string][]types.Listener{
			"lb-a": {{ARN: "l-a", LBARN: "lb-a", Port: 8000, Protocol: "HTTP"}},
			"lb-b": {{ARN: "l-b", LBARN: "lb-b", Port: 8000, Protocol: "HTTP"}},
		},
		tgs: []types.TargetGroup{
			{Name: "cluster1", ARN: "tg-1"},
			{Name: "cluster2", ARN: "tg-2"},
		},
		instances: []types.Instance{
			{ID: "i-1", State: "running"},
			{ID: "i-2", State: "running"},
			{ID: "i-3", State: "stopped"},
		},
		inUse: map[string]bool{"tg-2": true},
	}
}

func TestTeardownAllScenario(t *testing.T) {
	cloud := scenario()
	c := New(cloud, Options{}, nil)

	report, err := c.TeardownAll(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if got := report.Tally(types.KindLoadBalancer); got.Deleted != 2 {
		t.Fatalf("expected 2 load balancers deleted, got %+v", got)
	}
	if got := report.Tally(types.KindListener); got.Deleted != 2 {
		t.Fatalf("expected 2 listeners deleted, got %+v", got)
	}
	if got := report.Tally(types.KindTargetGroup); got.Deleted != 1 || got.Skipped != 1 {
		t.Fatalf("expected 1 target group deleted and 1 skipped, got %+v", got)
	}
	if got := report.Tally(types.KindInstance); got.Deleted != 3 {
		t.Fatalf("expected 3 instances deleted, got %+v", got)
	}

	if len(cloud.terminate) != 1 || len(cloud.terminate[0]) != 3 {
		t.Fatalf("expected one terminate call with 3 instances, got %v", cloud.terminate)
	}

	want := []string{"listener:l-a", "lb:lb-a", "listener:l-b", "lb:lb-b", "tg:tg-1", "tg:tg-2", "terminate"}
	if strings.Join(cloud.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("expected call order %v, got %v", want, cloud.calls)
	}
}

func TestNoTargetGroupDeleteBeforeListenerDelete(t *testing.T) {
	cloud := scenario()
	cloud.failures = map[string]error{"lb-a": errors.New("throttled")}
	c := New(cloud, Options{WaitForLoadBalancers: true}, nil)

	_, _ = c.TeardownAll(context.Background())

	lastListener, firstTG := -1, len(cloud.calls)
	for i, call := range cloud.calls {
		if strings.HasPrefix(call, "listener:") {
			lastListener = i
		}
		if strings.HasPrefix(call, "tg:") && i < firstTG {
			firstTG = i
		}
	}
	if lastListener < 0 || firstTG <= lastListener {
		t.Fatalf("expected every listener delete before any target group delete, got %v", cloud.calls)
	}
}

func TestTeardownEmptyAccountIsIdempotent(t *testing.T) {
	cloud := &fakeCloud{}
	c := New(cloud, Options{IncludeClassic: true}, nil)

	for i := 0; i < 2; i++ {
		report, err := c.TeardownAll(context.Background())
		if err != nil {
			t.Fatalf("run %d: expected no error, got %v", i, err)
		}
		if !report.IsZero() {
			t.Fatalf("run %d: expected zero report, got %+v", i, report.Tallies)
		}
	}
	if len(cloud.calls) != 0 {
		t.Fatalf("expected no delete calls, got %v", cloud.calls)
	}
}

func TestFailuresAreIsolatedAndJoined(t *testing.T) {
	cloud := scenario()
	cloud.failures = map[string]error{
		"l-a":  errors.New("listener boom"),
		"tg-1": errors.New("tg boom"),
	}
	c := New(cloud, Options{}, nil)

	report, err := c.TeardownAll(context.Background())
	if err == nil {
		t.Fatalf("expected joined error")
	}
	if !strings.Contains(err.Error(), "listener boom") || !strings.Contains(err.Error(), "tg boom") {
		t.Fatalf("expected both failures in %q", err)
	}
	if got := report.Tally(types.KindListener); got.Failed != 1 || got.Deleted != 1 {
		t.Fatalf("expected 1 failed and 1 deleted listener, got %+v", got)
	}
	if got := report.Tally(types.KindInstance); got.Deleted != 3 {
		t.Fatalf("expected instances to be terminated despite failures, got %+v", got)
	}
}

func TestPlanSkipsTerminatedAndScopesClassic(t *testing.T) {
	cloud := scenario()
	cloud.classic = []string{"legacy"}
	cloud.instances = append(cloud.instances, types.Instance{ID: "i-4", State: "shutting-down"})

	plan, err := New(cloud, Options{IncludeClassic: true}, nil).Plan(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(plan.Instances) != 3 {
		t.Fatalf("expected 3 live instances, got %d", len(plan.Instances))
	}
	if len(plan.ClassicLoadBalancers) != 1 {
		t.Fatalf("expected classic load balancer in unscoped plan")
	}

	scoped, err := New(cloud, Options{IncludeClassic: true, Filter: &provider.TagFilter{Key: "k", Value: "v"}}, nil).Plan(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(scoped.ClassicLoadBalancers) != 0 {
		t.Fatalf("expected classic load balancers to be skipped in a scoped plan")
	}
}

func TestExecuteWaitsForLoadBalancers(t *testing.T) {
	cloud := scenario()
	c := New(cloud, Options{WaitForLoadBalancers: true}, nil)

	if _, err := c.TeardownAll(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	waitAt, firstTG := -1, -1
	for i, call := range cloud.calls {
		if call == "wait:2" {
			waitAt = i
		}
		if strings.HasPrefix(call, "tg:") && firstTG < 0 {
			firstTG = i
		}
	}
	if waitAt < 0 || waitAt > firstTG {
		t.Fatalf("expected wait before target group deletes, got %v", cloud.calls)
	}
}

func TestListenerDiscoveryFailureStaysWithItsLoadBalancer(t *testing.T) {
	cloud := scenario()
	cloud.listenerErrs = map[string]error{"lb-b": errors.New("throttled")}
	c := New(cloud, Options{}, nil)

	report, err := c.TeardownAll(context.Background())
	if err == nil || !strings.Contains(err.Error(), "failed to list listeners of lb-b") {
		t.Fatalf("expected listener discovery error in result, got %v", err)
	}

	want := []string{"listener:l-a", "lb:lb-a", "lb:lb-b", "tg:tg-1", "tg:tg-2", "terminate"}
	if strings.Join(cloud.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("expected call order %v, got %v", want, cloud.calls)
	}
	if got := report.Tally(types.KindLoadBalancer); got.Deleted != 2 {
		t.Fatalf("expected both load balancers deleted, got %+v", got)
	}
	if got := report.Tally(types.KindInstance); got.Deleted != 3 {
		t.Fatalf("expected 3 instances deleted, got %+v", got)
	}
}

func TestVanishedLoadBalancerIsNotAnError(t *testing.T) {
	cloud := scenario()
	cloud.listenerErrs = map[string]error{"lb-b": fmt.Errorf("%w: LoadBalancerNotFound", provider.ErrNotFound)}
	c := New(cloud, Options{}, nil)

	plan, err := c.Plan(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(plan.Errors) != 0 {
		t.Fatalf("expected no discovery errors, got %v", plan.Errors)
	}
	if len(plan.LoadBalancers) != 2 || len(plan.Listeners[types.NewHandle(types.KindLoadBalancer, "lb-b")]) != 0 {
		t.Fatalf("expected lb-b planned without listeners, got %+v", plan)
	}
}

func TestPartialTerminateRetriesLiveInstances(t *testing.T) {
	cloud := scenario()
	cloud.gone = map[string]bool{"i-2": true}
	c := New(cloud, Options{}, nil)

	report, err := c.TeardownAll(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(cloud.terminate) != 2 {
		t.Fatalf("expected a retry after the rejected batch, got %v", cloud.terminate)
	}
	if strings.Join(cloud.terminate[1], ",") != "i-1,i-3" {
		t.Fatalf("expected retry with live instances only, got %v", cloud.terminate[1])
	}
	if got := report.Tally(types.KindInstance); got.Deleted != 2 || got.NotFound != 1 {
		t.Fatalf("expected 2 deleted and 1 not found, got %+v", got)
	}
}
