package cmd

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietdv277/clusterbench/internal/config"
	"github.com/vietdv277/clusterbench/internal/deploy"
	"github.com/vietdv277/clusterbench/pkg/provider"
	"github.com/vietdv277/clusterbench/pkg/types"
)

type fakeLister struct {
	targets map[string][]types.Target
	err     error
}

func (f fakeLister) ListTargets(_ context.Context, tg types.ResourceHandle) ([]types.Target, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.targets[tg.ID()], nil
}

func TestRecordBindings(t *testing.T) {
	rec := &config.RunRecord{
		TargetGroups: map[string]string{"cluster2": "arn:tg/2", "cluster1": "arn:tg/1"},
	}
	lister := fakeLister{targets: map[string][]types.Target{
		"arn:tg/1": {{ID: "i-1", Port: 8000}, {ID: "i-2", Port: 8000}},
		"arn:tg/2": {{ID: "i-3", Port: 8000}},
	}}

	bindings, err := recordBindings(context.Background(), lister, rec)
	if err != nil {
		t.Fatalf("recordBindings() error = %v", err)
	}
	if len(bindings) != 2 {
		t.Fatalf("expected 2 bindings, got %d", len(bindings))
	}
	if bindings[0].Cluster != "cluster1" || bindings[1].Cluster != "cluster2" {
		t.Fatalf("expected bindings sorted by cluster, got %s, %s", bindings[0].Cluster, bindings[1].Cluster)
	}
	if len(bindings[0].Instances) != 2 || bindings[0].Port != 8000 {
		t.Fatalf("unexpected binding %+v", bindings[0])
	}
	if bindings[1].Instances[0] != types.NewHandle(types.KindInstance, "i-3") {
		t.Fatalf("unexpected instance handle %s", bindings[1].Instances[0])
	}
}

func TestRecordBindingsError(t *testing.T) {
	rec := &config.RunRecord{TargetGroups: map[string]string{"cluster1": "arn:tg/1"}}
	boom := errors.New("throttled")

	if _, err := recordBindings(context.Background(), fakeLister{err: boom}, rec); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped provider error, got %v", err)
	}
}

func TestRunRecord(t *testing.T) {
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	d := &deploy.Deployment{
		RunID:        "run-1",
		LoadBalancer: &types.LoadBalancer{Name: "my-load-balancer", DNSName: "lb.example.com"},
		Started:      started,
		Clusters: []*deploy.ClusterDeployment{
			{
				Cluster:     deploy.Cluster{Name: "cluster1"},
				Instances:   []types.Instance{{ID: "i-1"}, {ID: "i-2"}},
				TargetGroup: types.NewHandle(types.KindTargetGroup, "arn:tg/1"),
			},
			{
				// aborted before target groups
				Cluster:   deploy.Cluster{Name: "cluster2"},
				Instances: []types.Instance{{ID: "i-3"}},
			},
		},
	}
	cfg := &config.Config{
		AWS: config.AWSConfig{Profile: "bench"},
		Run: config.RunConfig{TagKey: "cbench:run"},
	}

	rec := runRecord(cfg, "us-east-1", d)

	if rec.RunID != "run-1" || rec.TagKey != "cbench:run" || rec.Region != "us-east-1" || rec.Profile != "bench" {
		t.Fatalf("unexpected record header %+v", rec)
	}
	if rec.LoadBalancer != "my-load-balancer" || rec.DNSName != "lb.example.com" {
		t.Fatalf("unexpected load balancer fields %+v", rec)
	}
	if len(rec.TargetGroups) != 1 || rec.TargetGroups["cluster1"] != "arn:tg/1" {
		t.Fatalf("unexpected target groups %v", rec.TargetGroups)
	}
	if len(rec.Instances) != 3 {
		t.Fatalf("expected 3 instances, got %v", rec.Instances)
	}
	if !rec.CreatedAt.Equal(started) {
		t.Fatalf("expected created at %s, got %s", started, rec.CreatedAt)
	}
}

func TestConfirmQuestion(t *testing.T) {
	if got := confirmQuestion(nil); got != "Delete ALL load balancers, target groups and instances in the region?" {
		t.Errorf("unscoped question = %q", got)
	}
	if got := confirmQuestion(&provider.TagFilter{Key: "cbench:run", Value: "run-1"}); got != "Delete the resources of run run-1?" {
		t.Errorf("scoped question = %q", got)
	}
}
