package report

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vietdv277/clusterbench/pkg/types"
)

var t0 = time.Date(2024, 9, 20, 12, 0, 0, 0, time.UTC)

type fakeMetrics struct {
	data    map[string][]types.Datapoint // keyed by metric + first dimension value
	queries []types.MetricQuery
	err     error
}

func (f *fakeMetrics) GetSeries(_ context.Context, q types.MetricQuery) (types.Series, error) {
	f.queries = append(f.queries, q)
	if f.err != nil {
		return types.Series{}, f.err
	}
	key := q.Metric
	if id, ok := q.Dimensions["InstanceId"]; ok {
		key += "/" + id
	} else if tg, ok := q.Dimensions["TargetGroup"]; ok {
		key += "/" + tg
	}
	return types.Series{Metric: q.Metric, Statistic: q.Statistic, Datapoints: f.data[key]}, nil
}

func dp(offset time.Duration, v float64) types.Datapoint {
	return types.Datapoint{Timestamp: t0.Add(offset), Value: v, Unit: "Percent"}
}

func TestAverage(t *testing.T) {
	got := Average([]types.Series{
		{Datapoints: []types.Datapoint{dp(0, 10), dp(5*time.Minute, 20)}},
		{Datapoints: []types.Datapoint{dp(0, 30)}},
	})

	if len(got.Datapoints) != 2 {
		t.Fatalf("datapoints = %d, want 2", len(got.Datapoints))
	}
	if got.Datapoints[0].Value != 20 {
		t.Errorf("first = %v, want 20", got.Datapoints[0].Value)
	}
	if got.Datapoints[1].Value != 20 {
		t.Errorf("second = %v, want 20", got.Datapoints[1].Value)
	}
	if !got.Datapoints[0].Timestamp.Before(got.Datapoints[1].Timestamp) {
		t.Error("datapoints not sorted")
	}
}

func TestAverageEmpty(t *testing.T) {
	if got := Average(nil); len(got.Datapoints) != 0 {
		t.Errorf("Average(nil) = %v, want empty", got)
	}
}

func binding() types.TargetGroupBinding {
	return types.TargetGroupBinding{
		Cluster:     "cluster1",
		TargetGroup: types.NewHandle(types.KindTargetGroup, "arn:aws:elasticloadbalancing:us-east-1:123:targetgroup/cluster1/abc"),
		Instances: []types.ResourceHandle{
			types.NewHandle(types.KindInstance, "i-1"),
			types.NewHandle(types.KindInstance, "i-2"),
		},
	}
}

func TestCollect(t *testing.T) {
	src := &fakeMetrics{data: map[string][]types.Datapoint{
		"CPUUtilization/i-1":                    {dp(0, 40)},
		"CPUUtilization/i-2":                    {dp(0, 60)},
		"RequestCount":                          {dp(0, 600), dp(5*time.Minute, 400)},
		"RequestCount/targetgroup/cluster1/abc": {dp(0, 500)},
	}}

	r := New(src, Options{
		Window:          time.Hour,
		Period:          5 * time.Minute,
		RequestWindow:   24 * time.Hour,
		SettleDelay:     5 * time.Minute,
		InstanceMetrics: []string{"CPUUtilization"},
	}, nil)
	r.now = func() time.Time { return t0 }
	var waited time.Duration
	r.after = func(d time.Duration) <-chan time.Time {
		waited = d
		c := make(chan time.Time, 1)
		c <- t0
		return c
	}

	lb := &types.LoadBalancer{
		Name: "my-load-balancer",
		ARN:  "arn:aws:elasticloadbalancing:us-east-1:123:loadbalancer/app/my-load-balancer/50dc6c495c0c9188",
	}
	rep, err := r.Collect(context.Background(), lb, []types.TargetGroupBinding{binding()})
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	if waited != 5*time.Minute {
		t.Errorf("settle wait = %s, want 5m", waited)
	}
	if len(rep.Clusters) != 1 || len(rep.Clusters[0].Series) != 1 {
		t.Fatalf("clusters = %+v", rep.Clusters)
	}
	cpu := rep.Clusters[0].Series[0]
	if len(cpu.Datapoints) != 1 || cpu.Datapoints[0].Value != 50 {
		t.Errorf("cpu average = %+v, want one datapoint of 50", cpu.Datapoints)
	}
	if Total(rep.Requests) != 1000 {
		t.Errorf("requests = %v, want 1000", Total(rep.Requests))
	}
	if Total(rep.TargetGroups["cluster1"]) != 500 {
		t.Errorf("cluster1 requests = %v, want 500", Total(rep.TargetGroups["cluster1"]))
	}

	var lbQuery *types.MetricQuery
	for i := range src.queries {
		if src.queries[i].Metric == "RequestCount" && len(src.queries[i].Dimensions) == 1 {
			lbQuery = &src.queries[i]
		}
	}
	if lbQuery == nil {
		t.Fatal("no load balancer RequestCount query")
	}
	if lbQuery.Dimensions["LoadBalancer"] != "app/my-load-balancer/50dc6c495c0c9188" {
		t.Errorf("LoadBalancer dimension = %q", lbQuery.Dimensions["LoadBalancer"])
	}
	if lbQuery.Statistic != "Sum" || lbQuery.Start != t0.Add(-24*time.Hour) {
		t.Errorf("query = %+v", lbQuery)
	}
}

func TestCollectWithoutLoadBalancer(t *testing.T) {
	src := &fakeMetrics{}
	r := New(src, Options{Window: time.Hour, Period: 5 * time.Minute, InstanceMetrics: []string{"NetworkIn", "NetworkOut"}}, nil)

	rep, err := r.Collect(context.Background(), nil, []types.TargetGroupBinding{binding()})
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if rep.LoadBalancer != "" {
		t.Errorf("load balancer = %q, want empty", rep.LoadBalancer)
	}
	if len(src.queries) != 4 {
		t.Errorf("queries = %d, want 4", len(src.queries))
	}
}

func TestCollectError(t *testing.T) {
	src := &fakeMetrics{err: errors.New("throttled")}
	r := New(src, Options{Window: time.Hour, Period: 5 * time.Minute, InstanceMetrics: []string{"CPUUtilization"}}, nil)

	if _, err := r.Collect(context.Background(), nil, []types.TargetGroupBinding{binding()}); err == nil {
		t.Fatal("expected error")
	}
}

func TestCollectCanceledDuringSettle(t *testing.T) {
	r := New(&fakeMetrics{}, Options{SettleDelay: time.Hour}, nil)
	r.after = func(time.Duration) <-chan time.Time { return nil }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Collect(ctx, &types.LoadBalancer{Name: "lb"}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestWriteYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "metrics.yaml")
	rep := &Report{
		GeneratedAt:  t0,
		LoadBalancer: "my-load-balancer",
		Requests:     types.Series{Metric: "RequestCount", Datapoints: []types.Datapoint{dp(0, 3)}},
	}
	if err := WriteYAML(path, rep); err != nil {
		t.Fatalf("WriteYAML() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "load_balancer: my-load-balancer") {
		t.Errorf("unexpected yaml:\n%s", data)
	}
}
