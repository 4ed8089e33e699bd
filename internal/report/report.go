// Package report collects CloudWatch metrics for a finished benchmark run.
package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vietdv277/clusterbench/internal/aws"
	"github.com/vietdv277/clusterbench/internal/logging"
	"github.com/vietdv277/clusterbench/pkg/provider"
	"github.com/vietdv277/clusterbench/pkg/types"
)

const (
	namespaceEC2 = "AWS/EC2"
	namespaceALB = "AWS/ApplicationELB"
)

// Options controls metric windows
type Options struct {
	Window          time.Duration // instance metrics look-back
	Period          time.Duration
	RequestWindow   time.Duration // load balancer request count look-back
	SettleDelay     time.Duration // wait before reading load balancer metrics
	InstanceMetrics []string
}

// ClusterMetrics holds per-cluster instance metrics averaged across the cluster's instances
type ClusterMetrics struct {
	Cluster     string         `yaml:"cluster"`
	TargetGroup string         `yaml:"target_group"`
	Instances   []string       `yaml:"instances"`
	Series      []types.Series `yaml:"series"`
}

// Report is the full metrics export of a run
type Report struct {
	GeneratedAt  time.Time               `yaml:"generated_at"`
	LoadBalancer string                  `yaml:"load_balancer"`
	Requests     types.Series            `yaml:"requests"`
	TargetGroups map[string]types.Series `yaml:"target_group_requests"`
	Clusters     []ClusterMetrics        `yaml:"clusters"`
}

// Reporter queries a MetricsProvider
type Reporter struct {
	source provider.MetricsProvider
	opts   Options
	logger *logging.Logger
	now    func() time.Time
	after  func(time.Duration) <-chan time.Time
}

// New creates a Reporter
func New(source provider.MetricsProvider, opts Options, logger *logging.Logger) *Reporter {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Reporter{
		source: source,
		opts:   opts,
		logger: logger,
		now:    time.Now,
		after:  time.After,
	}
}

// Collect reads instance metrics per cluster, then load balancer request counts after the settle delay
func (r *Reporter) Collect(ctx context.Context, lb *types.LoadBalancer, bindings []types.TargetGroupBinding) (*Report, error) {
	log := r.logger.Phase("metrics")
	end := r.now()

	rep := &Report{
		GeneratedAt:  end,
		TargetGroups: map[string]types.Series{},
	}

	for _, b := range bindings {
		cm, err := r.clusterMetrics(ctx, b, end)
		if err != nil {
			return nil, err
		}
		rep.Clusters = append(rep.Clusters, cm)
		log.WithField("cluster", b.Cluster).WithField("series", len(cm.Series)).Info("collected instance metrics")
	}

	if lb == nil {
		return rep, nil
	}
	rep.LoadBalancer = lb.Name

	if r.opts.SettleDelay > 0 {
		log.WithField("delay", r.opts.SettleDelay).Info("waiting for load balancer metrics to settle")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-r.after(r.opts.SettleDelay):
		}
		end = r.now()
	}

	lbDim := aws.LoadBalancerDimension(lb.ARN)
	requests, err := r.source.GetSeries(ctx, types.MetricQuery{
		Namespace:  namespaceALB,
		Metric:     "RequestCount",
		Statistic:  "Sum",
		Dimensions: map[string]string{"LoadBalancer": lbDim},
		Period:     r.opts.Period,
		Start:      end.Add(-r.opts.RequestWindow),
		End:        end,
	})
	if err != nil {
		return nil, err
	}
	rep.Requests = requests

	for _, b := range bindings {
		series, err := r.source.GetSeries(ctx, types.MetricQuery{
			Namespace: namespaceALB,
			Metric:    "RequestCount",
			Statistic: "Sum",
			Dimensions: map[string]string{
				"LoadBalancer": lbDim,
				"TargetGroup":  aws.TargetGroupDimension(b.TargetGroup.ID()),
			},
			Period: r.opts.Period,
			Start:  end.Add(-r.opts.RequestWindow),
			End:    end,
		})
		if err != nil {
			return nil, err
		}
		rep.TargetGroups[b.Cluster] = series
	}

	log.WithField("requests", Total(requests)).Info("collected load balancer metrics")
	return rep, nil
}

func (r *Reporter) clusterMetrics(ctx context.Context, b types.TargetGroupBinding, end time.Time) (ClusterMetrics, error) {
	cm := ClusterMetrics{
		Cluster:     b.Cluster,
		TargetGroup: b.TargetGroup.ID(),
		Instances:   types.HandleIDs(b.Instances),
	}

	for _, metric := range r.opts.InstanceMetrics {
		perInstance := make([]types.Series, 0, len(b.Instances))
		for _, inst := range b.Instances {
			s, err := r.source.GetSeries(ctx, types.MetricQuery{
				Namespace:  namespaceEC2,
				Metric:     metric,
				Statistic:  "Average",
				Dimensions: map[string]string{"InstanceId": inst.ID()},
				Period:     r.opts.Period,
				Start:      end.Add(-r.opts.Window),
				End:        end,
			})
			if err != nil {
				return cm, fmt.Errorf("failed to read %s for %s: %w", metric, inst.ID(), err)
			}
			perInstance = append(perInstance, s)
		}

		avg := Average(perInstance)
		avg.Label = fmt.Sprintf("%s %s", b.Cluster, metric)
		avg.Metric = metric
		avg.Statistic = "Average"
		cm.Series = append(cm.Series, avg)
	}
	return cm, nil
}

// Average merges series by timestamp, averaging the values present at each timestamp
func Average(series []types.Series) types.Series {
	type acc struct {
		sum  float64
		n    int
		unit string
	}
	byTime := map[time.Time]*acc{}
	for _, s := range series {
		for _, dp := range s.Datapoints {
			ts := dp.Timestamp.UTC()
			a, ok := byTime[ts]
			if !ok {
				a = &acc{unit: dp.Unit}
				byTime[ts] = a
			}
			a.sum += dp.Value
			a.n++
		}
	}

	var out types.Series
	for ts, a := range byTime {
		out.Datapoints = append(out.Datapoints, types.Datapoint{
			Timestamp: ts,
			Value:     a.sum / float64(a.n),
			Unit:      a.unit,
		})
	}
	sort.Slice(out.Datapoints, func(i, j int) bool {
		return out.Datapoints[i].Timestamp.Before(out.Datapoints[j].Timestamp)
	})
	return out
}

// Total sums a series' datapoint values
func Total(s types.Series) float64 {
	var total float64
	for _, dp := range s.Datapoints {
		total += dp.Value
	}
	return total
}

// WriteYAML exports the report to path
func WriteYAML(path string, rep *Report) error {
	data, err := yaml.Marshal(rep)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write metrics report: %w", err)
	}
	return nil
}
