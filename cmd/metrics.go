package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"github.com/vietdv277/clusterbench/internal/config"
	"github.com/vietdv277/clusterbench/internal/report"
	"github.com/vietdv277/clusterbench/internal/ui"
	"github.com/vietdv277/clusterbench/pkg/types"
)

var (
	metricsOutput string
	metricsSettle bool
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Report CloudWatch metrics for the last run",
	Long: `Collect per-cluster instance metrics and load balancer request counts for the
last recorded run, and print them as a table.

Examples:
  cbench metrics                       # Metrics for the last run
  cbench metrics -o report.yaml        # Also write the report as YAML
  cbench metrics --settle              # Wait metrics.settle_delay before reading request counts`,
	RunE: runMetrics,
}

func init() {
	rootCmd.AddCommand(metricsCmd)

	metricsCmd.Flags().StringVarP(&metricsOutput, "output", "o", "", "write the report as YAML to this path")
	metricsCmd.Flags().BoolVar(&metricsSettle, "settle", false, "wait for load balancer metrics to settle before reading them")
}

func runMetrics(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	rec, err := config.LoadRunRecord(config.GetRunRecordPath())
	if err != nil {
		return err
	}
	if rec == nil {
		return errors.New("no recorded run found, deploy first")
	}
	if rec.Region != "" && !cmd.Flags().Changed("region") {
		region = rec.Region
	}

	logger := newLogger(cfg)
	ctx := context.Background()

	client, err := newClient(ctx, logger)
	if err != nil {
		return err
	}

	var lb *types.LoadBalancer
	if rec.LoadBalancer != "" {
		lb, err = client.GetLoadBalancerByName(ctx, rec.LoadBalancer)
		if err != nil {
			return fmt.Errorf("failed to get load balancer: %w", err)
		}
	}

	bindings, err := recordBindings(ctx, client, rec)
	if err != nil {
		return err
	}

	opts := reportOptions(cfg)
	if !metricsSettle {
		opts.SettleDelay = 0
	}
	rep, err := report.New(client, opts, logger).Collect(ctx, lb, bindings)
	if err != nil {
		return fmt.Errorf("failed to collect metrics: %w", err)
	}

	ui.PrintMetricsReport(os.Stdout, rep)

	if metricsOutput != "" {
		if err := report.WriteYAML(metricsOutput, rep); err != nil {
			return err
		}
		fmt.Printf("Report written to %s\n", metricsOutput)
	}
	return nil
}

// recordBindings rebuilds cluster bindings from a run record and the targets currently registered
func recordBindings(ctx context.Context, lister targetLister, rec *config.RunRecord) ([]types.TargetGroupBinding, error) {
	bindings := make([]types.TargetGroupBinding, 0, len(rec.TargetGroups))
	for _, cluster := range sortedKeys(rec.TargetGroups) {
		tg := types.NewHandle(types.KindTargetGroup, rec.TargetGroups[cluster])
		targets, err := lister.ListTargets(ctx, tg)
		if err != nil {
			return nil, fmt.Errorf("failed to list targets of %s: %w", cluster, err)
		}

		b := types.TargetGroupBinding{Cluster: cluster, TargetGroup: tg}
		for _, t := range targets {
			b.Instances = append(b.Instances, types.NewHandle(types.KindInstance, t.ID))
			b.Port = t.Port
		}
		bindings = append(bindings, b)
	}
	return bindings, nil
}

type targetLister interface {
	ListTargets(ctx context.Context, tg types.ResourceHandle) ([]types.Target, error)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
