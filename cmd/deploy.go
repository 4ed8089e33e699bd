package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/vietdv277/clusterbench/internal/aws"
	"github.com/vietdv277/clusterbench/internal/bench"
	"github.com/vietdv277/clusterbench/internal/config"
	"github.com/vietdv277/clusterbench/internal/deploy"
	"github.com/vietdv277/clusterbench/internal/logging"
	"github.com/vietdv277/clusterbench/internal/remote"
	"github.com/vietdv277/clusterbench/internal/report"
	"github.com/vietdv277/clusterbench/internal/retry"
	"github.com/vietdv277/clusterbench/internal/teardown"
	"github.com/vietdv277/clusterbench/internal/ui"
	"github.com/vietdv277/clusterbench/pkg/provider"
)

var (
	deploySkipBench    bool
	deploySkipMetrics  bool
	deployTeardown     bool
	deployTransport    string
	deployExportReport string
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Provision the clusters, gate on health, benchmark and report",
	Long: `Provision every configured cluster behind one application load balancer.

The run creates the security group, key pair and instances, installs the FastAPI
app on every instance, creates one target group per cluster with a path rule on a
shared listener, registers the instances and waits for every target group to turn
healthy. When all groups are healthy, a benchmark runs against the load balancer
and CloudWatch metrics are collected.

Every created resource is tagged with the run id, which is saved so the run can be
torn down later with 'cbench teardown --last'.

Examples:
  cbench deploy                         # Full run with ~/.cbench.yaml
  cbench deploy --config bench.yaml     # Use a specific config file
  cbench deploy --skip-bench            # Stop after the health gate
  cbench deploy --transport ssm         # Run remote commands through SSM
  cbench deploy --teardown              # Delete everything the run created at the end`,
	RunE: runDeploy,
}

func init() {
	rootCmd.AddCommand(deployCmd)

	deployCmd.Flags().BoolVar(&deploySkipBench, "skip-bench", false, "skip the benchmark phase")
	deployCmd.Flags().BoolVar(&deploySkipMetrics, "skip-metrics", false, "skip the CloudWatch metrics phase")
	deployCmd.Flags().BoolVar(&deployTeardown, "teardown", false, "tear down the run's resources when it ends")
	deployCmd.Flags().StringVar(&deployTransport, "transport", "", "remote transport: ssh or ssm (overrides remote.transport)")
	deployCmd.Flags().StringVarP(&deployExportReport, "output", "o", "", "write the metrics report as YAML to this path")
}

func runDeploy(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if deployTransport != "" {
		cfg.Remote.Transport = deployTransport
	}
	if deploySkipBench {
		cfg.Bench.Enabled = false
	}
	if deploySkipMetrics {
		cfg.Metrics.Enabled = false
	}
	if deployTeardown {
		cfg.Teardown.AfterDeploy = true
	}
	if deployExportReport != "" {
		cfg.Metrics.ExportPath = deployExportReport
	}

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := newClient(ctx, logger)
	if err != nil {
		return err
	}

	runID := cfg.Run.ID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger.WithField("run", runID).WithField("region", client.Region()).Info("starting deployment")

	retrier := retry.New(retry.WithNotify(func(attempt int, err error, next time.Duration) {
		logger.WithError(err).WithField("attempt", attempt).WithField("next", next).Debug("retrying")
	}))

	exec, err := newExecutor(cfg, client, retrier, logger)
	if err != nil {
		return err
	}

	opts := []deploy.Option{
		deploy.WithRetrier(retrier),
		deploy.WithLogger(logger),
		deploy.WithBenchmark(bench.NewRunner(exec, logger)),
		deploy.WithMetrics(report.New(client, reportOptions(cfg), logger)),
	}
	orchestrator := deploy.New(client, exec, opts...)

	plan := deploy.PlanFromConfig(cfg, runID)
	d, runErr := orchestrator.Run(ctx, plan)

	if d != nil {
		if err := config.SaveRunRecord(config.GetRunRecordPath(), runRecord(cfg, client.Region(), d)); err != nil {
			logger.WithError(err).Warn("failed to save run record")
		}
		printDeployment(d)
	}

	if runErr == nil && d != nil && d.Metrics != nil && cfg.Metrics.ExportPath != "" {
		if err := report.WriteYAML(cfg.Metrics.ExportPath, d.Metrics); err != nil {
			return err
		}
		fmt.Printf("Metrics report written to %s\n", cfg.Metrics.ExportPath)
	}

	if cfg.Teardown.AfterDeploy {
		if err := teardownRun(client, cfg, runID, logger); err != nil {
			return errors.Join(runErr, err)
		}
	}

	if runErr != nil {
		var stepErr *deploy.StepError
		if errors.As(runErr, &stepErr) {
			return fmt.Errorf("deployment %s failed at %s: %w", runID, stepErr.Step, stepErr.Err)
		}
		return fmt.Errorf("deployment %s failed: %w", runID, runErr)
	}
	return nil
}

// newExecutor builds the remote transport selected by remote.transport
func newExecutor(cfg *config.Config, client *aws.Client, retrier *retry.Retrier, logger *logging.Logger) (provider.RemoteExecutor, error) {
	reach := retry.Policy{Attempts: cfg.Remote.Attempts, Delay: cfg.Remote.Delay}

	switch cfg.Remote.Transport {
	case "ssm":
		return remote.NewSSMExecutor(client, remote.SSMOptions{
			Reachability: reach,
			Poll:         retry.Policy{Attempts: cfg.Remote.PollAttempts, Delay: cfg.Remote.PollInterval},
			Retrier:      retrier,
			Logger:       logger,
		}), nil
	case "ssh":
		exec, err := remote.NewSSHExecutor(remote.SSHOptions{
			User:           cfg.Deploy.SSHUser,
			KeyPath:        cfg.Deploy.KeyFile,
			ConnectTimeout: cfg.Remote.ConnectTimeout,
			Reachability:   reach,
			Retrier:        retrier,
			Logger:         logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create ssh executor: %w", err)
		}
		return exec, nil
	default:
		return nil, fmt.Errorf("unknown remote transport %q", cfg.Remote.Transport)
	}
}

func reportOptions(cfg *config.Config) report.Options {
	return report.Options{
		Window:          cfg.Metrics.Window,
		Period:          cfg.Metrics.Period,
		RequestWindow:   cfg.Metrics.RequestWindow,
		SettleDelay:     cfg.Metrics.SettleDelay,
		InstanceMetrics: cfg.Metrics.InstanceMetric,
	}
}

func runRecord(cfg *config.Config, region string, d *deploy.Deployment) *config.RunRecord {
	rec := &config.RunRecord{
		RunID:        d.RunID,
		TagKey:       cfg.Run.TagKey,
		Region:       region,
		Profile:      cfg.AWS.Profile,
		TargetGroups: map[string]string{},
		CreatedAt:    d.Started,
	}
	if d.LoadBalancer != nil {
		rec.LoadBalancer = d.LoadBalancer.Name
		rec.DNSName = d.LoadBalancer.DNSName
	}
	for _, c := range d.Clusters {
		if !c.TargetGroup.IsZero() {
			rec.TargetGroups[c.Cluster.Name] = c.TargetGroup.ID()
		}
	}
	for _, inst := range d.Instances() {
		rec.Instances = append(rec.Instances, inst.ID)
	}
	return rec
}

func printDeployment(d *deploy.Deployment) {
	fmt.Println()
	fmt.Println(ui.HeaderStyle.Render(fmt.Sprintf("Run %s", d.RunID)))
	if d.LoadBalancer != nil {
		fmt.Printf("Load balancer: %s (%s)\n", d.LoadBalancer.Name, ui.IDStyle.Render(d.LoadBalancer.DNSName))
	}

	if instances := d.Instances(); len(instances) > 0 {
		fmt.Println()
		ui.PrintInstances(os.Stdout, instances)
	}

	for _, c := range d.Clusters {
		if c.TargetGroup.IsZero() || c.Health.Attempts == 0 {
			continue
		}
		fmt.Println()
		fmt.Printf("%s  %s after %d polls\n", ui.NameStyle.Render(c.Cluster.Name), c.Health.Status, c.Health.Attempts)
		ui.PrintHealthSnapshot(os.Stdout, c.Health.Snapshot)
	}

	if d.TrafficSkipped {
		fmt.Println()
		fmt.Println(ui.PendingStyle.Render("Not every target group became healthy; benchmark and metrics were skipped."))
	}
	if d.Benchmark != nil {
		fmt.Println()
		ui.PrintBenchmark(os.Stdout, d.Benchmark)
	}
	if d.Metrics != nil {
		fmt.Println()
		ui.PrintMetricsReport(os.Stdout, d.Metrics)
	}
	fmt.Println()
	fmt.Println(ui.MutedStyle.Render(fmt.Sprintf("Finished in %s", d.Finished.Sub(d.Started).Round(time.Second))))
}

// teardownRun deletes every resource tagged with runID, without prompting
func teardownRun(client *aws.Client, cfg *config.Config, runID string, logger *logging.Logger) error {
	// the deploy context may already be cancelled; teardown still runs
	coord := teardown.New(client, teardownOptions(cfg, &provider.TagFilter{Key: cfg.Run.TagKey, Value: runID}), logger)
	rep, err := coord.TeardownAll(context.Background())
	fmt.Println()
	ui.PrintTeardownReport(os.Stdout, rep)
	if err != nil {
		return fmt.Errorf("teardown of run %s incomplete: %w", runID, err)
	}
	return nil
}

func teardownOptions(cfg *config.Config, filter *provider.TagFilter) teardown.Options {
	return teardown.Options{
		Filter:               filter,
		IncludeClassic:       cfg.Teardown.IncludeClassic,
		WaitForLoadBalancers: cfg.Teardown.WaitForLoadBalancers,
		DeleteWait:           cfg.Teardown.DeleteWait,
	}
}
