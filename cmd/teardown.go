package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/vietdv277/clusterbench/internal/config"
	"github.com/vietdv277/clusterbench/internal/teardown"
	"github.com/vietdv277/clusterbench/internal/ui"
	"github.com/vietdv277/clusterbench/pkg/provider"
	"github.com/vietdv277/clusterbench/pkg/types"
)

var (
	teardownRunID  string
	teardownLast   bool
	teardownDryRun bool
	teardownYes    bool
)

var teardownCmd = &cobra.Command{
	Use:   "teardown",
	Short: "Delete load balancers, target groups and instances",
	Long: `Discover and delete load balancers (with their listeners), target groups and
instances, in that order. Individual failures are tallied and the pass continues.

Without --run or --last, every resource in the region is in scope, including
classic load balancers. Scoped teardown only touches resources carrying the run tag.

Examples:
  cbench teardown --last              # Delete what the last deploy created
  cbench teardown --run 3f2a...       # Delete one run by id
  cbench teardown --dry-run           # Show everything that would be deleted
  cbench teardown --yes               # Delete everything without prompting`,
	RunE: runTeardown,
}

func init() {
	rootCmd.AddCommand(teardownCmd)

	teardownCmd.Flags().StringVar(&teardownRunID, "run", "", "delete only resources tagged with this run id")
	teardownCmd.Flags().BoolVar(&teardownLast, "last", false, "delete the resources of the last recorded run")
	teardownCmd.Flags().BoolVar(&teardownDryRun, "dry-run", false, "print the teardown plan without deleting anything")
	teardownCmd.Flags().BoolVarP(&teardownYes, "yes", "y", false, "skip the confirmation prompt")
	teardownCmd.MarkFlagsMutuallyExclusive("run", "last")
}

func runTeardown(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var filter *provider.TagFilter
	switch {
	case teardownLast:
		rec, err := config.LoadRunRecord(config.GetRunRecordPath())
		if err != nil {
			return err
		}
		if rec == nil {
			return errors.New("no recorded run found, use --run or omit --last")
		}
		if rec.Region != "" && !cmd.Flags().Changed("region") {
			region = rec.Region
		}
		if rec.Profile != "" && !cmd.Flags().Changed("profile") {
			profile = rec.Profile
		}
		filter = &provider.TagFilter{Key: rec.TagKey, Value: rec.RunID}
	case teardownRunID != "":
		filter = &provider.TagFilter{Key: cfg.Run.TagKey, Value: teardownRunID}
	}

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := newClient(ctx, logger)
	if err != nil {
		return err
	}

	coord := teardown.New(client, teardownOptions(cfg, filter), logger)

	plan, err := coord.Plan(ctx)
	if err != nil {
		return fmt.Errorf("failed to discover resources: %w", err)
	}

	ui.PrintTeardownPlan(os.Stdout, plan)
	if plan.Empty() || teardownDryRun {
		return nil
	}

	if !teardownYes {
		ok, err := ui.Confirm(confirmQuestion(filter), confirmDetails(plan, client.Region()))
		if err != nil {
			return fmt.Errorf("failed to prompt: %w", err)
		}
		if !ok {
			fmt.Println("Teardown cancelled")
			return nil
		}
	}

	rep, execErr := coord.Execute(ctx, plan)
	fmt.Println()
	ui.PrintTeardownReport(os.Stdout, rep)
	if execErr != nil {
		return fmt.Errorf("teardown incomplete: %w", execErr)
	}

	if teardownLast {
		if err := config.ClearRunRecord(config.GetRunRecordPath()); err != nil {
			logger.WithError(err).Warn("failed to clear run record")
		}
	}
	return nil
}

func confirmQuestion(filter *provider.TagFilter) string {
	if filter == nil {
		return "Delete ALL load balancers, target groups and instances in the region?"
	}
	return fmt.Sprintf("Delete the resources of run %s?", filter.Value)
}

func confirmDetails(plan types.TeardownPlan, region string) []string {
	return []string{
		fmt.Sprintf("Region:          %s", region),
		fmt.Sprintf("Load balancers:  %d", len(plan.LoadBalancers)+len(plan.ClassicLoadBalancers)),
		fmt.Sprintf("Target groups:   %d", len(plan.TargetGroups)),
		fmt.Sprintf("Instances:       %d", len(plan.Instances)),
	}
}
