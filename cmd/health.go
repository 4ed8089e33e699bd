package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/vietdv277/clusterbench/internal/healthgate"
	"github.com/vietdv277/clusterbench/internal/ui"
	"github.com/vietdv277/clusterbench/pkg/types"
)

var (
	healthAttempts int
	healthInterval time.Duration
)

var healthCmd = &cobra.Command{
	Use:   "health [target-group]",
	Short: "Wait for a target group to become healthy",
	Long: `Poll a target group until every registered target is healthy, or the attempt
budget runs out. Registration is never changed; this command only reads health.
If no name is provided, an interactive selector will be shown.

Examples:
  cbench health                          # Interactive target group selector
  cbench health cluster1                 # Gate on a specific group
  cbench health cluster1 --attempts 3 --interval 10s`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)

	healthCmd.Flags().IntVar(&healthAttempts, "attempts", 0, "maximum polls (default health.max_attempts)")
	healthCmd.Flags().DurationVar(&healthInterval, "interval", 0, "delay between polls (default health.interval)")
}

func runHealth(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if healthAttempts > 0 {
		cfg.Health.MaxAttempts = healthAttempts
	}
	if healthInterval > 0 {
		cfg.Health.Interval = healthInterval
	}

	logger := newLogger(cfg)
	ctx := context.Background()

	client, err := newClient(ctx, logger)
	if err != nil {
		return err
	}

	var tg *types.TargetGroup
	if len(args) > 0 {
		tg, err = client.FindTargetGroup(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to get target group: %w", err)
		}
		if tg == nil {
			return fmt.Errorf("target group %q not found", args[0])
		}
	} else {
		groups, err := client.ListTargetGroups(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to list target groups: %w", err)
		}
		tg, err = ui.SelectTargetGroup(groups)
		if err != nil {
			return err
		}
	}

	gate := healthgate.New(client, healthgate.WithLogger(logger))
	res, err := gate.AwaitHealthy(ctx, tg.Handle(), cfg.Health.MaxAttempts, cfg.Health.Interval)
	if err != nil {
		return fmt.Errorf("failed to read health of %s: %w", tg.Name, err)
	}

	fmt.Printf("%s  %s after %d polls\n", ui.NameStyle.Render(tg.Name), res.Status, res.Attempts)
	ui.PrintHealthSnapshot(os.Stdout, res.Snapshot)

	if !res.Ready() {
		return fmt.Errorf("target group %s did not become healthy", tg.Name)
	}
	return nil
}
