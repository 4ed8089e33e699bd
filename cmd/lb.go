package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vietdv277/clusterbench/internal/ui"
	"github.com/vietdv277/clusterbench/pkg/provider"
)

var lbRunID string

var lbCmd = &cobra.Command{
	Use:   "lb",
	Short: "Inspect load balancers and target groups",
	Long:  `Inspect application load balancers, their listeners, target groups and targets.`,
}

var lbLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all load balancers",
	Long: `List application load balancers with their scheme, state, and DNS name.

Examples:
  cbench lb ls                # List all load balancers
  cbench lb ls --run 3f2a...  # Only those created by one run`,
	RunE: runLBList,
}

var lbDescribeCmd = &cobra.Command{
	Use:   "describe <name>",
	Short: "Show detailed load balancer information",
	Long: `Show detailed information about a load balancer including listeners and target groups.

Examples:
  cbench lb describe my-load-balancer`,
	Args: cobra.ExactArgs(1),
	RunE: runLBDescribe,
}

var lbTargetGroupsCmd = &cobra.Command{
	Use:     "tgs",
	Aliases: []string{"target-groups"},
	Short:   "List target groups",
	Long: `List target groups with their port, health check path and owning load balancers.

Examples:
  cbench lb tgs                # List all target groups
  cbench lb tgs --run 3f2a...  # Only those created by one run`,
	RunE: runLBTargetGroups,
}

var lbTargetsCmd = &cobra.Command{
	Use:   "targets <name>",
	Short: "List targets behind a load balancer",
	Long: `List all targets behind a load balancer with their health status.

Examples:
  cbench lb targets my-load-balancer`,
	Args: cobra.ExactArgs(1),
	RunE: runLBTargets,
}

func init() {
	rootCmd.AddCommand(lbCmd)

	lbCmd.AddCommand(lbLsCmd)
	lbCmd.AddCommand(lbDescribeCmd)
	lbCmd.AddCommand(lbTargetGroupsCmd)
	lbCmd.AddCommand(lbTargetsCmd)

	lbLsCmd.Flags().StringVar(&lbRunID, "run", "", "only show resources tagged with this run id")
	lbTargetGroupsCmd.Flags().StringVar(&lbRunID, "run", "", "only show resources tagged with this run id")
}

func runFilter(tagKey string) *provider.TagFilter {
	if lbRunID == "" {
		return nil
	}
	return &provider.TagFilter{Key: tagKey, Value: lbRunID}
}

func runLBList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	client, err := newClient(ctx, newLogger(cfg))
	if err != nil {
		return err
	}

	lbs, err := client.ListLoadBalancers(ctx, runFilter(cfg.Run.TagKey))
	if err != nil {
		return fmt.Errorf("failed to list load balancers: %w", err)
	}

	if len(lbs) == 0 {
		fmt.Println("No load balancers found")
		return nil
	}

	ui.PrintLoadBalancers(os.Stdout, lbs)
	return nil
}

func runLBDescribe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	client, err := newClient(ctx, newLogger(cfg))
	if err != nil {
		return err
	}

	lb, err := client.GetLoadBalancerByName(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get load balancer: %w", err)
	}
	if lb == nil {
		return fmt.Errorf("load balancer %s not found", args[0])
	}

	fmt.Println()
	fmt.Printf("Load Balancer: %s\n", lb.Name)
	fmt.Printf("  Type:      %s\n", lb.Type)
	fmt.Printf("  Scheme:    %s\n", lb.Scheme)
	fmt.Printf("  State:     %s\n", lb.State)
	fmt.Printf("  DNS:       %s\n", lb.DNSName)
	fmt.Printf("  VPC:       %s\n", lb.VPCID)
	fmt.Printf("  AZs:       %s\n", strings.Join(lb.AZs, ", "))
	fmt.Printf("  Created:   %s\n", lb.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Println()

	listeners, err := client.ListListeners(ctx, lb.Handle())
	if err != nil {
		return fmt.Errorf("failed to list listeners: %w", err)
	}
	if len(listeners) > 0 {
		fmt.Println("Listeners:")
		for _, l := range listeners {
			fmt.Printf("  - %s:%d\n", l.Protocol, l.Port)
		}
		fmt.Println()
	}

	tgs, err := client.ListLoadBalancerTargetGroups(ctx, lb.Handle())
	if err != nil {
		return fmt.Errorf("failed to list target groups: %w", err)
	}
	if len(tgs) > 0 {
		fmt.Println("Target Groups:")
		ui.PrintTargetGroups(os.Stdout, tgs)
	} else {
		fmt.Println("No target groups found")
	}

	return nil
}

func runLBTargetGroups(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	client, err := newClient(ctx, newLogger(cfg))
	if err != nil {
		return err
	}

	tgs, err := client.ListTargetGroups(ctx, runFilter(cfg.Run.TagKey))
	if err != nil {
		return fmt.Errorf("failed to list target groups: %w", err)
	}
	if len(tgs) == 0 {
		fmt.Println("No target groups found")
		return nil
	}

	ui.PrintTargetGroups(os.Stdout, tgs)
	return nil
}

func runLBTargets(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	client, err := newClient(ctx, newLogger(cfg))
	if err != nil {
		return err
	}

	lb, err := client.GetLoadBalancerByName(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get load balancer: %w", err)
	}
	if lb == nil {
		return fmt.Errorf("load balancer %s not found", args[0])
	}

	tgs, err := client.ListLoadBalancerTargetGroups(ctx, lb.Handle())
	if err != nil {
		return fmt.Errorf("failed to list target groups: %w", err)
	}
	if len(tgs) == 0 {
		fmt.Println("No target groups found")
		return nil
	}

	for _, tg := range tgs {
		targets, err := client.ListTargets(ctx, tg.Handle())
		if err != nil {
			return fmt.Errorf("failed to list targets of %s: %w", tg.Name, err)
		}

		fmt.Println()
		fmt.Printf("Target Group: %s (port %d, path %s)\n", ui.NameStyle.Render(tg.Name), tg.Port, tg.HealthCheckPath)
		if len(targets) == 0 {
			fmt.Println(ui.MutedStyle.Render("  no registered targets"))
			continue
		}
		ui.PrintTargets(os.Stdout, targets)
	}
	return nil
}
