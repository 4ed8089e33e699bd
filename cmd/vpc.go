package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/vietdv277/clusterbench/internal/ui"
)

var vpcCmd = &cobra.Command{
	Use:   "vpc",
	Short: "Inspect VPCs",
	Long:  `Inspect VPCs and their subnets. Deployments use the default VPC and its first two subnets.`,
}

var vpcLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all VPCs",
	Long: `List all VPCs with their CIDR, state, name, and default flag.

Examples:
  cbench vpc ls              # List all VPCs
  cbench vpc ls -r eu-west-1 # List VPCs in another region`,
	RunE: runVPCList,
}

var vpcSubnetsCmd = &cobra.Command{
	Use:   "subnets [vpc-id]",
	Short: "List subnets in a VPC",
	Long: `List all subnets in a VPC with their CIDR, AZ, and availability.
If no VPC ID is provided, the region's default VPC is used.

Examples:
  cbench vpc subnets                   # Subnets of the default VPC
  cbench vpc subnets vpc-12345678      # Subnets of a specific VPC`,
	Args: cobra.MaximumNArgs(1),
	RunE: runVPCSubnets,
}

func init() {
	rootCmd.AddCommand(vpcCmd)

	vpcCmd.AddCommand(vpcLsCmd)
	vpcCmd.AddCommand(vpcSubnetsCmd)
}

func runVPCList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	client, err := newClient(ctx, newLogger(cfg))
	if err != nil {
		return err
	}

	vpcs, err := client.ListVPCs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list VPCs: %w", err)
	}

	if len(vpcs) == 0 {
		fmt.Println("No VPCs found")
		return nil
	}

	ui.PrintVPCs(os.Stdout, vpcs)
	return nil
}

func runVPCSubnets(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	client, err := newClient(ctx, newLogger(cfg))
	if err != nil {
		return err
	}

	var vpcID string
	if len(args) > 0 {
		vpcID = args[0]
	} else {
		vpc, err := client.DefaultVPC(ctx)
		if err != nil {
			return fmt.Errorf("failed to get default VPC: %w", err)
		}
		vpcID = vpc.ID
	}

	subnets, err := client.ListSubnets(ctx, vpcID)
	if err != nil {
		return fmt.Errorf("failed to list subnets: %w", err)
	}

	if len(subnets) == 0 {
		fmt.Println("No subnets found in this VPC")
		return nil
	}

	fmt.Printf("VPC: %s\n", ui.IDStyle.Render(vpcID))
	ui.PrintSubnets(os.Stdout, subnets)
	return nil
}
