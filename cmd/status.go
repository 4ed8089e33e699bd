package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vietdv277/clusterbench/internal/aws"
	"github.com/vietdv277/clusterbench/internal/config"
	"github.com/vietdv277/clusterbench/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show identity, region and the last recorded run",
	Long: `Display the resolved profile and region, verify credentials with STS, list
the profiles found in ~/.aws and show the last recorded run.

Examples:
  cbench status
  cbench status -p bench`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Println("Current Status")
	fmt.Println(ui.MutedStyle.Render("─────────────────────────────────"))
	fmt.Println()

	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Printf("Config:   %s\n", used)
	} else {
		fmt.Printf("Config:   %s\n", ui.MutedStyle.Render("(defaults)"))
	}
	fmt.Printf("Profile:  %s\n", valueOr(cfg.AWS.Profile, "(default chain)"))

	ctx := context.Background()
	client, err := newClient(ctx, newLogger(cfg))
	if err != nil {
		fmt.Println()
		fmt.Println(ui.BadStyle.Render("✗ " + err.Error()))
		printProfiles()
		return nil
	}
	fmt.Printf("Region:   %s\n", client.Region())
	fmt.Println()

	fmt.Print("Auth:     ")
	identity, err := client.Whoami(ctx)
	if err != nil {
		fmt.Println(ui.BadStyle.Render("✗ Not authenticated"))
		fmt.Printf("          %s\n", ui.MutedStyle.Render(err.Error()))
		if p := findProfile(cfg.AWS.Profile); p != nil && p.SSO {
			fmt.Println()
			fmt.Println("To authenticate:")
			fmt.Printf("  aws sso login --profile %s\n", p.Name)
		}
	} else {
		fmt.Println(ui.GoodStyle.Render("✓ Authenticated"))
		fmt.Printf("Account:  %s\n", identity.Account)
		fmt.Printf("User:     %s\n", identity.Principal())
		if identity.Arn != "" {
			fmt.Printf("ARN:      %s\n", ui.MutedStyle.Render(identity.Arn))
		}
	}

	fmt.Println()
	rec, err := config.LoadRunRecord(config.GetRunRecordPath())
	switch {
	case err != nil:
		fmt.Printf("Last run: %s\n", ui.BadStyle.Render(err.Error()))
	case rec == nil:
		fmt.Printf("Last run: %s\n", ui.MutedStyle.Render("(none)"))
	default:
		fmt.Printf("Last run: %s (%s)\n", ui.IDStyle.Render(rec.RunID), rec.CreatedAt.Format("2006-01-02 15:04:05"))
		if rec.DNSName != "" {
			fmt.Printf("          http://%s:%d\n", rec.DNSName, cfg.Deploy.ListenerPort)
		}
		fmt.Printf("          %d instances, %d target groups\n", len(rec.Instances), len(rec.TargetGroups))
	}
	return nil
}

func printProfiles() {
	profiles, err := aws.ListProfiles()
	if err != nil || len(profiles) == 0 {
		return
	}
	fmt.Println()
	fmt.Println("Available profiles:")
	for _, p := range profiles {
		fmt.Printf("  %-24s %s\n", p.Name, ui.MutedStyle.Render(valueOr(p.Region, "-")))
	}
}

// findProfile looks up name in the shared files, nil when absent
func findProfile(name string) *aws.Profile {
	if name == "" {
		return nil
	}
	profiles, err := aws.ListProfiles()
	if err != nil {
		return nil
	}
	for i := range profiles {
		if profiles[i].Name == name {
			return &profiles[i]
		}
	}
	return nil
}

func valueOr(s, fallback string) string {
	if s == "" {
		return ui.MutedStyle.Render(fallback)
	}
	return s
}
