package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vietdv277/clusterbench/internal/aws"
	"github.com/vietdv277/clusterbench/internal/config"
	"github.com/vietdv277/clusterbench/internal/logging"
)

var (
	// Global flags
	cfgFile   string
	profile   string
	region    string
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "cbench",
	Short: "Clusterbench - deploy, load test and tear down EC2 clusters behind an ALB",
	Long: `Clusterbench provisions clusters of EC2 instances behind one application load
balancer, installs a small HTTP app on every instance, waits for the target groups
to turn healthy, benchmarks the load balancer and reports CloudWatch metrics.

Run Commands:
  cbench deploy                # Provision, gate, benchmark and report
  cbench teardown --last       # Delete what the last deploy created
  cbench teardown              # Delete every load balancer, target group and instance
  cbench health my-tg          # Poll a target group until healthy
  cbench metrics               # Report CloudWatch metrics for the last run

Inspection Commands:
  cbench lb ls                 # List load balancers
  cbench lb targets my-lb      # List targets behind a load balancer
  cbench vpc ls                # List VPCs and default subnets
  cbench status                # Show identity, region and profiles`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.cbench.yaml)")
	rootCmd.PersistentFlags().StringVarP(&profile, "profile", "p", "", "AWS profile to use")
	rootCmd.PersistentFlags().StringVarP(&region, "region", "r", "", "AWS region to use")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text or json)")

	// Bind flags to viper
	_ = viper.BindPFlag("aws.profile", rootCmd.PersistentFlags().Lookup("profile"))
	_ = viper.BindPFlag("aws.region", rootCmd.PersistentFlags().Lookup("region"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		return
	}

	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
	}
	viper.AddConfigPath(".")
	viper.SetConfigName(".cbench")
	viper.SetConfigType("yaml")
}

// loadConfig reads the merged configuration and resolves profile and region.
// Priority: flag > config file > CBENCH_* env > AWS_PROFILE / AWS_REGION.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.AWS.Profile == "" {
		cfg.AWS.Profile = os.Getenv("AWS_PROFILE")
	}
	if cfg.AWS.Region == "" {
		cfg.AWS.Region = os.Getenv("AWS_REGION")
		if cfg.AWS.Region == "" {
			cfg.AWS.Region = os.Getenv("AWS_DEFAULT_REGION")
		}
	}
	profile = cfg.AWS.Profile
	region = cfg.AWS.Region

	if cfg.Deploy.KeyFile != "" && !filepath.IsAbs(cfg.Deploy.KeyFile) {
		if abs, err := filepath.Abs(cfg.Deploy.KeyFile); err == nil {
			cfg.Deploy.KeyFile = abs
		}
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *logging.Logger {
	return logging.NewLogger(cfg.Log.Level, cfg.Log.Format)
}

func newClient(ctx context.Context, logger *logging.Logger) (*aws.Client, error) {
	if p := GetProfile(); p != "" && !aws.HasProfile(p) {
		return nil, fmt.Errorf("AWS profile %q not found in ~/.aws/config or ~/.aws/credentials", p)
	}

	client, err := aws.NewClient(
		ctx,
		aws.WithProfile(GetProfile()),
		aws.WithRegion(GetRegion()),
		aws.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS client: %w", err)
	}
	return client, nil
}

// GetProfile returns the AWS profile
func GetProfile() string {
	return profile
}

// GetRegion returns the AWS region
func GetRegion() string {
	return region
}
