package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. CBENCH_HEALTH_MAX_ATTEMPTS
const EnvPrefix = "CBENCH"

// Config is the main configuration structure
type Config struct {
	AWS      AWSConfig       `mapstructure:"aws"`
	Log      LogConfig       `mapstructure:"log"`
	Deploy   DeployConfig    `mapstructure:"deploy"`
	Clusters []ClusterConfig `mapstructure:"clusters"`
	Health   HealthConfig    `mapstructure:"health"`
	Remote   RemoteConfig    `mapstructure:"remote"`
	PublicIP RetryConfig     `mapstructure:"public_ip"`
	Volume   VolumeConfig    `mapstructure:"volume"`
	Bench    BenchConfig     `mapstructure:"bench"`
	Metrics  MetricsConfig   `mapstructure:"metrics"`
	Teardown TeardownConfig  `mapstructure:"teardown"`
	Run      RunConfig       `mapstructure:"run"`
}

// AWSConfig selects credentials and region
type AWSConfig struct {
	Profile string `mapstructure:"profile"`
	Region  string `mapstructure:"region"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DeployConfig contains settings shared by every cluster
type DeployConfig struct {
	AMI              string        `mapstructure:"ami"`
	KeyName          string        `mapstructure:"key_name"`
	KeyFile          string        `mapstructure:"key_file"`
	SecurityGroup    string        `mapstructure:"security_group"`
	IngressPorts     []int         `mapstructure:"ingress_ports"`
	SSHUser          string        `mapstructure:"ssh_user"`
	AppPort          int           `mapstructure:"app_port"`
	AppPath          string        `mapstructure:"app_path"`
	ListenerPort     int           `mapstructure:"listener_port"`
	LoadBalancerName string        `mapstructure:"load_balancer_name"`
	Monitoring       bool          `mapstructure:"monitoring"`
	Parallelism      int           `mapstructure:"parallelism"`
	InstanceWait     time.Duration `mapstructure:"instance_wait"`
	LoadBalancerWait time.Duration `mapstructure:"load_balancer_wait"`
}

// ClusterConfig describes one instance class behind its own target group
type ClusterConfig struct {
	Name         string `mapstructure:"name"`
	InstanceType string `mapstructure:"instance_type"`
	Count        int    `mapstructure:"count"`
	Path         string `mapstructure:"path"`
}

// HealthConfig bounds health polling per target group
type HealthConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Interval    time.Duration `mapstructure:"interval"`
}

// RetryConfig is a fixed-delay retry budget
type RetryConfig struct {
	Attempts int           `mapstructure:"attempts"`
	Delay    time.Duration `mapstructure:"delay"`
}

// RemoteConfig selects and tunes the remote execution transport
type RemoteConfig struct {
	Transport      string        `mapstructure:"transport"` // ssh or ssm
	Attempts       int           `mapstructure:"attempts"`
	Delay          time.Duration `mapstructure:"delay"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	PollAttempts   int           `mapstructure:"poll_attempts"`
}

// VolumeConfig optionally attaches an extra EBS volume to every instance
type VolumeConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	SizeGiB int    `mapstructure:"size_gib"`
	Type    string `mapstructure:"type"`
	Device  string `mapstructure:"device"`
	// attachment polling
	Attempts int           `mapstructure:"attempts"`
	Delay    time.Duration `mapstructure:"delay"`
}

// BenchConfig controls the load test phase
type BenchConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Requests   int    `mapstructure:"requests"`
	ScriptPath string `mapstructure:"script_path"`
}

// MetricsConfig controls the CloudWatch reporting phase
type MetricsConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Window         time.Duration `mapstructure:"window"`
	Period         time.Duration `mapstructure:"period"`
	RequestWindow  time.Duration `mapstructure:"request_window"`
	SettleDelay    time.Duration `mapstructure:"settle_delay"`
	InstanceMetric []string      `mapstructure:"instance_metrics"`
	ExportPath     string        `mapstructure:"export_path"`
}

// TeardownConfig controls the teardown pass
type TeardownConfig struct {
	IncludeClassic       bool          `mapstructure:"include_classic"`
	WaitForLoadBalancers bool          `mapstructure:"wait_for_load_balancers"`
	DeleteWait           time.Duration `mapstructure:"delete_wait"`
	AfterDeploy          bool          `mapstructure:"after_deploy"`
}

// RunConfig identifies the resources of one run
type RunConfig struct {
	TagKey string `mapstructure:"tag_key"`
	ID     string `mapstructure:"id"`
}

// Load reads configuration from v: defaults, then the config file if one is found, then CBENCH_* env vars
func Load(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// no config file is fine, defaults and env vars apply
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("aws.profile", "")
	v.SetDefault("aws.region", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("deploy.ami", "ami-0e86e20dae9224db8")
	v.SetDefault("deploy.key_name", "my-key-pair")
	v.SetDefault("deploy.key_file", "my-key-pair.pem")
	v.SetDefault("deploy.security_group", "my-security-group-2")
	v.SetDefault("deploy.ingress_ports", []int{80, 8000, 443, 22})
	v.SetDefault("deploy.ssh_user", "ubuntu")
	v.SetDefault("deploy.app_port", 8000)
	v.SetDefault("deploy.app_path", "/home/ubuntu/main.py")
	v.SetDefault("deploy.listener_port", 8000)
	v.SetDefault("deploy.load_balancer_name", "my-load-balancer")
	v.SetDefault("deploy.monitoring", true)
	v.SetDefault("deploy.parallelism", 4)
	v.SetDefault("deploy.instance_wait", 10*time.Minute)
	v.SetDefault("deploy.load_balancer_wait", 10*time.Minute)

	v.SetDefault("clusters", []map[string]interface{}{
		{"name": "cluster1", "instance_type": "t2.micro", "count": 5, "path": "/cluster1"},
		{"name": "cluster2", "instance_type": "t2.large", "count": 4, "path": "/cluster2"},
	})

	v.SetDefault("health.max_attempts", 10)
	v.SetDefault("health.interval", 60*time.Second)

	v.SetDefault("remote.transport", "ssh")
	v.SetDefault("remote.attempts", 10)
	v.SetDefault("remote.delay", 30*time.Second)
	v.SetDefault("remote.connect_timeout", 10*time.Second)
	v.SetDefault("remote.poll_interval", 5*time.Second)
	v.SetDefault("remote.poll_attempts", 120)

	v.SetDefault("public_ip.attempts", 10)
	v.SetDefault("public_ip.delay", 10*time.Second)

	v.SetDefault("volume.enabled", false)
	v.SetDefault("volume.size_gib", 8)
	v.SetDefault("volume.type", "gp3")
	v.SetDefault("volume.device", "/dev/sdf")
	v.SetDefault("volume.attempts", 24)
	v.SetDefault("volume.delay", 5*time.Second)

	v.SetDefault("bench.enabled", true)
	v.SetDefault("bench.requests", 1000)
	v.SetDefault("bench.script_path", "/home/ubuntu/benchmark.py")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.window", time.Hour)
	v.SetDefault("metrics.period", 5*time.Minute)
	v.SetDefault("metrics.request_window", 24*time.Hour)
	v.SetDefault("metrics.settle_delay", 5*time.Minute)
	v.SetDefault("metrics.instance_metrics", []string{"CPUUtilization", "NetworkIn", "NetworkOut"})
	v.SetDefault("metrics.export_path", "")

	v.SetDefault("teardown.include_classic", true)
	v.SetDefault("teardown.wait_for_load_balancers", false)
	v.SetDefault("teardown.delete_wait", 5*time.Minute)
	v.SetDefault("teardown.after_deploy", false)

	v.SetDefault("run.tag_key", "cbench:run")
	v.SetDefault("run.id", "")
}

// Validate rejects configurations that cannot produce a deployment
func (c *Config) Validate() error {
	if len(c.Clusters) == 0 {
		return errors.New("at least one cluster must be configured")
	}

	seen := make(map[string]bool, len(c.Clusters))
	for i, cl := range c.Clusters {
		if cl.Name == "" {
			return fmt.Errorf("cluster %d has no name", i)
		}
		if seen[cl.Name] {
			return fmt.Errorf("duplicate cluster name %q", cl.Name)
		}
		seen[cl.Name] = true
		if cl.Count <= 0 {
			return fmt.Errorf("cluster %s: count must be positive", cl.Name)
		}
		if cl.InstanceType == "" {
			return fmt.Errorf("cluster %s: instance_type is required", cl.Name)
		}
		if !strings.HasPrefix(cl.Path, "/") {
			return fmt.Errorf("cluster %s: path must start with /", cl.Name)
		}
	}

	if c.Health.MaxAttempts <= 0 || c.Health.Interval <= 0 {
		return errors.New("health.max_attempts and health.interval must be positive")
	}
	if c.Remote.Attempts <= 0 || c.Remote.Delay <= 0 {
		return errors.New("remote.attempts and remote.delay must be positive")
	}
	if c.PublicIP.Attempts <= 0 || c.PublicIP.Delay <= 0 {
		return errors.New("public_ip.attempts and public_ip.delay must be positive")
	}

	switch c.Remote.Transport {
	case "ssh", "ssm":
	default:
		return fmt.Errorf("unknown remote transport %q", c.Remote.Transport)
	}
	return nil
}
