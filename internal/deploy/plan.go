package deploy

import (
	"errors"
	"fmt"
	"time"

	"github.com/vietdv277/clusterbench/internal/config"
	"github.com/vietdv277/clusterbench/internal/retry"
	"github.com/vietdv277/clusterbench/pkg/provider"
)

// ErrEmptyPlan is returned when a plan has no clusters
var ErrEmptyPlan = errors.New("deployment plan has no clusters")

// Cluster is one instance class behind its own target group and path rule
type Cluster struct {
	Name         string
	InstanceType string
	Count        int
	Path         string
}

// VolumePlan adds an EBS volume to every instance
type VolumePlan struct {
	SizeGiB int
	Type    string
	Device  string
	Attach  retry.Policy
}

// BenchPlan enables the load test
type BenchPlan struct {
	Requests   int
	ScriptPath string
}

// Plan is everything the orchestrator needs for one run
type Plan struct {
	RunID  string
	TagKey string

	AMI           string
	KeyName       string
	KeyFile       string
	SecurityGroup string
	IngressPorts  []int
	Monitoring    bool

	AppPort          int
	AppPath          string
	ListenerPort     int
	LoadBalancerName string

	Clusters []Cluster

	Parallelism      int
	InstanceWait     time.Duration
	LoadBalancerWait time.Duration
	PublicIP         retry.Policy
	HealthAttempts   int
	HealthInterval   time.Duration

	Volume  *VolumePlan // nil disables volumes
	Bench   *BenchPlan  // nil disables the benchmark
	Metrics bool
}

// PlanFromConfig builds a plan for runID from loaded configuration
func PlanFromConfig(cfg *config.Config, runID string) Plan {
	p := Plan{
		RunID:            runID,
		TagKey:           cfg.Run.TagKey,
		AMI:              cfg.Deploy.AMI,
		KeyName:          cfg.Deploy.KeyName,
		KeyFile:          cfg.Deploy.KeyFile,
		SecurityGroup:    cfg.Deploy.SecurityGroup,
		IngressPorts:     cfg.Deploy.IngressPorts,
		Monitoring:       cfg.Deploy.Monitoring,
		AppPort:          cfg.Deploy.AppPort,
		AppPath:          cfg.Deploy.AppPath,
		ListenerPort:     cfg.Deploy.ListenerPort,
		LoadBalancerName: cfg.Deploy.LoadBalancerName,
		Parallelism:      cfg.Deploy.Parallelism,
		InstanceWait:     cfg.Deploy.InstanceWait,
		LoadBalancerWait: cfg.Deploy.LoadBalancerWait,
		PublicIP:         retry.Policy{Attempts: cfg.PublicIP.Attempts, Delay: cfg.PublicIP.Delay},
		HealthAttempts:   cfg.Health.MaxAttempts,
		HealthInterval:   cfg.Health.Interval,
		Metrics:          cfg.Metrics.Enabled,
	}

	for _, c := range cfg.Clusters {
		p.Clusters = append(p.Clusters, Cluster{
			Name:         c.Name,
			InstanceType: c.InstanceType,
			Count:        c.Count,
			Path:         c.Path,
		})
	}

	if cfg.Volume.Enabled {
		p.Volume = &VolumePlan{
			SizeGiB: cfg.Volume.SizeGiB,
			Type:    cfg.Volume.Type,
			Device:  cfg.Volume.Device,
			Attach:  retry.Policy{Attempts: cfg.Volume.Attempts, Delay: cfg.Volume.Delay},
		}
	}
	if cfg.Bench.Enabled {
		p.Bench = &BenchPlan{
			Requests:   cfg.Bench.Requests,
			ScriptPath: cfg.Bench.ScriptPath,
		}
	}
	return p
}

// Validate checks the parts of the plan the orchestrator relies on
func (p Plan) Validate() error {
	if len(p.Clusters) == 0 {
		return ErrEmptyPlan
	}
	if p.AppPort <= 0 || p.ListenerPort <= 0 {
		return fmt.Errorf("invalid ports: app=%d listener=%d", p.AppPort, p.ListenerPort)
	}
	if p.HealthAttempts <= 0 || p.HealthInterval <= 0 {
		return fmt.Errorf("invalid health budget: attempts=%d interval=%s", p.HealthAttempts, p.HealthInterval)
	}
	if err := p.PublicIP.Validate(); err != nil {
		return fmt.Errorf("public ip wait: %w", err)
	}
	return nil
}

// Tags returns the tags put on every created resource, with name as the Name tag
func (p Plan) Tags(name string) provider.Tags {
	tags := provider.Tags{"Name": name}
	if p.TagKey != "" && p.RunID != "" {
		tags[p.TagKey] = p.RunID
	}
	return tags
}
