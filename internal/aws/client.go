package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	elb "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancing"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/vietdv277/clusterbench/internal/logging"
	"github.com/vietdv277/clusterbench/pkg/provider"
)

// Client wraps the AWS SDK clients used by cbench
type Client struct {
	EC2        *ec2.Client
	ELBv2      *elbv2.Client
	ELB        *elb.Client
	CloudWatch *cloudwatch.Client
	SSM        *ssm.Client
	STS        *sts.Client

	logger  *logging.Logger
	profile string
	region  string
}

var (
	_ provider.NetworkProvider       = (*Client)(nil)
	_ provider.ComputeProvider       = (*Client)(nil)
	_ provider.LoadBalancingProvider = (*Client)(nil)
	_ provider.MetricsProvider       = (*Client)(nil)
)

// ClientOption allows customizing the AWS Client
type ClientOption func(*Client)

// WithProfile sets the AWS profile for the client
func WithProfile(profile string) ClientOption {
	return func(c *Client) {
		c.profile = profile
	}
}

// WithRegion sets the AWS region for the client
func WithRegion(region string) ClientOption {
	return func(c *Client) {
		c.region = region
	}
}

// WithLogger sets the logger used for API call tracing
func WithLogger(l *logging.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a new AWS Client with the given options
func NewClient(ctx context.Context, opts ...ClientOption) (*Client, error) {
	c := &Client{
		logger: logging.Discard(),
	}

	for _, opt := range opts {
		opt(c)
	}

	var configOpts []func(*config.LoadOptions) error

	if c.profile != "" {
		configOpts = append(configOpts, config.WithSharedConfigProfile(c.profile))
	}

	if c.region != "" {
		configOpts = append(configOpts, config.WithRegion(c.region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config: %w", err)
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("%w: no AWS region set", provider.ErrNotConfigured)
	}
	c.region = cfg.Region

	c.EC2 = ec2.NewFromConfig(cfg)
	c.ELBv2 = elbv2.NewFromConfig(cfg)
	c.ELB = elb.NewFromConfig(cfg)
	c.CloudWatch = cloudwatch.NewFromConfig(cfg)
	c.SSM = ssm.NewFromConfig(cfg)
	c.STS = sts.NewFromConfig(cfg)

	return c, nil
}

// Region returns the resolved region
func (c *Client) Region() string {
	return c.region
}
