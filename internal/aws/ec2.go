package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/vietdv277/clusterbench/pkg/provider"
	"github.com/vietdv277/clusterbench/pkg/types"
)

// RunTagKey is the tag carrying the run id on every created resource
const RunTagKey = "cbench:run"

// nonTerminatedStates is the default instance state filter
var nonTerminatedStates = []string{"pending", "running", "stopping", "stopped"}

// RunInstances launches spec.Count identical instances
func (c *Client) RunInstances(ctx context.Context, spec provider.InstanceSpec) ([]types.Instance, error) {
	input := &ec2.RunInstancesInput{
		ImageId:           aws.String(spec.AMI),
		InstanceType:      ec2types.InstanceType(spec.InstanceType),
		MinCount:          aws.Int32(int32(spec.Count)),
		MaxCount:          aws.Int32(int32(spec.Count)),
		KeyName:           aws.String(spec.KeyName),
		TagSpecifications: ec2TagSpec(ec2types.ResourceTypeInstance, spec.Tags),
		Monitoring:        &ec2types.RunInstancesMonitoringEnabled{Enabled: aws.Bool(spec.Monitoring)},
	}
	if spec.SecurityGroupID != "" {
		input.SecurityGroupIds = []string{spec.SecurityGroupID}
	}
	if spec.SubnetID != "" {
		input.SubnetId = aws.String(spec.SubnetID)
	}

	output, err := c.EC2.RunInstances(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to run %d %s instances: %w", spec.Count, spec.InstanceType, err)
	}

	instances := make([]types.Instance, 0, len(output.Instances))
	for _, inst := range output.Instances {
		instances = append(instances, toInstance(inst))
	}

	c.logger.WithField("type", spec.InstanceType).WithField("count", len(instances)).Debug("instances launched")
	return instances, nil
}

// StartInstances starts the given instances
func (c *Client) StartInstances(ctx context.Context, ids []types.ResourceHandle) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := c.EC2.StartInstances(ctx, &ec2.StartInstancesInput{
		InstanceIds: types.HandleIDs(ids),
	})
	return err
}

// WaitInstancesRunning blocks until every instance is running
func (c *Client) WaitInstancesRunning(ctx context.Context, ids []types.ResourceHandle, maxWait time.Duration) error {
	if len(ids) == 0 {
		return nil
	}
	waiter := ec2.NewInstanceRunningWaiter(c.EC2)
	return waiter.Wait(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: types.HandleIDs(ids),
	}, maxWait)
}

// DescribeInstances returns the current state of the given instances
func (c *Client) DescribeInstances(ctx context.Context, ids []types.ResourceHandle) ([]types.Instance, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return c.describeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: types.HandleIDs(ids),
	})
}

// ListInstances returns instances matching the filter, excluding terminated ones by default
func (c *Client) ListInstances(ctx context.Context, filter *provider.InstanceFilter) ([]types.Instance, error) {
	if filter == nil {
		filter = &provider.InstanceFilter{}
	}

	states := filter.States
	if len(states) == 0 {
		states = nonTerminatedStates
	}

	filters := []ec2types.Filter{
		{
			Name:   aws.String("instance-state-name"),
			Values: states,
		},
	}

	if filter.Tag != nil {
		filters = append(filters, ec2types.Filter{
			Name:   aws.String("tag:" + filter.Tag.Key),
			Values: []string{filter.Tag.Value},
		})
	}

	return c.describeInstances(ctx, &ec2.DescribeInstancesInput{Filters: filters})
}

func (c *Client) describeInstances(ctx context.Context, input *ec2.DescribeInstancesInput) ([]types.Instance, error) {
	var instances []types.Instance

	paginator := ec2.NewDescribeInstancesPaginator(c.EC2, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, reservation := range page.Reservations {
			for _, inst := range reservation.Instances {
				instances = append(instances, toInstance(inst))
			}
		}
	}

	return instances, nil
}

// TerminateInstances terminates every given instance in a single call
func (c *Client) TerminateInstances(ctx context.Context, ids []types.ResourceHandle) provider.Result {
	h := types.NewHandle(types.KindInstance, fmt.Sprintf("%d instances", len(ids)))
	if len(ids) == 0 {
		return provider.Deleted(h)
	}
	_, err := c.EC2.TerminateInstances(ctx, &ec2.TerminateInstancesInput{
		InstanceIds: types.HandleIDs(ids),
	})
	return deleteResult(h, err)
}

// toInstance converts an EC2 Instance to our Instance type
func toInstance(i ec2types.Instance) types.Instance {
	inst := types.Instance{
		ID:        deref(i.InstanceId),
		Type:      string(i.InstanceType),
		PrivateIP: deref(i.PrivateIpAddress),
		PublicIP:  deref(i.PublicIpAddress),
	}

	if i.State != nil {
		inst.State = string(i.State.Name)
	}

	if i.Placement != nil {
		inst.AZ = deref(i.Placement.AvailabilityZone)
	}

	if i.LaunchTime != nil {
		inst.LaunchTime = *i.LaunchTime
	}

	tags := fromEC2Tags(i.Tags)
	inst.Name = tags["Name"]
	inst.RunID = tags[RunTagKey]

	return inst
}
