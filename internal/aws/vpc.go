package aws

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/vietdv277/clusterbench/pkg/provider"
	pkgtypes "github.com/vietdv277/clusterbench/pkg/types"
)

// ListVPCs returns all VPCs
func (c *Client) ListVPCs(ctx context.Context) ([]pkgtypes.VPC, error) {
	output, err := c.EC2.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{})
	if err != nil {
		return nil, err
	}

	var vpcs []pkgtypes.VPC
	for _, v := range output.Vpcs {
		vpcs = append(vpcs, toVPC(v))
	}

	return vpcs, nil
}

// DefaultVPC returns the region's default VPC
func (c *Client) DefaultVPC(ctx context.Context) (*pkgtypes.VPC, error) {
	output, err := c.EC2.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{
		Filters: []ec2types.Filter{
			{
				Name:   aws.String("isDefault"),
				Values: []string{"true"},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe VPCs: %w", err)
	}

	if len(output.Vpcs) == 0 {
		return nil, fmt.Errorf("%w: %s", provider.ErrNoDefaultVPC, c.region)
	}

	vpc := toVPC(output.Vpcs[0])
	return &vpc, nil
}

// ListSubnets returns the subnets of a VPC sorted by availability zone, or every subnet when vpcID is empty
func (c *Client) ListSubnets(ctx context.Context, vpcID string) ([]pkgtypes.Subnet, error) {
	input := &ec2.DescribeSubnetsInput{}

	if vpcID != "" {
		input.Filters = []ec2types.Filter{
			{
				Name:   aws.String("vpc-id"),
				Values: []string{vpcID},
			},
		}
	}

	output, err := c.EC2.DescribeSubnets(ctx, input)
	if err != nil {
		return nil, err
	}

	var subnets []pkgtypes.Subnet
	for _, s := range output.Subnets {
		subnets = append(subnets, toSubnet(s))
	}
	sort.SliceStable(subnets, func(i, j int) bool { return subnets[i].AZ < subnets[j].AZ })

	return subnets, nil
}

// toVPC converts an EC2 VPC to our VPC type
func toVPC(v ec2types.Vpc) pkgtypes.VPC {
	return pkgtypes.VPC{
		ID:        deref(v.VpcId),
		Name:      fromEC2Tags(v.Tags)["Name"],
		CIDR:      deref(v.CidrBlock),
		State:     string(v.State),
		IsDefault: derefBool(v.IsDefault),
		OwnerID:   deref(v.OwnerId),
	}
}

// toSubnet converts an EC2 Subnet to our Subnet type
func toSubnet(s ec2types.Subnet) pkgtypes.Subnet {
	return pkgtypes.Subnet{
		ID:           deref(s.SubnetId),
		Name:         fromEC2Tags(s.Tags)["Name"],
		VPCID:        deref(s.VpcId),
		CIDR:         deref(s.CidrBlock),
		AZ:           deref(s.AvailabilityZone),
		AvailableIPs: int(derefInt32(s.AvailableIpAddressCount)),
		State:        string(s.State),
		Public:       derefBool(s.MapPublicIpOnLaunch),
	}
}
