package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/vietdv277/clusterbench/pkg/provider"
	"github.com/vietdv277/clusterbench/pkg/types"
)

// EnsureSecurityGroup creates the security group and opens its ingress ports.
// An existing group with the same name in the VPC is reused and reported as AlreadyExists.
func (c *Client) EnsureSecurityGroup(ctx context.Context, spec provider.SecurityGroupSpec) provider.Result {
	log := c.logger.WithField("group", spec.Name).WithField("vpc", spec.VPCID)

	output, err := c.EC2.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
		GroupName:         aws.String(spec.Name),
		Description:       aws.String(spec.Description),
		VpcId:             aws.String(spec.VPCID),
		TagSpecifications: ec2TagSpec(ec2types.ResourceTypeSecurityGroup, spec.Tags),
	})
	if err != nil {
		if !IsAlreadyExists(err) {
			return provider.Failed(Classify(err), types.NewHandle(types.KindSecurityGroup, spec.Name), err)
		}

		groupID, lookupErr := c.findSecurityGroup(ctx, spec.Name, spec.VPCID)
		if lookupErr != nil {
			return provider.Failed(provider.OutcomeOtherError, types.NewHandle(types.KindSecurityGroup, spec.Name), lookupErr)
		}
		log.WithField("group_id", groupID).Info("reusing existing security group")
		return provider.Result{
			Outcome: provider.OutcomeAlreadyExists,
			Handle:  types.NewHandle(types.KindSecurityGroup, groupID),
			Err:     err,
		}
	}

	groupID := deref(output.GroupId)
	h := types.NewHandle(types.KindSecurityGroup, groupID)

	for _, port := range spec.IngressPorts {
		if err := c.addIngressRule(ctx, groupID, port, spec.CIDR); err != nil {
			return provider.Failed(provider.OutcomeOtherError, h, fmt.Errorf("failed to authorize port %d: %w", port, err))
		}
	}

	log.WithField("group_id", groupID).WithField("ports", spec.IngressPorts).Info("security group created")
	return provider.Created(h)
}

func (c *Client) findSecurityGroup(ctx context.Context, name, vpcID string) (string, error) {
	output, err := c.EC2.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("group-name"), Values: []string{name}},
			{Name: aws.String("vpc-id"), Values: []string{vpcID}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to describe security group %s: %w", name, err)
	}
	if len(output.SecurityGroups) == 0 {
		return "", fmt.Errorf("security group %s: %w", name, provider.ErrNotFound)
	}
	return deref(output.SecurityGroups[0].GroupId), nil
}

// addIngressRule opens one TCP port; a rule that already exists is not an error
func (c *Client) addIngressRule(ctx context.Context, groupID string, port int, cidr string) error {
	if cidr == "" {
		cidr = "0.0.0.0/0"
	}
	_, err := c.EC2.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
		GroupId: aws.String(groupID),
		IpPermissions: []ec2types.IpPermission{
			{
				IpProtocol: aws.String("tcp"),
				FromPort:   aws.Int32(int32(port)),
				ToPort:     aws.Int32(int32(port)),
				IpRanges:   []ec2types.IpRange{{CidrIp: aws.String(cidr)}},
			},
		},
	})
	if err != nil && !IsAlreadyExists(err) {
		return err
	}
	return nil
}
