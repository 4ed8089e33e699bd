package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	elb "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancing"

	"github.com/vietdv277/clusterbench/pkg/provider"
	"github.com/vietdv277/clusterbench/pkg/types"
)

// ListClassicLoadBalancers returns the names of every classic load balancer
func (c *Client) ListClassicLoadBalancers(ctx context.Context) ([]string, error) {
	var names []string

	input := &elb.DescribeLoadBalancersInput{}
	for {
		output, err := c.ELB.DescribeLoadBalancers(ctx, input)
		if err != nil {
			return nil, err
		}
		for _, d := range output.LoadBalancerDescriptions {
			names = append(names, deref(d.LoadBalancerName))
		}
		if output.NextMarker == nil {
			break
		}
		input.Marker = output.NextMarker
	}

	return names, nil
}

// DeleteClassicLoadBalancer deletes a classic load balancer by name
func (c *Client) DeleteClassicLoadBalancer(ctx context.Context, name string) provider.Result {
	_, err := c.ELB.DeleteLoadBalancer(ctx, &elb.DeleteLoadBalancerInput{
		LoadBalancerName: aws.String(name),
	})
	return deleteResult(types.NewHandle(types.KindClassicLoadBalancer, name), err)
}
