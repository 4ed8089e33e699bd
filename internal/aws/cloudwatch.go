package aws

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	pkgtypes "github.com/vietdv277/clusterbench/pkg/types"
)

// GetSeries returns the datapoints of one metric statistic, sorted by timestamp
func (c *Client) GetSeries(ctx context.Context, q pkgtypes.MetricQuery) (pkgtypes.Series, error) {
	input := &cloudwatch.GetMetricStatisticsInput{
		Namespace:  aws.String(q.Namespace),
		MetricName: aws.String(q.Metric),
		StartTime:  aws.Time(q.Start),
		EndTime:    aws.Time(q.End),
		Period:     aws.Int32(int32(q.Period.Seconds())),
		Statistics: []cwtypes.Statistic{cwtypes.Statistic(q.Statistic)},
	}
	for _, name := range sortedDimensionNames(q.Dimensions) {
		input.Dimensions = append(input.Dimensions, cwtypes.Dimension{
			Name:  aws.String(name),
			Value: aws.String(q.Dimensions[name]),
		})
	}

	output, err := c.CloudWatch.GetMetricStatistics(ctx, input)
	if err != nil {
		return pkgtypes.Series{}, fmt.Errorf("failed to get %s/%s: %w", q.Namespace, q.Metric, err)
	}

	series := pkgtypes.Series{
		Label:     deref(output.Label),
		Metric:    q.Metric,
		Statistic: q.Statistic,
	}
	for _, dp := range output.Datapoints {
		series.Datapoints = append(series.Datapoints, toDatapoint(dp, cwtypes.Statistic(q.Statistic)))
	}
	sort.Slice(series.Datapoints, func(i, j int) bool {
		return series.Datapoints[i].Timestamp.Before(series.Datapoints[j].Timestamp)
	})

	return series, nil
}

// LoadBalancerDimension returns the CloudWatch LoadBalancer dimension value (app/name/id) for an ARN
func LoadBalancerDimension(arn string) string {
	const marker = ":loadbalancer/"
	if i := strings.Index(arn, marker); i >= 0 {
		return arn[i+len(marker):]
	}
	return arn
}

// TargetGroupDimension returns the CloudWatch TargetGroup dimension value (targetgroup/name/id) for an ARN
func TargetGroupDimension(arn string) string {
	if i := strings.LastIndex(arn, ":"); i >= 0 {
		return arn[i+1:]
	}
	return arn
}

func sortedDimensionNames(dims map[string]string) []string {
	names := make([]string, 0, len(dims))
	for k := range dims {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func toDatapoint(dp cwtypes.Datapoint, stat cwtypes.Statistic) pkgtypes.Datapoint {
	out := pkgtypes.Datapoint{Unit: string(dp.Unit)}
	if dp.Timestamp != nil {
		out.Timestamp = *dp.Timestamp
	}

	var v *float64
	switch stat {
	case cwtypes.StatisticSum:
		v = dp.Sum
	case cwtypes.StatisticMaximum:
		v = dp.Maximum
	case cwtypes.StatisticMinimum:
		v = dp.Minimum
	case cwtypes.StatisticSampleCount:
		v = dp.SampleCount
	default:
		v = dp.Average
	}
	if v != nil {
		out.Value = *v
	}
	return out
}
