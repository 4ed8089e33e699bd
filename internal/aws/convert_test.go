package aws

import (
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	elbv2types "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"

	"github.com/vietdv277/clusterbench/pkg/provider"
	"github.com/vietdv277/clusterbench/pkg/types"
)

func TestToInstanceTags(t *testing.T) {
	inst := toInstance(ec2types.Instance{
		InstanceId:      aws.String("i-123"),
		InstanceType:    ec2types.InstanceTypeT2Micro,
		PublicIpAddress: aws.String("3.3.3.3"),
		State:           &ec2types.InstanceState{Name: ec2types.InstanceStateNameRunning},
		Tags: []ec2types.Tag{
			{Key: aws.String("Name"), Value: aws.String("cluster-t2.micro")},
			{Key: aws.String(RunTagKey), Value: aws.String("run-1")},
		},
	})

	if inst.ID != "i-123" || inst.Name != "cluster-t2.micro" || inst.RunID != "run-1" {
		t.Fatalf("unexpected instance %+v", inst)
	}
	if inst.State != "running" || inst.PublicIP != "3.3.3.3" {
		t.Fatalf("unexpected state or ip %+v", inst)
	}
}

func TestSnapshotFromTargets(t *testing.T) {
	tg := types.NewHandle(types.KindTargetGroup, "arn:tg")
	targets := []types.Target{
		toTarget(elbv2types.TargetHealthDescription{
			Target:       &elbv2types.TargetDescription{Id: aws.String("i-1"), Port: aws.Int32(8000)},
			TargetHealth: &elbv2types.TargetHealth{State: elbv2types.TargetHealthStateEnumHealthy},
		}),
		toTarget(elbv2types.TargetHealthDescription{
			Target: &elbv2types.TargetDescription{Id: aws.String("i-2"), Port: aws.Int32(8000)},
			TargetHealth: &elbv2types.TargetHealth{
				State:  elbv2types.TargetHealthStateEnumUnhealthy,
				Reason: elbv2types.TargetHealthReasonEnumFailedHealthChecks,
			},
		}),
	}

	snap := snapshotOf(tg, targets, time.Unix(0, 0))
	if snap.AllHealthy() {
		t.Fatalf("expected unhealthy snapshot")
	}
	i2 := types.NewHandle(types.KindInstance, "i-2")
	if snap.Targets[i2] != types.HealthUnhealthy {
		t.Fatalf("expected i-2 unhealthy, got %s", snap.Targets[i2])
	}
	if snap.Reasons[i2] != "Target.FailedHealthChecks" {
		t.Fatalf("unexpected reason %q", snap.Reasons[i2])
	}
}

func TestDimensions(t *testing.T) {
	lbARN := "arn:aws:elasticloadbalancing:us-east-1:123456789012:loadbalancer/app/my-load-balancer/50dc6c495c0c9188"
	if got := LoadBalancerDimension(lbARN); got != "app/my-load-balancer/50dc6c495c0c9188" {
		t.Fatalf("unexpected dimension %q", got)
	}
	tgARN := "arn:aws:elasticloadbalancing:us-east-1:123456789012:targetgroup/cluster1/73e2d6bc24d8a067"
	if got := TargetGroupDimension(tgARN); got != "targetgroup/cluster1/73e2d6bc24d8a067" {
		t.Fatalf("unexpected dimension %q", got)
	}
}

func TestEC2TagSpecSorted(t *testing.T) {
	specs := ec2TagSpec(ec2types.ResourceTypeInstance, provider.Tags{"b": "2", "a": "1"})
	if len(specs) != 1 || len(specs[0].Tags) != 2 {
		t.Fatalf("unexpected tag spec %+v", specs)
	}
	if *specs[0].Tags[0].Key != "a" {
		t.Fatalf("expected sorted keys, got %s first", *specs[0].Tags[0].Key)
	}
	if ec2TagSpec(ec2types.ResourceTypeInstance, nil) != nil {
		t.Fatalf("expected no tag spec for empty tags")
	}
}
