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

const volumeAvailableWait = 5 * time.Minute

// CreateVolume creates an EBS volume and waits until it is available
func (c *Client) CreateVolume(ctx context.Context, spec provider.VolumeSpec) (*types.Volume, error) {
	volumeType := spec.Type
	if volumeType == "" {
		volumeType = string(ec2types.VolumeTypeGp3)
	}

	output, err := c.EC2.CreateVolume(ctx, &ec2.CreateVolumeInput{
		AvailabilityZone:  aws.String(spec.AZ),
		Size:              aws.Int32(int32(spec.SizeGiB)),
		VolumeType:        ec2types.VolumeType(volumeType),
		TagSpecifications: ec2TagSpec(ec2types.ResourceTypeVolume, spec.Tags),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create volume in %s: %w", spec.AZ, err)
	}

	volumeID := deref(output.VolumeId)
	waiter := ec2.NewVolumeAvailableWaiter(c.EC2)
	if err := waiter.Wait(ctx, &ec2.DescribeVolumesInput{VolumeIds: []string{volumeID}}, volumeAvailableWait); err != nil {
		return nil, fmt.Errorf("volume %s never became available: %w", volumeID, err)
	}

	return c.DescribeVolume(ctx, types.NewHandle(types.KindVolume, volumeID))
}

// AttachVolume requests attachment; callers poll DescribeVolume for completion
func (c *Client) AttachVolume(ctx context.Context, volume, instance types.ResourceHandle, device string) error {
	_, err := c.EC2.AttachVolume(ctx, &ec2.AttachVolumeInput{
		VolumeId:   aws.String(volume.ID()),
		InstanceId: aws.String(instance.ID()),
		Device:     aws.String(device),
	})
	return err
}

// DescribeVolume returns the current state of a volume
func (c *Client) DescribeVolume(ctx context.Context, volume types.ResourceHandle) (*types.Volume, error) {
	output, err := c.EC2.DescribeVolumes(ctx, &ec2.DescribeVolumesInput{
		VolumeIds: []string{volume.ID()},
	})
	if err != nil {
		return nil, err
	}
	if len(output.Volumes) == 0 {
		return nil, fmt.Errorf("volume %s: %w", volume.ID(), provider.ErrNotFound)
	}

	v := toVolume(output.Volumes[0])
	return &v, nil
}

// SetDeleteOnTermination marks the volume on device for deletion with its instance
func (c *Client) SetDeleteOnTermination(ctx context.Context, instance types.ResourceHandle, device string) error {
	_, err := c.EC2.ModifyInstanceAttribute(ctx, &ec2.ModifyInstanceAttributeInput{
		InstanceId: aws.String(instance.ID()),
		BlockDeviceMappings: []ec2types.InstanceBlockDeviceMappingSpecification{
			{
				DeviceName: aws.String(device),
				Ebs: &ec2types.EbsInstanceBlockDeviceSpecification{
					DeleteOnTermination: aws.Bool(true),
				},
			},
		},
	})
	return err
}

func toVolume(v ec2types.Volume) types.Volume {
	vol := types.Volume{
		ID:      deref(v.VolumeId),
		AZ:      deref(v.AvailabilityZone),
		SizeGiB: int(derefInt32(v.Size)),
		Type:    string(v.VolumeType),
		State:   string(v.State),
	}

	for _, a := range v.Attachments {
		vol.InstanceID = deref(a.InstanceId)
		vol.Device = deref(a.Device)
		vol.Attached = a.State == ec2types.VolumeAttachmentStateAttached
	}

	return vol
}
