package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// CommandInvocation is the state of one SSM command on one instance
type CommandInvocation struct {
	Status string
	Stdout string
	Stderr string
}

// Done reports whether the invocation reached a terminal state
func (ci CommandInvocation) Done() bool {
	switch ssmtypes.CommandInvocationStatus(ci.Status) {
	case ssmtypes.CommandInvocationStatusSuccess,
		ssmtypes.CommandInvocationStatusFailed,
		ssmtypes.CommandInvocationStatusCancelled,
		ssmtypes.CommandInvocationStatusTimedOut:
		return true
	}
	return false
}

// Succeeded reports whether the invocation finished successfully
func (ci CommandInvocation) Succeeded() bool {
	return ssmtypes.CommandInvocationStatus(ci.Status) == ssmtypes.CommandInvocationStatusSuccess
}

// SendShellCommand runs commands on an instance with the AWS-RunShellScript document
func (c *Client) SendShellCommand(ctx context.Context, instanceID string, commands []string) (string, error) {
	output, err := c.SSM.SendCommand(ctx, &ssm.SendCommandInput{
		DocumentName: aws.String("AWS-RunShellScript"),
		InstanceIds:  []string{instanceID},
		Parameters: map[string][]string{
			"commands": commands,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to send command to %s: %w", instanceID, err)
	}
	if output.Command == nil {
		return "", fmt.Errorf("send command to %s returned no command", instanceID)
	}
	return deref(output.Command.CommandId), nil
}

// GetCommandInvocation returns the state of a sent command
func (c *Client) GetCommandInvocation(ctx context.Context, commandID, instanceID string) (*CommandInvocation, error) {
	output, err := c.SSM.GetCommandInvocation(ctx, &ssm.GetCommandInvocationInput{
		CommandId:  aws.String(commandID),
		InstanceId: aws.String(instanceID),
	})
	if err != nil {
		return nil, err
	}
	return &CommandInvocation{
		Status: string(output.Status),
		Stdout: deref(output.StandardOutputContent),
		Stderr: deref(output.StandardErrorContent),
	}, nil
}

// InstanceOnline reports whether the SSM agent on the instance is connected
func (c *Client) InstanceOnline(ctx context.Context, instanceID string) (bool, error) {
	output, err := c.SSM.DescribeInstanceInformation(ctx, &ssm.DescribeInstanceInformationInput{
		Filters: []ssmtypes.InstanceInformationStringFilter{
			{
				Key:    aws.String("InstanceIds"),
				Values: []string{instanceID},
			},
		},
	})
	if err != nil {
		return false, err
	}
	for _, info := range output.InstanceInformationList {
		if deref(info.InstanceId) == instanceID && info.PingStatus == ssmtypes.PingStatusOnline {
			return true, nil
		}
	}
	return false, nil
}
