package remote

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/vietdv277/clusterbench/internal/aws"
	"github.com/vietdv277/clusterbench/internal/logging"
	"github.com/vietdv277/clusterbench/internal/retry"
	"github.com/vietdv277/clusterbench/pkg/provider"
)

var errNotOnline = errors.New("ssm agent not online")

var errPending = errors.New("command still running")

// SSMAPI is the subset of SSM operations the executor needs
type SSMAPI interface {
	SendShellCommand(ctx context.Context, instanceID string, commands []string) (string, error)
	GetCommandInvocation(ctx context.Context, commandID, instanceID string) (*aws.CommandInvocation, error)
	InstanceOnline(ctx context.Context, instanceID string) (bool, error)
}

// SSMOptions configures an SSMExecutor
type SSMOptions struct {
	Reachability retry.Policy
	Poll         retry.Policy
	Retrier      *retry.Retrier
	Logger       *logging.Logger
}

// SSMExecutor implements provider.RemoteExecutor with SSM Run Command.
// It needs no inbound port, only an instance profile allowing the SSM agent to register.
type SSMExecutor struct {
	api     SSMAPI
	opts    SSMOptions
	retrier *retry.Retrier
	logger  *logging.Logger
}

var _ provider.RemoteExecutor = (*SSMExecutor)(nil)

// NewSSMExecutor creates an SSMExecutor
func NewSSMExecutor(api SSMAPI, opts SSMOptions) *SSMExecutor {
	if opts.Retrier == nil {
		opts.Retrier = retry.New()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &SSMExecutor{api: api, opts: opts, retrier: opts.Retrier, logger: opts.Logger}
}

// WaitReachable polls until the instance's SSM agent is online
func (e *SSMExecutor) WaitReachable(ctx context.Context, host provider.Host) error {
	_, err := e.retrier.Do(ctx, e.opts.Reachability, func(ctx context.Context, attempt int) error {
		online, err := e.api.InstanceOnline(ctx, host.InstanceID)
		if err != nil {
			return err
		}
		if !online {
			return errNotOnline
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("instance %s unreachable over ssm: %w", host.InstanceID, err)
	}
	e.logger.WithField("instance", host.InstanceID).Info("ssm agent online")
	return nil
}

// Run sends all commands as one shell script and waits for it to finish
func (e *SSMExecutor) Run(ctx context.Context, host provider.Host, commands []string) (string, error) {
	commandID, err := e.api.SendShellCommand(ctx, host.InstanceID, commands)
	if err != nil {
		return "", err
	}

	var inv *aws.CommandInvocation
	_, err = e.retrier.Do(ctx, e.opts.Poll, func(ctx context.Context, attempt int) error {
		got, err := e.api.GetCommandInvocation(ctx, commandID, host.InstanceID)
		if err != nil {
			// the invocation is not visible immediately after SendCommand
			return err
		}
		inv = got
		if !got.Done() {
			return errPending
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("command %s on %s did not finish: %w", commandID, host.InstanceID, err)
	}

	if !inv.Succeeded() {
		return inv.Stdout, fmt.Errorf("command %s on %s ended with %s: %s", commandID, host.InstanceID, inv.Status, inv.Stderr)
	}
	return inv.Stdout, nil
}

// Upload writes content through a base64-decoded shell command
func (e *SSMExecutor) Upload(ctx context.Context, host provider.Host, content []byte, remotePath string, progress provider.ProgressFunc) error {
	encoded := base64.StdEncoding.EncodeToString(content)
	cmd := fmt.Sprintf("echo %s | base64 -d > %s", encoded, shellQuote(remotePath))

	if _, err := e.Run(ctx, host, []string{cmd}); err != nil {
		return fmt.Errorf("failed to upload %s to %s: %w", remotePath, host.InstanceID, err)
	}
	if progress != nil {
		progress(int64(len(content)), int64(len(content)))
	}
	return nil
}
