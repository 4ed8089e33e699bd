package remote

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/vietdv277/clusterbench/internal/aws"
	"github.com/vietdv277/clusterbench/internal/retry"
	"github.com/vietdv277/clusterbench/internal/retry/retrytest"
	"github.com/vietdv277/clusterbench/pkg/provider"
)

type fakeSSM struct {
	online      []bool
	invocations []*aws.CommandInvocation
	sent        [][]string
	polls       int
}

func (f *fakeSSM) SendShellCommand(_ context.Context, _ string, commands []string) (string, error) {
	f.sent = append(f.sent, commands)
	return "cmd-1", nil
}

func (f *fakeSSM) GetCommandInvocation(_ context.Context, _, _ string) (*aws.CommandInvocation, error) {
	f.polls++
	if f.polls > len(f.invocations) {
		return f.invocations[len(f.invocations)-1], nil
	}
	inv := f.invocations[f.polls-1]
	if inv == nil {
		return nil, errors.New("InvocationDoesNotExist")
	}
	return inv, nil
}

func (f *fakeSSM) InstanceOnline(_ context.Context, _ string) (bool, error) {
	if len(f.online) == 0 {
		return false, nil
	}
	v := f.online[0]
	f.online = f.online[1:]
	return v, nil
}

func newTestSSM(api SSMAPI) *SSMExecutor {
	policy := retry.Policy{Attempts: 5, Delay: time.Second}
	return NewSSMExecutor(api, SSMOptions{
		Reachability: policy,
		Poll:         policy,
		Retrier:      retry.New(retry.WithTimer(retrytest.NewTimer())),
	})
}

var testHost = provider.Host{InstanceID: "i-1", Address: "10.0.0.1"}

func TestSSMRunWaitsForCompletion(t *testing.T) {
	api := &fakeSSM{invocations: []*aws.CommandInvocation{
		nil,
		{Status: "InProgress"},
		{Status: "Success", Stdout: "ok"},
	}}
	e := newTestSSM(api)

	out, err := e.Run(context.Background(), testHost, []string{"echo ok"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out != "ok" {
		t.Errorf("output = %q, want ok", out)
	}
	if api.polls != 3 {
		t.Errorf("polls = %d, want 3", api.polls)
	}
}

func TestSSMRunFailure(t *testing.T) {
	api := &fakeSSM{invocations: []*aws.CommandInvocation{
		{Status: "Failed", Stderr: "boom"},
	}}
	e := newTestSSM(api)

	_, err := e.Run(context.Background(), testHost, []string{"false"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("error %q does not carry stderr", err)
	}
}

func TestSSMRunNeverFinishes(t *testing.T) {
	api := &fakeSSM{invocations: []*aws.CommandInvocation{{Status: "InProgress"}}}
	e := newTestSSM(api)

	_, err := e.Run(context.Background(), testHost, []string{"sleep 1000"})
	if !errors.Is(err, retry.ErrExhausted) {
		t.Fatalf("error = %v, want ErrExhausted", err)
	}
	if api.polls != 5 {
		t.Errorf("polls = %d, want 5", api.polls)
	}
}

func TestSSMWaitReachable(t *testing.T) {
	api := &fakeSSM{online: []bool{false, false, true}}
	e := newTestSSM(api)

	if err := e.WaitReachable(context.Background(), testHost); err != nil {
		t.Fatalf("WaitReachable() error = %v", err)
	}
}

func TestSSMWaitReachableExhausted(t *testing.T) {
	e := newTestSSM(&fakeSSM{})

	err := e.WaitReachable(context.Background(), testHost)
	if !errors.Is(err, retry.ErrExhausted) {
		t.Fatalf("error = %v, want ErrExhausted", err)
	}
}

func TestSSMUpload(t *testing.T) {
	api := &fakeSSM{invocations: []*aws.CommandInvocation{{Status: "Success"}}}
	e := newTestSSM(api)

	var sent, total int64
	err := e.Upload(context.Background(), testHost, []byte("print('hi')\n"), "/home/ubuntu/main.py", func(s, t int64) {
		sent, total = s, t
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if len(api.sent) != 1 || len(api.sent[0]) != 1 {
		t.Fatalf("sent = %v, want one command", api.sent)
	}
	cmd := api.sent[0][0]
	if !strings.HasSuffix(cmd, "| base64 -d > '/home/ubuntu/main.py'") {
		t.Errorf("command = %q", cmd)
	}
	if sent != 12 || total != 12 {
		t.Errorf("progress = %d/%d, want 12/12", sent, total)
	}
}
