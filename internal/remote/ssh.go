// Package remote runs commands and copies files on instances, over SSH or SSM.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/vietdv277/clusterbench/internal/logging"
	"github.com/vietdv277/clusterbench/internal/retry"
	"github.com/vietdv277/clusterbench/pkg/provider"
)

// SSHOptions configures an SSHExecutor
type SSHOptions struct {
	User           string
	KeyPath        string
	Port           int
	ConnectTimeout time.Duration
	Reachability   retry.Policy
	Retrier        *retry.Retrier
	Logger         *logging.Logger
}

// SSHExecutor implements provider.RemoteExecutor over SSH with key authentication
type SSHExecutor struct {
	opts SSHOptions

	mu     sync.Mutex
	config *ssh.ClientConfig
}

var _ provider.RemoteExecutor = (*SSHExecutor)(nil)

// NewSSHExecutor creates an executor authenticating with the key at opts.KeyPath.
// The key is read on first connection, so it may be written after construction.
func NewSSHExecutor(opts SSHOptions) (*SSHExecutor, error) {
	if opts.KeyPath == "" {
		return nil, errors.New("ssh key path is required")
	}
	return &SSHExecutor{opts: withSSHDefaults(opts)}, nil
}

func newSSHExecutor(key []byte, opts SSHOptions) (*SSHExecutor, error) {
	e := &SSHExecutor{opts: withSSHDefaults(opts)}
	cfg, err := e.buildConfig(key)
	if err != nil {
		return nil, err
	}
	e.config = cfg
	return e, nil
}

func withSSHDefaults(opts SSHOptions) SSHOptions {
	if opts.Port == 0 {
		opts.Port = 22
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	if opts.Retrier == nil {
		opts.Retrier = retry.New()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return opts
}

func (e *SSHExecutor) clientConfig() (*ssh.ClientConfig, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.config != nil {
		return e.config, nil
	}
	key, err := os.ReadFile(e.opts.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}
	cfg, err := e.buildConfig(key)
	if err != nil {
		return nil, err
	}
	e.config = cfg
	return cfg, nil
}

func (e *SSHExecutor) buildConfig(key []byte) (*ssh.ClientConfig, error) {
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return &ssh.ClientConfig{
		User:            e.opts.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		Timeout:         e.opts.ConnectTimeout,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // fresh instances have unknown host keys
	}, nil
}

// WaitReachable dials the host until a session can be established
func (e *SSHExecutor) WaitReachable(ctx context.Context, host provider.Host) error {
	log := e.opts.Logger.WithField("host", host.Address).WithField("instance", host.InstanceID)

	attempts, err := e.opts.Retrier.Do(ctx, e.opts.Reachability, func(ctx context.Context, attempt int) error {
		client, err := e.dial(ctx, host)
		if err != nil {
			log.WithError(err).WithField("attempt", attempt).Debug("ssh not reachable yet")
			return err
		}
		return client.Close()
	})
	if err != nil {
		return fmt.Errorf("host %s unreachable over ssh: %w", host.Address, err)
	}

	log.WithField("attempts", attempts).Info("ssh reachable")
	return nil
}

// Run executes commands one by one, stopping at the first failure
func (e *SSHExecutor) Run(ctx context.Context, host provider.Host, commands []string) (string, error) {
	client, err := e.dial(ctx, host)
	if err != nil {
		return "", err
	}
	defer func() { _ = client.Close() }()

	var out strings.Builder
	for _, cmd := range commands {
		output, err := e.runOne(ctx, client, cmd, nil)
		out.Write(output)
		if err != nil {
			return out.String(), fmt.Errorf("command %q on %s failed: %w", cmd, host.Address, err)
		}
	}
	return out.String(), nil
}

// Upload streams content into remotePath through the session's stdin
func (e *SSHExecutor) Upload(ctx context.Context, host provider.Host, content []byte, remotePath string, progress provider.ProgressFunc) error {
	client, err := e.dial(ctx, host)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	stdin := &progressReader{
		r:        bytes.NewReader(content),
		total:    int64(len(content)),
		progress: progress,
	}
	if _, err := e.runOne(ctx, client, "cat > "+shellQuote(remotePath), stdin); err != nil {
		return fmt.Errorf("failed to upload %s to %s: %w", remotePath, host.Address, err)
	}
	return nil
}

func (e *SSHExecutor) runOne(ctx context.Context, client *ssh.Client, cmd string, stdin io.Reader) ([]byte, error) {
	session, err := client.NewSession()
	if err != nil {
		return nil, err
	}
	defer func() { _ = session.Close() }()

	if stdin != nil {
		session.Stdin = stdin
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-runCtx.Done()
		_ = session.Close()
	}()

	e.opts.Logger.WithField("cmd", cmd).Debug("running remote command")
	return session.CombinedOutput(cmd)
}

func (e *SSHExecutor) dial(ctx context.Context, host provider.Host) (*ssh.Client, error) {
	cfg, err := e.clientConfig()
	if err != nil {
		return nil, err
	}
	addr := net.JoinHostPort(host.Address, strconv.Itoa(e.opts.Port))

	var d net.Dialer
	dialCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	conn, err := d.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return ssh.NewClient(c, chans, reqs), nil
}

// progressReader reports bytes read to a callback
type progressReader struct {
	r        io.Reader
	sent     int64
	total    int64
	progress provider.ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		if p.progress != nil {
			p.progress(p.sent, p.total)
		}
	}
	return n, err
}

// shellQuote wraps s in single quotes for a POSIX shell
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
