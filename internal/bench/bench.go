// Package bench runs the load test from an instance against the load balancer.
package bench

import (
	"bufio"
	"context"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/vietdv277/clusterbench/internal/logging"
	"github.com/vietdv277/clusterbench/internal/payload"
	"github.com/vietdv277/clusterbench/pkg/provider"
)

var (
	totalLine   = regexp.MustCompile(`Total time taken: ([0-9.]+) seconds`)
	averageLine = regexp.MustCompile(`Average time per request: ([0-9.]+) seconds`)
	statusLine  = regexp.MustCompile(`^Request \d+: Status Code: (\d+)`)
	failedLine  = regexp.MustCompile(`^Request \d+: Failed`)
)

// Options for one benchmark run
type Options struct {
	URL        string
	Requests   int
	ScriptPath string
}

// Result summarizes a benchmark run parsed from the script output
type Result struct {
	Host     string        `yaml:"host"`
	URL      string        `yaml:"url"`
	Requests int           `yaml:"requests"`
	Statuses map[int]int   `yaml:"statuses"`
	Failures int           `yaml:"failures"`
	Total    time.Duration `yaml:"total"`
	Average  time.Duration `yaml:"average"`
	Output   string        `yaml:"-"`
}

// Runner uploads and runs the benchmark script through a RemoteExecutor
type Runner struct {
	exec   provider.RemoteExecutor
	logger *logging.Logger
}

// NewRunner creates a Runner
func NewRunner(exec provider.RemoteExecutor, logger *logging.Logger) *Runner {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Runner{exec: exec, logger: logger}
}

// Run renders the script, uploads it to host and executes it
func (r *Runner) Run(ctx context.Context, host provider.Host, opts Options) (*Result, error) {
	script, err := payload.RenderBenchmark(payload.Benchmark{URL: opts.URL, Requests: opts.Requests})
	if err != nil {
		return nil, err
	}

	log := r.logger.Phase("benchmark").WithField("instance", host.InstanceID)
	log.WithField("url", opts.URL).WithField("requests", opts.Requests).Info("starting benchmark")

	if err := r.exec.Upload(ctx, host, script, opts.ScriptPath, nil); err != nil {
		return nil, err
	}

	output, err := r.exec.Run(ctx, host, payload.BenchmarkCommands(path.Dir(opts.ScriptPath), opts.ScriptPath))
	if err != nil {
		return nil, fmt.Errorf("benchmark failed on %s: %w", host.InstanceID, err)
	}

	res, err := Parse(output)
	if err != nil {
		return nil, err
	}
	res.Host = host.InstanceID
	res.URL = opts.URL
	res.Requests = opts.Requests

	log.WithField("total", res.Total).WithField("average", res.Average).
		WithField("failures", res.Failures).Info("benchmark finished")
	return res, nil
}

// Parse extracts timings and per-status counts from the script output
func Parse(output string) (*Result, error) {
	res := &Result{Statuses: map[int]int{}, Output: output}
	foundTotal := false

	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case statusLine.MatchString(line):
			code, _ := strconv.Atoi(statusLine.FindStringSubmatch(line)[1])
			res.Statuses[code]++
		case failedLine.MatchString(line):
			res.Failures++
		case totalLine.MatchString(line):
			res.Total = seconds(totalLine.FindStringSubmatch(line)[1])
			foundTotal = true
		case averageLine.MatchString(line):
			res.Average = seconds(averageLine.FindStringSubmatch(line)[1])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read benchmark output: %w", err)
	}
	if !foundTotal {
		return nil, fmt.Errorf("benchmark output has no total time")
	}
	return res, nil
}

func seconds(s string) time.Duration {
	d, err := time.ParseDuration(s + "s")
	if err != nil {
		return 0
	}
	return d
}
