// Package healthgate blocks until every target of a target group reports healthy,
// or a bounded polling budget is spent.
package healthgate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vietdv277/clusterbench/internal/logging"
	"github.com/vietdv277/clusterbench/internal/retry"
	"github.com/vietdv277/clusterbench/pkg/types"
)

var (
	// ErrInvalidBudget is returned for a non-positive attempt count or interval
	ErrInvalidBudget = errors.New("invalid health polling budget")

	// ErrNoSnapshot is returned when every poll failed to read target health
	ErrNoSnapshot = errors.New("no health snapshot could be read")

	errNotReady = errors.New("targets not healthy")
)

// Status is the terminal state of one await
type Status string

const (
	StatusReady    Status = "ready"
	StatusTimedOut Status = "timed-out"
)

// SnapshotSource reads target health
type SnapshotSource interface {
	DescribeTargetHealth(ctx context.Context, tg types.ResourceHandle) (types.HealthSnapshot, error)
}

// Result describes how an await ended
type Result struct {
	Status   Status
	Snapshot types.HealthSnapshot // last snapshot read, zero if none
	Attempts int
	LastErr  error // last read error, if any
}

// Ready reports whether every target was healthy
func (r Result) Ready() bool {
	return r.Status == StatusReady
}

// Gate polls a SnapshotSource. It never changes target group membership.
type Gate struct {
	source  SnapshotSource
	retrier *retry.Retrier
	logger  *logging.Logger
}

// Option configures a Gate
type Option func(*Gate)

// WithRetrier replaces the default retrier
func WithRetrier(r *retry.Retrier) Option {
	return func(g *Gate) {
		g.retrier = r
	}
}

// WithLogger sets the logger
func WithLogger(l *logging.Logger) Option {
	return func(g *Gate) {
		g.logger = l
	}
}

// New creates a Gate reading from source
func New(source SnapshotSource, opts ...Option) *Gate {
	g := &Gate{
		source:  source,
		retrier: retry.New(),
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AwaitHealthy polls tg up to maxAttempts times, interval apart, and returns Ready on the first
// snapshot where every target is healthy. An empty group is ready on the first poll.
// Running out of attempts yields TimedOut with a nil error, unless no poll ever succeeded,
// in which case the error wraps ErrNoSnapshot and the last read error.
func (g *Gate) AwaitHealthy(ctx context.Context, tg types.ResourceHandle, maxAttempts int, interval time.Duration) (Result, error) {
	if maxAttempts <= 0 || interval <= 0 {
		return Result{}, fmt.Errorf("%w: attempts=%d interval=%s", ErrInvalidBudget, maxAttempts, interval)
	}

	log := g.logger.Phase("health").WithField("target_group", tg.ID())

	var (
		res     Result
		haveAny bool
	)

	attempts, err := g.retrier.Do(ctx, retry.Policy{Attempts: maxAttempts, Delay: interval}, func(ctx context.Context, attempt int) error {
		snap, err := g.source.DescribeTargetHealth(ctx, tg)
		if err != nil {
			res.LastErr = err
			log.WithError(err).WithField("attempt", attempt).Warn("failed to read target health")
			return err
		}
		res.Snapshot = snap
		haveAny = true

		if snap.AllHealthy() {
			return nil
		}
		log.WithFields(logrus.Fields{
			"attempt":   attempt,
			"targets":   len(snap.Targets),
			"healthy":   snap.Count(types.HealthHealthy),
			"unhealthy": len(snap.NotHealthy()),
		}).Info("waiting for targets to become healthy")
		return errNotReady
	})
	res.Attempts = attempts

	switch {
	case err == nil:
		res.Status = StatusReady
		log.WithField("attempts", attempts).Info("all targets healthy")
		return res, nil
	case ctx.Err() != nil:
		return res, ctx.Err()
	case !errors.Is(err, retry.ErrExhausted):
		return res, err
	}

	res.Status = StatusTimedOut
	log.WithField("attempts", attempts).Warn("health polling budget exhausted")
	if !haveAny {
		return res, fmt.Errorf("%w: %w", ErrNoSnapshot, res.LastErr)
	}
	return res, nil
}
