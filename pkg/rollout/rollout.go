package rollout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stackpilot/stackpilot/pkg/retry"
	"github.com/stackpilot/stackpilot/pkg/types"
)

// Recreater recreates exactly one service without touching its
// dependencies
type Recreater interface {
	ForceRecreate(ctx context.Context, service string) error
}

// Prober resolves a single service's health
type Prober interface {
	Probe(ctx context.Context, svc types.ServiceDescriptor) types.HealthState
}

// Engine performs health-gated rolling restarts. Services are restarted
// strictly one at a time in dependency-rank order: a store must be
// healthy before its dependents are recreated, and serial execution
// keeps failure attribution unambiguous.
type Engine struct {
	compose Recreater
	prober  Prober
	log     zerolog.Logger

	pollInterval   time.Duration
	defaultMaxWait time.Duration
	settleDelay    time.Duration
}

// NewEngine creates a rolling restart engine
func NewEngine(compose Recreater, prober Prober, logger zerolog.Logger) *Engine {
	return &Engine{
		compose:        compose,
		prober:         prober,
		log:            logger,
		pollInterval:   2 * time.Second,
		defaultMaxWait: 60 * time.Second,
		settleDelay:    3 * time.Second,
	}
}

// WithTimings overrides the poll interval, default max wait, and settle
// delay
func (e *Engine) WithTimings(pollInterval, defaultMaxWait, settleDelay time.Duration) *Engine {
	e.pollInterval = pollInterval
	e.defaultMaxWait = defaultMaxWait
	e.settleDelay = settleDelay
	return e
}

// Restart recreates each service in rank order, blocking on health
// between steps. On the first service that fails to come back healthy
// within its bounded wait, the run stops: remaining services are never
// touched. The returned attempt reflects the terminal state either way.
func (e *Engine) Restart(ctx context.Context, services []types.ServiceDescriptor) (*types.DeploymentAttempt, error) {
	ordered := types.SortByRank(services)
	attempt := &types.DeploymentAttempt{
		ID:        uuid.NewString(),
		Services:  ordered,
		Status:    types.AttemptRunning,
		StartedAt: time.Now(),
	}
	defer func() { attempt.FinishedAt = time.Now() }()

	for i, svc := range ordered {
		attempt.Index = i
		logger := e.log.With().Str("service", svc.Name).Int("position", i+1).Int("of", len(ordered)).Logger()

		logger.Info().Msg("recreating service")
		if err := e.compose.ForceRecreate(ctx, svc.Name); err != nil {
			attempt.Status = types.AttemptFailed
			attempt.FailedService = svc.Name
			return attempt, fmt.Errorf("failed to recreate %s: %w", svc.Name, err)
		}

		outcome := e.waitHealthy(ctx, svc)
		attempt.Waited = outcome.Elapsed

		switch outcome.Result {
		case retry.Succeeded:
			logger.Info().Dur("waited", outcome.Elapsed).Msg("service healthy")
		case retry.TimedOut:
			attempt.Status = types.AttemptFailed
			attempt.FailedService = svc.Name
			return attempt, types.NewTimeoutError(
				fmt.Sprintf("wait for %s", svc.Name),
				fmt.Errorf("not healthy after %s", outcome.Elapsed.Round(time.Second)))
		case retry.Aborted:
			attempt.Status = types.AttemptFailed
			attempt.FailedService = svc.Name
			return attempt, fmt.Errorf("health wait for %s aborted: %w", svc.Name, outcome.Err)
		}

		// Settle before touching the next service so dependents don't
		// reconnect in a thundering herd
		if i < len(ordered)-1 {
			if err := e.settle(ctx); err != nil {
				attempt.Status = types.AttemptFailed
				attempt.FailedService = svc.Name
				return attempt, err
			}
		}
	}

	attempt.Status = types.AttemptSucceeded
	return attempt, nil
}

func (e *Engine) waitHealthy(ctx context.Context, svc types.ServiceDescriptor) retry.Outcome {
	maxWait := svc.RestartTimeout
	if maxWait <= 0 {
		maxWait = e.defaultMaxWait
	}

	return retry.Poll(ctx, e.pollInterval, maxWait, func(ctx context.Context) (bool, error) {
		state := e.prober.Probe(ctx, svc)
		e.log.Debug().Str("service", svc.Name).Str("state", string(state)).Msg("health poll")
		return state == types.HealthRunningHealthy, nil
	})
}

func (e *Engine) settle(ctx context.Context) error {
	if e.settleDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(e.settleDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
