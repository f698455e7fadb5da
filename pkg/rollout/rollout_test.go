package rollout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackpilot/stackpilot/pkg/types"
)

type fakeRecreater struct {
	recreated []string
	failOn    string
}

func (f *fakeRecreater) ForceRecreate(ctx context.Context, service string) error {
	f.recreated = append(f.recreated, service)
	if service == f.failOn {
		return errors.New("no such image")
	}
	return nil
}

// scriptedProber returns stopped for a fixed number of polls per
// service before turning healthy; services listed in neverHealthy stay
// down forever.
type scriptedProber struct {
	warmupPolls  int
	polls        map[string]int
	neverHealthy map[string]bool
}

func newScriptedProber(warmupPolls int, neverHealthy ...string) *scriptedProber {
	never := make(map[string]bool, len(neverHealthy))
	for _, name := range neverHealthy {
		never[name] = true
	}
	return &scriptedProber{
		warmupPolls:  warmupPolls,
		polls:        make(map[string]int),
		neverHealthy: never,
	}
}

func (p *scriptedProber) Probe(ctx context.Context, svc types.ServiceDescriptor) types.HealthState {
	p.polls[svc.Name]++
	if p.neverHealthy[svc.Name] {
		return types.HealthStarting
	}
	if p.polls[svc.Name] <= p.warmupPolls {
		return types.HealthStopped
	}
	return types.HealthRunningHealthy
}

func testServices() []types.ServiceDescriptor {
	return []types.ServiceDescriptor{
		{Name: "postgres", Rank: 10, RestartTimeout: 200 * time.Millisecond},
		{Name: "redis", Rank: 20, RestartTimeout: 200 * time.Millisecond},
		{Name: "idp-server", Rank: 40, RestartTimeout: 200 * time.Millisecond},
		{Name: "proxy", Rank: 60, RestartTimeout: 200 * time.Millisecond},
	}
}

func newTestEngine(compose Recreater, prober Prober) *Engine {
	return NewEngine(compose, prober, zerolog.Nop()).
		WithTimings(10*time.Millisecond, 200*time.Millisecond, time.Millisecond)
}

func TestRestartAllHealthy(t *testing.T) {
	compose := &fakeRecreater{}
	engine := newTestEngine(compose, newScriptedProber(2))

	attempt, err := engine.Restart(context.Background(), testServices())
	require.NoError(t, err)

	assert.Equal(t, types.AttemptSucceeded, attempt.Status)
	assert.Equal(t, []string{"postgres", "redis", "idp-server", "proxy"}, compose.recreated)
	assert.Empty(t, attempt.FailedService)
	assert.NotEmpty(t, attempt.ID)
}

func TestRestartStopsAtUnhealthyService(t *testing.T) {
	compose := &fakeRecreater{}
	prober := newScriptedProber(0, "idp-server")
	engine := newTestEngine(compose, prober)

	attempt, err := engine.Restart(context.Background(), testServices())
	require.Error(t, err)

	// Service 3 failed, service 4 was never touched
	assert.Equal(t, types.AttemptFailed, attempt.Status)
	assert.Equal(t, "idp-server", attempt.FailedService)
	assert.Equal(t, []string{"postgres", "redis", "idp-server"}, compose.recreated)
	assert.Zero(t, prober.polls["proxy"])

	// Timeouts report distinctly from command failures
	assert.Equal(t, types.KindTimeout, types.KindOf(err))
	assert.Greater(t, attempt.Waited, time.Duration(0))
}

func TestRestartRecreateFailure(t *testing.T) {
	compose := &fakeRecreater{failOn: "redis"}
	engine := newTestEngine(compose, newScriptedProber(0))

	attempt, err := engine.Restart(context.Background(), testServices())
	require.Error(t, err)

	assert.Equal(t, types.AttemptFailed, attempt.Status)
	assert.Equal(t, "redis", attempt.FailedService)
	assert.Equal(t, types.KindExternalCommand, types.KindOf(err))
	assert.Equal(t, []string{"postgres", "redis"}, compose.recreated)
}

func TestRestartHonorsRankOrder(t *testing.T) {
	compose := &fakeRecreater{}
	engine := newTestEngine(compose, newScriptedProber(0))

	// Declared out of order on purpose
	services := []types.ServiceDescriptor{
		{Name: "proxy", Rank: 60, RestartTimeout: 100 * time.Millisecond},
		{Name: "postgres", Rank: 10, RestartTimeout: 100 * time.Millisecond},
	}

	_, err := engine.Restart(context.Background(), services)
	require.NoError(t, err)
	assert.Equal(t, []string{"postgres", "proxy"}, compose.recreated)
}

func TestRestartCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	compose := &fakeRecreater{}
	engine := newTestEngine(compose, newScriptedProber(100, "postgres"))

	attempt, err := engine.Restart(ctx, testServices())
	require.Error(t, err)
	assert.Equal(t, types.AttemptFailed, attempt.Status)
}
