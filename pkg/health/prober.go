package health

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/stackpilot/stackpilot/pkg/compose"
	"github.com/stackpilot/stackpilot/pkg/types"
)

// ComposeClient is the slice of the compose runner the prober needs
type ComposeClient interface {
	Exec(ctx context.Context, service string, cmd ...string) (string, error)
	PS(ctx context.Context) ([]compose.ContainerRow, error)
}

// Prober resolves a service descriptor to one of the five health
// states. It performs no retries; bounded retry is the caller's job.
type Prober struct {
	compose ComposeClient
	client  *http.Client
	log     zerolog.Logger
}

// NewProber creates a prober over the given compose client
func NewProber(cc ComposeClient, logger zerolog.Logger) *Prober {
	return &Prober{
		compose: cc,
		client:  &http.Client{},
		log:     logger,
	}
}

// WithHTTPClient overrides the HTTP client used for endpoint checks
func (p *Prober) WithHTTPClient(c *http.Client) *Prober {
	p.client = c
	return p
}

// Probe checks svc using its configured strategy. It never returns an
// error and never blocks past the descriptor's probe timeout plus one
// short state lookup: check failures are classified into
// running-unhealthy, starting, stopped, or unknown from the observed
// container state.
func (p *Prober) Probe(ctx context.Context, svc types.ServiceDescriptor) types.HealthState {
	timeout := svc.ProbeTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var healthy bool
	switch svc.Check.Strategy {
	case types.CheckReadiness:
		_, err := p.compose.Exec(checkCtx, svc.Name, svc.Check.Command...)
		healthy = err == nil
	case types.CheckPing:
		out, err := p.compose.Exec(checkCtx, svc.Name, svc.Check.Command...)
		healthy = err == nil && strings.Contains(strings.ToUpper(out), "PONG")
	case types.CheckHTTP:
		healthy = p.checkHTTP(checkCtx, svc.Check.URL)
	default:
		p.log.Warn().Str("service", svc.Name).
			Str("strategy", string(svc.Check.Strategy)).
			Msg("unknown health check strategy")
		return types.HealthUnknown
	}

	if healthy {
		return types.HealthRunningHealthy
	}
	return p.classify(ctx, svc.Name)
}

func (p *Prober) checkHTTP(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// classify distinguishes a dead service from a live-but-failing one by
// consulting the container state after a failed check.
func (p *Prober) classify(ctx context.Context, service string) types.HealthState {
	psCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := p.compose.PS(psCtx)
	if err != nil {
		p.log.Warn().Err(err).Str("service", service).Msg("container state lookup failed")
		return types.HealthUnknown
	}

	row, ok := compose.FindService(rows, service)
	if !ok {
		return types.HealthStopped
	}

	switch row.State {
	case "running":
		if row.Health == "starting" {
			return types.HealthStarting
		}
		return types.HealthRunningUnhealthy
	case "restarting", "created":
		return types.HealthStarting
	case "exited", "dead", "paused":
		return types.HealthStopped
	default:
		return types.HealthUnknown
	}
}

// ProbeAll probes every descriptor and returns the results keyed by
// service name. Probes run sequentially in rank order.
func (p *Prober) ProbeAll(ctx context.Context, services []types.ServiceDescriptor) map[string]types.HealthState {
	results := make(map[string]types.HealthState, len(services))
	for _, svc := range types.SortByRank(services) {
		results[svc.Name] = p.Probe(ctx, svc)
	}
	return results
}
