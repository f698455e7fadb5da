package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/stackpilot/stackpilot/pkg/types"
)

// ServiceHealth is one service's verdict inside a report
type ServiceHealth struct {
	Name  string
	State types.HealthState
}

// EnvCheck is one auxiliary environment check result
type EnvCheck struct {
	Name   string
	OK     bool
	Detail string
}

// Report aggregates heterogeneous per-service health signals and
// environment checks into a single pass/fail verdict.
type Report struct {
	GeneratedAt time.Time
	Services    []ServiceHealth
	Checks      []EnvCheck
}

// Aggregate builds a report from probe results and environment checks.
// Services are listed alphabetically for stable output.
func Aggregate(results map[string]types.HealthState, checks []EnvCheck) Report {
	services := make([]ServiceHealth, 0, len(results))
	for name, state := range results {
		services = append(services, ServiceHealth{Name: name, State: state})
	}
	sort.Slice(services, func(i, j int) bool { return services[i].Name < services[j].Name })

	return Report{
		GeneratedAt: time.Now().UTC(),
		Services:    services,
		Checks:      checks,
	}
}

// Healthy reports whether every service is running-healthy and every
// environment check passed
func (r Report) Healthy() bool {
	for _, svc := range r.Services {
		if svc.State != types.HealthRunningHealthy {
			return false
		}
	}
	for _, check := range r.Checks {
		if !check.OK {
			return false
		}
	}
	return true
}

// Failures lists the names of unhealthy services and failed checks
func (r Report) Failures() []string {
	var failures []string
	for _, svc := range r.Services {
		if svc.State != types.HealthRunningHealthy {
			failures = append(failures, fmt.Sprintf("%s (%s)", svc.Name, svc.State))
		}
	}
	for _, check := range r.Checks {
		if !check.OK {
			failures = append(failures, check.Name)
		}
	}
	return failures
}

// Render produces the operator-facing text summary
func (r Report) Render() string {
	var sb strings.Builder

	sb.WriteString("Service health:\n")
	for _, svc := range r.Services {
		marker := "✓"
		if svc.State != types.HealthRunningHealthy {
			marker = "✗"
		}
		fmt.Fprintf(&sb, "  %s %-12s %s\n", marker, svc.Name, svc.State)
	}

	if len(r.Checks) > 0 {
		sb.WriteString("Environment:\n")
		for _, check := range r.Checks {
			marker := "✓"
			if !check.OK {
				marker = "✗"
			}
			fmt.Fprintf(&sb, "  %s %-12s %s\n", marker, check.Name, check.Detail)
		}
	}

	if r.Healthy() {
		sb.WriteString("Overall: healthy\n")
	} else {
		fmt.Fprintf(&sb, "Overall: unhealthy (%s)\n", strings.Join(r.Failures(), ", "))
	}
	return sb.String()
}
