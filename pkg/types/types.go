package types

import (
	"sort"
	"time"
)

// HealthState represents the observed state of a managed service
type HealthState string

const (
	HealthRunningHealthy   HealthState = "running-healthy"
	HealthRunningUnhealthy HealthState = "running-unhealthy"
	HealthStarting         HealthState = "starting"
	HealthStopped          HealthState = "stopped"
	HealthUnknown          HealthState = "unknown"
)

// CheckStrategy defines how a service's health is probed
type CheckStrategy string

const (
	// CheckReadiness runs the service's own readiness command inside its
	// container (e.g. pg_isready)
	CheckReadiness CheckStrategy = "readiness"

	// CheckPing runs a lightweight round-trip command (e.g. redis-cli ping)
	CheckPing CheckStrategy = "ping"

	// CheckHTTP performs a GET against a well-known health path
	CheckHTTP CheckStrategy = "http"
)

// HealthCheck describes the probe for one service
type HealthCheck struct {
	Strategy CheckStrategy `koanf:"strategy" yaml:"strategy"`

	// Command is the in-container command for readiness and ping checks
	Command []string `koanf:"command" yaml:"command,omitempty"`

	// URL is the health endpoint for HTTP checks
	URL string `koanf:"url" yaml:"url,omitempty"`
}

// ServiceDescriptor identifies one managed unit of the deployment.
// Descriptors are defined at configuration time and shared read-only.
type ServiceDescriptor struct {
	// Name is the compose service name, unique within the stack
	Name string `koanf:"name" yaml:"name"`

	// Rank defines restart order; lower ranks restart first
	Rank int `koanf:"rank" yaml:"rank"`

	Check HealthCheck `koanf:"check" yaml:"check"`

	// ProbeTimeout bounds a single probe attempt
	ProbeTimeout time.Duration `koanf:"probe_timeout" yaml:"probe_timeout"`

	// RestartTimeout bounds the total wait for the service to become
	// healthy after a recreate
	RestartTimeout time.Duration `koanf:"restart_timeout" yaml:"restart_timeout"`
}

// SortByRank returns a copy of services ordered by dependency rank.
// Order is stable for equal ranks.
func SortByRank(services []ServiceDescriptor) []ServiceDescriptor {
	out := make([]ServiceDescriptor, len(services))
	copy(out, services)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out
}

// ComponentKind identifies one stateful component inside a backup
type ComponentKind string

const (
	ComponentDatabase    ComponentKind = "database"
	ComponentCache       ComponentKind = "cache"
	ComponentObjectStore ComponentKind = "objectstore"
	ComponentConfig      ComponentKind = "config"
)

// ComponentStatus records how completely a component was captured
type ComponentStatus string

const (
	// ComponentOK means the component was captured in full
	ComponentOK ComponentStatus = "ok"

	// ComponentEmpty means the component existed but held no data;
	// recorded as a warning, does not invalidate the backup
	ComponentEmpty ComponentStatus = "empty"

	// ComponentMissing means the component's artifact could not be
	// collected; recorded as a warning for recoverable components
	ComponentMissing ComponentStatus = "missing"
)

// BackupComponent summarizes one component inside a BackupRecord
type BackupComponent struct {
	Kind   ComponentKind   `json:"kind" yaml:"kind"`
	Status ComponentStatus `json:"status" yaml:"status"`
	Files  int             `json:"files" yaml:"files"`
	Bytes  int64           `json:"bytes" yaml:"bytes"`
}

// BackupRecord describes one materialized backup archive.
// A record is valid for restore only when Verified is true.
type BackupRecord struct {
	// ID is the sortable timestamp identifier (YYYYMMDD-HHMMSS, UTC)
	ID string `json:"id" yaml:"id"`

	// Path is the absolute path of the compressed archive
	Path string `json:"path" yaml:"path"`

	CreatedAt  time.Time         `json:"created_at" yaml:"created_at"`
	Size       int64             `json:"size" yaml:"size"`
	Components []BackupComponent `json:"components" yaml:"components"`

	// Verified is set once the archive listing has been checked against
	// the manifest. Unverified records must never be offered for restore.
	Verified bool `json:"verified" yaml:"verified"`
}

// Warnings returns the components that were not captured in full
func (r *BackupRecord) Warnings() []BackupComponent {
	var warn []BackupComponent
	for _, c := range r.Components {
		if c.Status != ComponentOK {
			warn = append(warn, c)
		}
	}
	return warn
}

// AttemptStatus tracks the lifecycle of one deployment attempt
type AttemptStatus string

const (
	AttemptPending    AttemptStatus = "pending"
	AttemptRunning    AttemptStatus = "running"
	AttemptSucceeded  AttemptStatus = "succeeded"
	AttemptFailed     AttemptStatus = "failed"
	AttemptRolledBack AttemptStatus = "rolled-back"
)

// DeploymentAttempt is the transient, in-memory state of one rolling
// restart run. It is created when the restart starts and discarded when
// the run ends; it is never persisted.
type DeploymentAttempt struct {
	ID       string
	Services []ServiceDescriptor
	Index    int
	Status   AttemptStatus

	// FailedService and Waited are set when a service never reached
	// running-healthy within its bounded wait
	FailedService string
	Waited        time.Duration

	StartedAt  time.Time
	FinishedAt time.Time
}
