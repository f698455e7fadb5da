package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/stackpilot/stackpilot/pkg/config"
	"github.com/stackpilot/stackpilot/pkg/log"
	"github.com/stackpilot/stackpilot/pkg/report"
	"github.com/stackpilot/stackpilot/pkg/types"
)

// BackupEngine materializes and verifies backups
type BackupEngine interface {
	Create(ctx context.Context) (*types.BackupRecord, error)
}

// CatalogStore persists backup records and answers rollback queries
type CatalogStore interface {
	Put(record *types.BackupRecord) error
	LatestVerified() (*types.BackupRecord, bool, error)
}

// Migrator applies the ordered schema migrations
type Migrator interface {
	Run(ctx context.Context) error
}

// Restarter performs the serial health-gated restart
type Restarter interface {
	Restart(ctx context.Context, services []types.ServiceDescriptor) (*types.DeploymentAttempt, error)
}

// HealthProber probes every managed service
type HealthProber interface {
	ProbeAll(ctx context.Context, services []types.ServiceDescriptor) map[string]types.HealthState
}

// StackRunner is the compose surface the update pipeline drives directly
type StackRunner interface {
	Pull(ctx context.Context) error
	PruneImages(ctx context.Context) error
	Logs(ctx context.Context, window time.Duration) (string, error)
	ListVolumes(ctx context.Context) ([]string, error)
}

// Confirmer gates optional continuation points on operator approval
type Confirmer interface {
	Confirm(question string) (bool, error)
}

// PhaseStatus is the outcome of one update phase
type PhaseStatus string

const (
	PhaseOK      PhaseStatus = "ok"
	PhaseFailed  PhaseStatus = "failed"
	PhaseSkipped PhaseStatus = "skipped"

	// PhaseWarning marks a phase that failed without stopping the update
	PhaseWarning PhaseStatus = "warning"
)

// PhaseResult records one phase of an update run
type PhaseResult struct {
	Name     string
	Status   PhaseStatus
	Err      error
	Duration time.Duration
}

// Summary is the operator-facing outcome of one update run
type Summary struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Phases     []PhaseResult

	Attempt *types.DeploymentAttempt
	Backup  *types.BackupRecord

	// RollbackCandidate is the newest verified backup, surfaced when a
	// phase after the backup fails. Restoring it is a separate,
	// operator-confirmed command; the pipeline never restores on its own.
	RollbackCandidate *types.BackupRecord
}

// Failed reports whether any phase ended in failure
func (s *Summary) Failed() bool {
	for _, p := range s.Phases {
		if p.Status == PhaseFailed {
			return true
		}
	}
	return false
}

// Deps bundles the collaborators of an update run
type Deps struct {
	Stack   StackRunner
	Backup  BackupEngine
	Catalog CatalogStore
	Migrate Migrator
	Rollout Restarter
	Prober  HealthProber
	Confirm Confirmer
}

// Orchestrator sequences the full update pipeline: environment
// validation, backup, image pull, migrations, rolling restart,
// verification and image cleanup.
type Orchestrator struct {
	cfg  *config.Config
	deps Deps
	log  zerolog.Logger
}

func New(cfg *config.Config, deps Deps) *Orchestrator {
	return &Orchestrator{
		cfg:  cfg,
		deps: deps,
		log:  log.WithComponent("orchestrator"),
	}
}

// Update runs the deployment pipeline. The summary is returned even on
// failure so the caller can render what happened and, when a verified
// backup exists, which archive to roll back to.
func (o *Orchestrator) Update(ctx context.Context) (*Summary, error) {
	summary := &Summary{StartedAt: time.Now().UTC()}
	defer func() { summary.FinishedAt = time.Now().UTC() }()

	// Environment problems are precondition failures: nothing has been
	// touched yet, so no rollback candidate applies.
	if err := o.runPhase(summary, "validate-env", func() error {
		return o.validateEnv(ctx)
	}); err != nil {
		return summary, err
	}

	if err := o.backupPhase(ctx, summary); err != nil {
		return summary, err
	}

	if err := o.guardedPhase(ctx, summary, "pull-images", func() error {
		return o.deps.Stack.Pull(ctx)
	}); err != nil {
		return summary, err
	}

	if err := o.guardedPhase(ctx, summary, "migrate", func() error {
		return o.deps.Migrate.Run(ctx)
	}); err != nil {
		return summary, err
	}

	if err := o.guardedPhase(ctx, summary, "rolling-restart", func() error {
		attempt, err := o.deps.Rollout.Restart(ctx, o.cfg.ServicesByRank())
		summary.Attempt = attempt
		return err
	}); err != nil {
		return summary, err
	}

	if err := o.guardedPhase(ctx, summary, "verify", func() error {
		return o.verifyAllHealthy(ctx)
	}); err != nil {
		return summary, err
	}

	// Best effort; a failed prune never fails a finished update
	o.warningPhase(summary, "prune-images", func() error {
		return o.deps.Stack.PruneImages(ctx)
	})

	o.log.Info().Msg("update completed")
	return summary, nil
}

// Verify probes all services and runs the environment checks
func (o *Orchestrator) Verify(ctx context.Context) report.Report {
	results := o.deps.Prober.ProbeAll(ctx, o.cfg.ServicesByRank())

	hc := o.cfg.HealthCheck
	checks := []report.EnvCheck{
		report.DiskUsageCheck(hc.DiskPath, hc.DiskLimitPercent),
		report.VolumesCheck(ctx, o.deps.Stack, hc.ExpectedVolumes),
		report.LogScanCheck(ctx, o.deps.Stack, hc.LogWindow),
	}
	return report.Aggregate(results, checks)
}

func (o *Orchestrator) validateEnv(ctx context.Context) error {
	composePath := filepath.Join(o.cfg.StackDir, o.cfg.ComposeFile)
	if _, err := os.Stat(composePath); err != nil {
		return types.NewPreconditionError("validate environment",
			fmt.Errorf("compose file %s not readable: %w", composePath, err))
	}

	hc := o.cfg.HealthCheck
	if disk := report.DiskUsageCheck(hc.DiskPath, hc.DiskLimitPercent); !disk.OK {
		return types.NewPreconditionError("validate environment",
			fmt.Errorf("disk check failed: %s", disk.Detail))
	}
	return nil
}

// backupPhase creates the pre-update backup. A failed backup does not
// end the run by itself: the operator decides whether to continue
// without a fresh restore point.
func (o *Orchestrator) backupPhase(ctx context.Context, summary *Summary) error {
	start := time.Now()
	record, err := o.deps.Backup.Create(ctx)
	if err == nil {
		summary.Backup = record
		if putErr := o.deps.Catalog.Put(record); putErr != nil {
			o.log.Warn().Err(putErr).Msg("failed to record backup in catalog")
		}
		summary.Phases = append(summary.Phases, PhaseResult{
			Name: "backup", Status: PhaseOK, Duration: time.Since(start),
		})
		return nil
	}

	o.log.Error().Err(err).Msg("backup failed")
	ok, confirmErr := o.deps.Confirm.Confirm("Backup failed. Continue the update without a fresh backup?")
	if confirmErr != nil {
		summary.Phases = append(summary.Phases, PhaseResult{
			Name: "backup", Status: PhaseFailed, Err: confirmErr, Duration: time.Since(start),
		})
		return confirmErr
	}
	if !ok {
		declined := types.NewConfirmationDeclined("continue without backup")
		summary.Phases = append(summary.Phases, PhaseResult{
			Name: "backup", Status: PhaseFailed, Err: declined, Duration: time.Since(start),
		})
		return declined
	}

	summary.Phases = append(summary.Phases, PhaseResult{
		Name: "backup", Status: PhaseWarning, Err: err, Duration: time.Since(start),
	})
	return nil
}

func (o *Orchestrator) verifyAllHealthy(ctx context.Context) error {
	results := o.deps.Prober.ProbeAll(ctx, o.cfg.ServicesByRank())
	r := report.Aggregate(results, nil)
	if !r.Healthy() {
		return fmt.Errorf("services unhealthy after restart: %v", r.Failures())
	}
	return nil
}

// runPhase executes a phase and records its outcome
func (o *Orchestrator) runPhase(summary *Summary, name string, fn func() error) error {
	logger := log.WithPhase(name)
	logger.Info().Msg("phase started")

	start := time.Now()
	err := fn()
	result := PhaseResult{Name: name, Duration: time.Since(start)}
	if err != nil {
		result.Status = PhaseFailed
		result.Err = err
		logger.Error().Err(err).Dur("took", result.Duration).Msg("phase failed")
	} else {
		result.Status = PhaseOK
		logger.Info().Dur("took", result.Duration).Msg("phase completed")
	}
	summary.Phases = append(summary.Phases, result)
	return err
}

// guardedPhase is runPhase plus rollback-candidate selection on failure
func (o *Orchestrator) guardedPhase(ctx context.Context, summary *Summary, name string, fn func() error) error {
	err := o.runPhase(summary, name, fn)
	if err == nil {
		return nil
	}

	candidate, found, catErr := o.deps.Catalog.LatestVerified()
	if catErr != nil {
		o.log.Warn().Err(catErr).Msg("failed to look up rollback candidate")
		return err
	}
	if !found {
		o.log.Warn().Msg("no verified backup available for rollback")
		return err
	}

	summary.RollbackCandidate = candidate
	o.log.Info().
		Str("backup_id", candidate.ID).
		Str("path", candidate.Path).
		Msg("rollback candidate selected")
	return err
}

func (o *Orchestrator) warningPhase(summary *Summary, name string, fn func() error) {
	start := time.Now()
	if err := fn(); err != nil {
		o.log.Warn().Err(err).Str("phase", name).Msg("phase failed, continuing")
		summary.Phases = append(summary.Phases, PhaseResult{
			Name: name, Status: PhaseWarning, Err: err, Duration: time.Since(start),
		})
		return
	}
	summary.Phases = append(summary.Phases, PhaseResult{
		Name: name, Status: PhaseOK, Duration: time.Since(start),
	})
}
