package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackpilot/stackpilot/pkg/config"
	"github.com/stackpilot/stackpilot/pkg/types"
)

type fakeStack struct {
	pullErr  error
	pruneErr error
	pulled   bool
	pruned   bool
	volumes  []string
}

func (f *fakeStack) Pull(ctx context.Context) error        { f.pulled = true; return f.pullErr }
func (f *fakeStack) PruneImages(ctx context.Context) error { f.pruned = true; return f.pruneErr }
func (f *fakeStack) Logs(ctx context.Context, window time.Duration) (string, error) {
	return "", nil
}
func (f *fakeStack) ListVolumes(ctx context.Context) ([]string, error) {
	return f.volumes, nil
}

type fakeBackup struct {
	record *types.BackupRecord
	err    error
	called bool
}

func (f *fakeBackup) Create(ctx context.Context) (*types.BackupRecord, error) {
	f.called = true
	return f.record, f.err
}

type fakeCatalog struct {
	stored []*types.BackupRecord
	latest *types.BackupRecord
}

func (f *fakeCatalog) Put(record *types.BackupRecord) error {
	f.stored = append(f.stored, record)
	return nil
}

func (f *fakeCatalog) LatestVerified() (*types.BackupRecord, bool, error) {
	return f.latest, f.latest != nil, nil
}

type fakeMigrate struct {
	err    error
	called bool
}

func (f *fakeMigrate) Run(ctx context.Context) error { f.called = true; return f.err }

type fakeRollout struct {
	err    error
	called bool
}

func (f *fakeRollout) Restart(ctx context.Context, services []types.ServiceDescriptor) (*types.DeploymentAttempt, error) {
	f.called = true
	attempt := &types.DeploymentAttempt{ID: "attempt-1", Services: services, Status: types.AttemptSucceeded}
	if f.err != nil {
		attempt.Status = types.AttemptFailed
	}
	return attempt, f.err
}

type fakeProber struct {
	states map[string]types.HealthState
	calls  int
}

func (f *fakeProber) ProbeAll(ctx context.Context, services []types.ServiceDescriptor) map[string]types.HealthState {
	f.calls++
	if f.states != nil {
		return f.states
	}
	out := make(map[string]types.HealthState, len(services))
	for _, svc := range services {
		out[svc.Name] = types.HealthRunningHealthy
	}
	return out
}

type fakeConfirm struct {
	answer bool
	asked  bool
}

func (f *fakeConfirm) Confirm(question string) (bool, error) {
	f.asked = true
	return f.answer, nil
}

type testEnv struct {
	orch    *Orchestrator
	stack   *fakeStack
	backup  *fakeBackup
	catalog *fakeCatalog
	migrate *fakeMigrate
	rollout *fakeRollout
	prober  *fakeProber
	confirm *fakeConfirm
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	cfg := config.Default()
	cfg.StackDir = dir
	cfg.HealthCheck.DiskPath = dir
	cfg.HealthCheck.DiskLimitPercent = 100
	require.NoError(t, os.WriteFile(filepath.Join(dir, cfg.ComposeFile), []byte("services: {}\n"), 0o644))

	env := &testEnv{
		stack:   &fakeStack{volumes: cfg.HealthCheck.ExpectedVolumes},
		backup:  &fakeBackup{record: &types.BackupRecord{ID: "20260829-120000", Verified: true}},
		catalog: &fakeCatalog{},
		migrate: &fakeMigrate{},
		rollout: &fakeRollout{},
		prober:  &fakeProber{},
		confirm: &fakeConfirm{},
	}
	env.orch = New(&cfg, Deps{
		Stack:   env.stack,
		Backup:  env.backup,
		Catalog: env.catalog,
		Migrate: env.migrate,
		Rollout: env.rollout,
		Prober:  env.prober,
		Confirm: env.confirm,
	})
	return env
}

func TestUpdateHappyPath(t *testing.T) {
	env := newTestEnv(t)

	summary, err := env.orch.Update(context.Background())
	require.NoError(t, err)
	assert.False(t, summary.Failed())

	assert.True(t, env.stack.pulled)
	assert.True(t, env.migrate.called)
	assert.True(t, env.rollout.called)
	assert.True(t, env.stack.pruned)

	require.NotNil(t, summary.Backup)
	require.Len(t, env.catalog.stored, 1)
	assert.Nil(t, summary.RollbackCandidate)
	assert.NotNil(t, summary.Attempt)
}

func TestUpdateRestartFailureSurfacesRollbackCandidate(t *testing.T) {
	env := newTestEnv(t)
	env.rollout.err = types.NewTimeoutError("wait for idp-server", errors.New("not healthy after 60s"))
	env.catalog.latest = &types.BackupRecord{ID: "20260828-030000", Verified: true}

	summary, err := env.orch.Update(context.Background())
	require.Error(t, err)
	assert.Equal(t, types.KindTimeout, types.KindOf(err))
	assert.True(t, summary.Failed())

	require.NotNil(t, summary.RollbackCandidate)
	assert.Equal(t, "20260828-030000", summary.RollbackCandidate.ID)

	// The pipeline stops at the failed phase
	assert.Equal(t, 0, env.prober.calls)
	assert.False(t, env.stack.pruned)
}

func TestUpdateBackupFailureDeclined(t *testing.T) {
	env := newTestEnv(t)
	env.backup.err = types.NewIntegrityError("verify archive", errors.New("manifest missing"))
	env.confirm.answer = false

	_, err := env.orch.Update(context.Background())
	require.Error(t, err)
	assert.True(t, types.IsDeclined(err))
	assert.True(t, env.confirm.asked)

	// Nothing past the gate runs
	assert.False(t, env.stack.pulled)
	assert.False(t, env.migrate.called)
}

func TestUpdateBackupFailureAccepted(t *testing.T) {
	env := newTestEnv(t)
	env.backup.err = types.NewIntegrityError("verify archive", errors.New("manifest missing"))
	env.confirm.answer = true

	summary, err := env.orch.Update(context.Background())
	require.NoError(t, err)
	assert.Nil(t, summary.Backup)
	assert.True(t, env.migrate.called)

	var backupPhase *PhaseResult
	for i := range summary.Phases {
		if summary.Phases[i].Name == "backup" {
			backupPhase = &summary.Phases[i]
		}
	}
	require.NotNil(t, backupPhase)
	assert.Equal(t, PhaseWarning, backupPhase.Status)
}

func TestUpdatePreconditionFailureHasNoRollback(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.Remove(filepath.Join(env.orch.cfg.StackDir, env.orch.cfg.ComposeFile)))
	env.catalog.latest = &types.BackupRecord{ID: "20260828-030000", Verified: true}

	summary, err := env.orch.Update(context.Background())
	require.Error(t, err)
	assert.Equal(t, types.KindPrecondition, types.KindOf(err))

	assert.Nil(t, summary.RollbackCandidate)
	assert.False(t, env.backup.called)
}

func TestUpdateVerifyFailure(t *testing.T) {
	env := newTestEnv(t)
	env.prober.states = map[string]types.HealthState{
		"postgres":   types.HealthRunningHealthy,
		"idp-server": types.HealthRunningUnhealthy,
	}
	env.catalog.latest = &types.BackupRecord{ID: "20260828-030000", Verified: true}

	summary, err := env.orch.Update(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "idp-server")
	require.NotNil(t, summary.RollbackCandidate)
	assert.False(t, env.stack.pruned)
}

func TestUpdatePruneFailureIsWarningOnly(t *testing.T) {
	env := newTestEnv(t)
	env.stack.pruneErr = errors.New("daemon busy")

	summary, err := env.orch.Update(context.Background())
	require.NoError(t, err)
	assert.False(t, summary.Failed())
}

func TestVerifyReport(t *testing.T) {
	env := newTestEnv(t)

	r := env.orch.Verify(context.Background())
	assert.True(t, r.Healthy())
	require.Len(t, r.Checks, 3)
}

func TestVerifyReportMissingVolume(t *testing.T) {
	env := newTestEnv(t)
	env.stack.volumes = []string{"idp_postgres_data"}

	r := env.orch.Verify(context.Background())
	assert.False(t, r.Healthy())
}
