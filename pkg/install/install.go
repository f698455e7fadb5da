package install

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/stackpilot/stackpilot/pkg/config"
	"github.com/stackpilot/stackpilot/pkg/log"
	"github.com/stackpilot/stackpilot/pkg/retry"
	"github.com/stackpilot/stackpilot/pkg/types"
)

// infraServices must be healthy before migrations can run
var infraServices = []string{"postgres", "redis", "minio"}

const (
	portalService   = "idp-portal"
	bootstrapMarker = ".portal-bootstrapped"
	domainConfig    = "conf/domain.yaml"
)

// StackRunner is the compose surface the installer drives
type StackRunner interface {
	Pull(ctx context.Context) error
	UpDetached(ctx context.Context, services ...string) error
	RunOneShot(ctx context.Context, service string, cmd ...string) error
}

// BucketEnsurer creates object store buckets idempotently
type BucketEnsurer interface {
	EnsureBucket(ctx context.Context, name string) error
}

// Migrator applies the ordered schema migrations
type Migrator interface {
	Run(ctx context.Context) error
}

// ServiceProber probes one service's health
type ServiceProber interface {
	Probe(ctx context.Context, svc types.ServiceDescriptor) types.HealthState
}

// Deps bundles the installer's collaborators
type Deps struct {
	Stack   StackRunner
	Buckets BucketEnsurer
	Migrate Migrator
	Prober  ServiceProber
}

// Installer brings the stack from a bare host to fully running. Every
// step detects prior completion and skips, so re-running after a partial
// failure finishes the remainder without redoing or overwriting anything.
type Installer struct {
	cfg    *config.Config
	domain string
	deps   Deps
	log    zerolog.Logger

	// lookPath is swapped in tests
	lookPath func(file string) (string, error)
}

func New(cfg *config.Config, domain string, deps Deps) *Installer {
	return &Installer{
		cfg:      cfg,
		domain:   domain,
		deps:     deps,
		log:      log.WithComponent("install"),
		lookPath: exec.LookPath,
	}
}

type step struct {
	name string
	run  func(ctx context.Context) error
}

// Run executes the installation sequence
func (i *Installer) Run(ctx context.Context) error {
	steps := []step{
		{"prerequisites", i.checkPrerequisites},
		{"secrets", i.ensureSecrets},
		{"domain-config", i.ensureDomainConfig},
		{"pull-images", i.deps.Stack.Pull},
		{"infra-up", i.startInfra},
		{"migrate", i.deps.Migrate.Run},
		{"buckets", i.ensureBuckets},
		{"portal-bootstrap", i.bootstrapPortal},
		{"full-up", func(ctx context.Context) error { return i.deps.Stack.UpDetached(ctx) }},
	}

	for _, s := range steps {
		logger := log.WithPhase(s.name)
		logger.Info().Msg("step started")
		start := time.Now()
		if err := s.run(ctx); err != nil {
			logger.Error().Err(err).Msg("step failed")
			return fmt.Errorf("install step %s: %w", s.name, err)
		}
		logger.Info().Dur("took", time.Since(start)).Msg("step completed")
	}

	i.log.Info().Str("domain", i.domain).Msg("installation complete")
	return nil
}

func (i *Installer) checkPrerequisites(ctx context.Context) error {
	if _, err := i.lookPath("docker"); err != nil {
		return types.NewPreconditionError("check prerequisites",
			fmt.Errorf("docker binary not found: %w", err))
	}

	composePath := filepath.Join(i.cfg.StackDir, i.cfg.ComposeFile)
	if _, err := os.Stat(composePath); err != nil {
		return types.NewPreconditionError("check prerequisites",
			fmt.Errorf("compose file %s not readable: %w", composePath, err))
	}
	return nil
}

// ensureSecrets merges generated values into the env file. Keys already
// present are never regenerated; losing an existing database password
// would orphan the data volumes.
func (i *Installer) ensureSecrets(ctx context.Context) error {
	path := filepath.Join(i.cfg.StackDir, i.cfg.SecretsFile)

	secrets, err := config.LoadSecrets(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		secrets = map[string]string{}
	}

	generated := 0
	for _, key := range requiredSecretKeys {
		if _, ok := secrets[key]; ok {
			continue
		}
		value, err := randomToken(32)
		if err != nil {
			return fmt.Errorf("failed to generate secret %s: %w", key, err)
		}
		secrets[key] = value
		generated++
		i.log.Info().Str("key", key).Msg("secret generated")
	}

	if generated == 0 {
		i.log.Debug().Msg("all secrets present, nothing generated")
		return nil
	}
	return config.WriteSecrets(path, secrets)
}

func (i *Installer) ensureDomainConfig(ctx context.Context) error {
	path := filepath.Join(i.cfg.StackDir, domainConfig)
	if _, err := os.Stat(path); err == nil {
		i.log.Debug().Str("path", path).Msg("domain config present, skipping")
		return nil
	}

	if i.domain == "" {
		return types.NewPreconditionError("write domain config",
			fmt.Errorf("no domain configured and %s absent", path))
	}

	doc := map[string]string{
		"domain":     i.domain,
		"issuer_url": fmt.Sprintf("https://%s", i.domain),
		"portal_url": fmt.Sprintf("https://%s/portal", i.domain),
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to render domain config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write domain config: %w", err)
	}
	i.log.Info().Str("domain", i.domain).Msg("domain config written")
	return nil
}

// startInfra brings up the stateful services and waits for each to
// report healthy before migrations touch them
func (i *Installer) startInfra(ctx context.Context) error {
	if err := i.deps.Stack.UpDetached(ctx, infraServices...); err != nil {
		return err
	}

	for _, name := range infraServices {
		svc, ok := i.cfg.Service(name)
		if !ok {
			return types.NewPreconditionError("start infrastructure",
				fmt.Errorf("service %s not configured", name))
		}

		maxWait := svc.RestartTimeout
		if maxWait <= 0 {
			maxWait = i.cfg.Rollout.DefaultMaxWait
		}

		outcome := retry.Poll(ctx, i.cfg.Rollout.PollInterval, maxWait, func(ctx context.Context) (bool, error) {
			return i.deps.Prober.Probe(ctx, svc) == types.HealthRunningHealthy, nil
		})
		switch outcome.Result {
		case retry.Succeeded:
		case retry.TimedOut:
			return types.NewTimeoutError("wait for "+name,
				fmt.Errorf("not healthy after %s", outcome.Elapsed.Round(time.Second)))
		default:
			return fmt.Errorf("wait for %s aborted: %w", name, outcome.Err)
		}
	}
	return nil
}

func (i *Installer) ensureBuckets(ctx context.Context) error {
	for _, bucket := range i.cfg.ObjectStore.Buckets {
		if err := i.deps.Buckets.EnsureBucket(ctx, bucket); err != nil {
			return err
		}
	}
	return nil
}

// bootstrapPortal seeds the portal once; the marker file records
// completion so reinstalls do not re-seed
func (i *Installer) bootstrapPortal(ctx context.Context) error {
	marker := filepath.Join(i.cfg.StackDir, bootstrapMarker)
	if _, err := os.Stat(marker); err == nil {
		i.log.Debug().Msg("portal already bootstrapped, skipping")
		return nil
	}

	if err := i.deps.Stack.RunOneShot(ctx, portalService, "npm", "run", "bootstrap"); err != nil {
		return err
	}

	stamp := time.Now().UTC().Format(time.RFC3339) + "\n"
	if err := os.WriteFile(marker, []byte(stamp), 0o644); err != nil {
		return fmt.Errorf("failed to write bootstrap marker: %w", err)
	}
	return nil
}
