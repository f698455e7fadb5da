package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/stackpilot/stackpilot/pkg/adminapi"
	"github.com/stackpilot/stackpilot/pkg/backup"
	"github.com/stackpilot/stackpilot/pkg/catalog"
	"github.com/stackpilot/stackpilot/pkg/compose"
	"github.com/stackpilot/stackpilot/pkg/config"
	"github.com/stackpilot/stackpilot/pkg/health"
	"github.com/stackpilot/stackpilot/pkg/log"
	"github.com/stackpilot/stackpilot/pkg/migrate"
	"github.com/stackpilot/stackpilot/pkg/orchestrator"
	"github.com/stackpilot/stackpilot/pkg/prompt"
	"github.com/stackpilot/stackpilot/pkg/rollout"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "stackpilot",
	Short: "Stackpilot - operational controller for the identity-provider stack",
	Long: `Stackpilot installs, updates, backs up and health-checks a
single-host identity-provider deployment running under Docker Compose.

All commands are idempotent where possible and never mutate the stack
without a verified restore path or explicit operator confirmation.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Stackpilot version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "stack config file (built-in defaults when empty)")

	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(healthCheckCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(reinstallCmd)
}

// loadConfig resolves the effective configuration and initializes logging
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if configPath == "" {
		def := config.Default()
		cfg = &def
	} else {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	log.Init(log.Config{
		Level:      log.Level(cfg.Log.Level),
		JSONOutput: cfg.Log.JSON,
	})
	return cfg, nil
}

// wiring bundles the long-lived collaborators built from one config
type wiring struct {
	cfg     *config.Config
	runner  *compose.CLIRunner
	prober  *health.Prober
	engine  *backup.Engine
	catalog *catalog.Catalog
	buckets *adminapi.Client
}

func buildWiring() (*wiring, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	runner := compose.NewCLIRunner(cfg.StackDir, filepath.Join(cfg.StackDir, cfg.ComposeFile), cfg.ProjectName)

	if err := os.MkdirAll(cfg.Backup.Root, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create backup root: %w", err)
	}
	cat, err := catalog.Open(cfg.Backup.Root)
	if err != nil {
		return nil, err
	}

	return &wiring{
		cfg:     cfg,
		runner:  runner,
		prober:  health.NewProber(runner, log.WithComponent("health")),
		engine:  backup.NewEngine(cfg.Backup.Root, cfg.Retention(), backup.TargetsFromConfig(cfg), runner, log.WithComponent("backup")),
		catalog: cat,
		buckets: adminapi.NewClient(runner, cfg.ObjectStore.Service, cfg.ObjectStore.Alias, cfg.ObjectStore.HealthURL),
	}, nil
}

func (w *wiring) close() {
	if err := w.catalog.Close(); err != nil {
		log.Logger.Warn().Err(err).Msg("failed to close backup catalog")
	}
}

func (w *wiring) orchestrator() *orchestrator.Orchestrator {
	roll := rollout.NewEngine(w.runner, w.prober, log.WithComponent("rollout")).
		WithTimings(w.cfg.Rollout.PollInterval, w.cfg.Rollout.DefaultMaxWait, w.cfg.Rollout.SettleDelay)

	return orchestrator.New(w.cfg, orchestrator.Deps{
		Stack:   w.runner,
		Backup:  w.engine,
		Catalog: w.catalog,
		Migrate: migrate.NewRunner(w.runner, migrate.DefaultSteps(), log.WithComponent("migrate")),
		Rollout: roll,
		Prober:  w.prober,
		Confirm: interactiveConfirmer{},
	})
}

// interactiveConfirmer routes pipeline gates through the terminal
type interactiveConfirmer struct{}

func (interactiveConfirmer) Confirm(question string) (bool, error) {
	return prompt.Confirm(question)
}
