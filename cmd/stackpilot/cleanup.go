package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/stackpilot/stackpilot/pkg/install"
	"github.com/stackpilot/stackpilot/pkg/log"
	"github.com/stackpilot/stackpilot/pkg/migrate"
	"github.com/stackpilot/stackpilot/pkg/prompt"
	"github.com/stackpilot/stackpilot/pkg/types"
)

const cleanupPhrase = "delete everything"

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove the stack, its volumes and generated configuration",
	Long: `Cleanup stops and removes all containers, deletes the
persistent data volumes and removes generated secrets and domain
configuration. Backups under the backup root are kept.

This is destructive and cannot be undone; the operator must type the
confirmation phrase exactly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := buildWiring()
		if err != nil {
			return err
		}
		defer w.close()

		if err := confirmCleanup(); err != nil {
			if types.IsDeclined(err) {
				fmt.Println("Cleanup aborted.")
				return nil
			}
			return err
		}

		if err := runCleanup(cmd.Context(), w); err != nil {
			return err
		}
		fmt.Println("✓ Stack removed")
		return nil
	},
}

var reinstallCmd = &cobra.Command{
	Use:   "reinstall",
	Short: "Cleanup followed by a fresh install",
	Long: `Reinstall tears the stack down, including data volumes and
generated secrets, then installs from scratch. Backups are kept, so a
verified archive can be restored into the fresh stack afterwards.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := buildWiring()
		if err != nil {
			return err
		}
		defer w.close()

		if err := confirmCleanup(); err != nil {
			if types.IsDeclined(err) {
				fmt.Println("Reinstall aborted.")
				return nil
			}
			return err
		}

		if err := runCleanup(cmd.Context(), w); err != nil {
			return err
		}
		fmt.Println("✓ Stack removed")

		installer := install.New(w.cfg, installDomain, install.Deps{
			Stack:   w.runner,
			Buckets: w.buckets,
			Migrate: migrate.NewRunner(w.runner, migrate.DefaultSteps(), log.WithComponent("migrate")),
			Prober:  w.prober,
		})
		if err := installer.Run(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("✓ Installation complete")
		return nil
	},
}

func init() {
	reinstallCmd.Flags().StringVar(&installDomain, "domain", "", "public domain of the identity provider")
}

func confirmCleanup() error {
	return prompt.ConfirmPhrase(
		"This removes all containers, data volumes and generated secrets.",
		cleanupPhrase)
}

// runCleanup tears the stack down and removes generated artifacts.
// Missing files are fine; cleanup after a partial install still works.
func runCleanup(ctx context.Context, w *wiring) error {
	if err := w.runner.Down(ctx, true); err != nil {
		return err
	}

	generated := []string{
		filepath.Join(w.cfg.StackDir, w.cfg.SecretsFile),
		filepath.Join(w.cfg.StackDir, "conf", "domain.yaml"),
		filepath.Join(w.cfg.StackDir, ".portal-bootstrapped"),
	}
	for _, path := range generated {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	return nil
}
