package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stackpilot/stackpilot/pkg/install"
	"github.com/stackpilot/stackpilot/pkg/log"
	"github.com/stackpilot/stackpilot/pkg/migrate"
)

var installDomain string

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the stack from scratch",
	Long: `Install brings the stack from a bare host to fully running:
prerequisite checks, secret generation, domain configuration, image
pull, staged startup, migrations, bucket creation and portal bootstrap.

Every step detects prior completion and skips, so install can be re-run
safely after a partial failure.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := buildWiring()
		if err != nil {
			return err
		}
		defer w.close()

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
	installCmd.Flags().StringVar(&installDomain, "domain", "", "public domain of the identity provider (required on first install)")
}
