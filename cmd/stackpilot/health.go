package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stackpilot/stackpilot/pkg/metrics"
)

var healthTextfile string

var healthCheckCmd = &cobra.Command{
	Use:   "health-check",
	Short: "Probe every service and check the environment",
	Long: `Health-check probes each service with its own strategy
(readiness command, ping, HTTP) and runs the environment checks: disk
usage, expected volumes and a recent error-log scan.

The command exits non-zero when anything is unhealthy, so it can drive
alerting from cron or a systemd timer.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := buildWiring()
		if err != nil {
			return err
		}
		defer w.close()

		report := w.orchestrator().Verify(cmd.Context())
		fmt.Print(report.Render())

		if healthTextfile != "" {
			collector := metrics.NewCollector()
			collector.Record(report)
			if err := collector.WriteTextfile(healthTextfile); err != nil {
				return err
			}
		}

		if !report.Healthy() {
			return fmt.Errorf("stack unhealthy")
		}
		return nil
	},
}

func init() {
	healthCheckCmd.Flags().StringVar(&healthTextfile, "textfile", "", "write Prometheus metrics to this textfile")
}
