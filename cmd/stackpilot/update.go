package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/stackpilot/stackpilot/pkg/orchestrator"
	"github.com/stackpilot/stackpilot/pkg/prompt"
	"github.com/stackpilot/stackpilot/pkg/types"
)

var updateYes bool

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update the stack to the latest images",
	Long: `Update runs the full deployment pipeline: pre-update backup,
image pull, migrations, serial health-gated restart and verification.

When a phase after the backup fails, the newest verified backup is
printed as the rollback candidate; restoring it is the separate
'restore' command.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !updateYes {
			ok, err := prompt.Confirm("Update the stack now?")
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Update aborted.")
				return nil
			}
		}

		w, err := buildWiring()
		if err != nil {
			return err
		}
		defer w.close()

		summary, err := w.orchestrator().Update(cmd.Context())
		printSummary(summary)

		if types.IsDeclined(err) {
			fmt.Println("Update aborted by operator.")
			return nil
		}
		return err
	},
}

func init() {
	updateCmd.Flags().BoolVarP(&updateYes, "yes", "y", false, "skip the confirmation prompt")
}

func printSummary(s *orchestrator.Summary) {
	if s == nil {
		return
	}

	fmt.Println("Update phases:")
	for _, p := range s.Phases {
		marker := "✓"
		switch p.Status {
		case orchestrator.PhaseFailed:
			marker = "✗"
		case orchestrator.PhaseWarning:
			marker = "!"
		}
		fmt.Printf("  %s %-16s %s", marker, p.Name, p.Duration.Round(10*time.Millisecond))
		if p.Err != nil {
			fmt.Printf("  (%v)", p.Err)
		}
		fmt.Println()
	}

	if s.Backup != nil {
		fmt.Printf("Backup: %s (%s)\n", s.Backup.ID, s.Backup.Path)
	}
	if s.RollbackCandidate != nil {
		fmt.Fprintf(os.Stderr, "Rollback candidate: %s\n", s.RollbackCandidate.ID)
		fmt.Fprintf(os.Stderr, "Run 'stackpilot restore %s' to roll back.\n", s.RollbackCandidate.ID)
	}
}
