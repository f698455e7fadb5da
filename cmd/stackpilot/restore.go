package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stackpilot/stackpilot/pkg/prompt"
	"github.com/stackpilot/stackpilot/pkg/types"
)

var restoreCmd = &cobra.Command{
	Use:   "restore <backup-id>",
	Short: "Restore a verified backup over the running stack",
	Long: `Restore overwrites the database, cache snapshot and object
store contents with the archive's state. Only verified backups are
accepted, and the operator must type the confirmation phrase exactly.

Configuration files inside the archive are extracted for inspection but
never written over the live stack directory.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]

		w, err := buildWiring()
		if err != nil {
			return err
		}
		defer w.close()

		record, err := w.catalog.Get(id)
		if err != nil {
			return err
		}
		if !record.Verified {
			return types.NewIntegrityError("restore "+id,
				fmt.Errorf("backup is not verified and cannot be restored"))
		}

		phrase := "restore " + id
		if err := prompt.ConfirmPhrase(
			fmt.Sprintf("This overwrites all stack data with backup %s.", id), phrase); err != nil {
			if types.IsDeclined(err) {
				fmt.Println("Restore aborted.")
				return nil
			}
			return err
		}

		if err := w.engine.Restore(cmd.Context(), record); err != nil {
			return err
		}

		fmt.Printf("✓ Backup %s restored\n", id)
		fmt.Println("Restart the stack to pick up the restored state: stackpilot update")
		return nil
	},
}
