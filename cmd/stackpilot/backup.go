package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create and verify a backup of all stateful components",
	Long: `Backup dumps the database, snapshots the cache, mirrors the
object store and copies the stack configuration into one compressed,
verified archive. Archives older than the retention window are removed
after every run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := buildWiring()
		if err != nil {
			return err
		}
		defer w.close()

		record, err := w.engine.Create(cmd.Context())
		if err != nil {
			return err
		}
		if err := w.catalog.Put(record); err != nil {
			return err
		}

		fmt.Printf("✓ Backup %s created (%s)\n", record.ID, humanize.Bytes(uint64(record.Size)))
		fmt.Printf("  %s\n", record.Path)
		for _, warn := range record.Warnings() {
			fmt.Printf("  ! %s: %s\n", warn.Kind, warn.Status)
		}
		return nil
	},
}

var listBackupsCmd = &cobra.Command{
	Use:   "list-backups",
	Short: "List cataloged backups",
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := buildWiring()
		if err != nil {
			return err
		}
		defer w.close()

		records, err := w.catalog.List()
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No backups cataloged.")
			return nil
		}

		for _, r := range records {
			status := "verified"
			if !r.Verified {
				status = "UNVERIFIED"
			}
			fmt.Printf("%s  %-10s  %8s  %s\n",
				r.ID, status, humanize.Bytes(uint64(r.Size)), r.Path)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listBackupsCmd)
}
