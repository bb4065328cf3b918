package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var backupForce bool

var backupCmd = &cobra.Command{
	Use:   "backup [project]",
	Short: "Create a backup of a project's record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, cleanup, err := openEngine()
		if err != nil {
			return err
		}
		defer cleanup()

		path, err := e.BackupNow(args[0], backupForce)
		if err != nil {
			return err
		}
		fmt.Printf("backup created: %s\n", path)
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list [project]",
	Short: "List a project's backups, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, cleanup, err := openEngine()
		if err != nil {
			return err
		}
		defer cleanup()

		backups, err := e.Backups.List(args[0])
		if err != nil {
			return err
		}
		if len(backups) == 0 {
			fmt.Println("No backups found.")
			return nil
		}
		for _, b := range backups {
			fmt.Printf("%s  %8s  %s\n", b.Timestamp,
				humanize.Bytes(uint64(b.FileSize)), b.FilePath)
		}
		return nil
	},
}

var restoreProject string

var backupRestoreCmd = &cobra.Command{
	Use:   "restore [backup-path]",
	Short: "Restore a project from a backup file",
	Long:  "Validate and restore a backup over the live record. The project name is derived from the file name unless --project is given.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, cleanup, err := openEngine()
		if err != nil {
			return err
		}
		defer cleanup()

		if err := e.Restore(args[0], restoreProject); err != nil {
			return err
		}
		fmt.Println("restore complete")
		return nil
	},
}

var backupCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove orphaned and corrupted backups",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, cleanup, err := openEngine()
		if err != nil {
			return err
		}
		defer cleanup()

		orphaned, err := e.Backups.CleanupOrphaned()
		if err != nil {
			return err
		}
		corrupted, err := e.Backups.CleanupCorrupted()
		if err != nil {
			return err
		}
		fmt.Printf("removed %d orphaned and %d corrupted backups\n", orphaned, corrupted)
		return nil
	},
}

func init() {
	backupCmd.Flags().BoolVarP(&backupForce, "force", "f", false, "Bypass the backup cooldown")
	backupRestoreCmd.Flags().StringVarP(&restoreProject, "project", "p", "", "Target project (default: derived from file name)")

	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupRestoreCmd)
	backupCmd.AddCommand(backupCleanupCmd)
}
