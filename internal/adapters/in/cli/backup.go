package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/dbsnap/internal/domain"
)

// newBackupCmd creates the backup command.
func newBackupCmd(r *root) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "backup <instance> <backup_dir>",
		Short: "Dump an instance's database into a directory",
		Long: `Dump the database of a container into <backup_dir>/<instance>_<YYYYMMDD-HHMMSS>.dump.

A running instance is stopped for the dump and started again afterwards.
Stopping it needs confirmation unless -f is given.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			instance, dir := args[0], args[1]

			backend, cleanup, err := r.backend(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			confirmed := force
			if !confirmed {
				// Only a running instance is disrupted by a backup.
				inst, _, inspectErr := backend.Inspect(ctx, instance)
				if inspectErr == nil && inst.Running {
					msg := fmt.Sprintf("%s is running and will be stopped during the backup. Continue?", inst.Name)
					if err := confirm(r.prompter, msg); err != nil {
						return err
					}
					confirmed = true
				}
			}

			result, err := backend.Backup(ctx, domain.BackupRequest{
				Instance:  instance,
				BackupDir: dir,
				Confirmed: confirmed,
			})
			if result != nil {
				if printErr := printBackupResult(cmd.OutOrStdout(), result); printErr != nil {
					return printErr
				}
			}
			return err
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Stop a running instance without asking")
	return cmd
}
