package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/dbsnap/internal/domain"
)

// newRestoreCmd creates the restore command.
func newRestoreCmd(r *root) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "restore <instance> <backup_file_path>",
		Short: "Replace an instance's database with a backup",
		Long: `Load <backup_file_path> into the database of a container.

The current database directory is deleted before the load. This needs
confirmation unless -f is given.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			instance, artifact := args[0], args[1]

			if !force {
				msg := fmt.Sprintf("Restoring deletes the current database of %s and replaces it with %s. Continue?", instance, artifact)
				if err := confirm(r.prompter, msg); err != nil {
					return err
				}
			}

			backend, cleanup, err := r.backend(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := backend.Restore(cmd.Context(), domain.RestoreRequest{
				Instance:     instance,
				ArtifactPath: artifact,
				Confirmed:    true,
			})
			if result != nil {
				if printErr := printRestoreResult(cmd.OutOrStdout(), result); printErr != nil {
					return printErr
				}
			}
			return err
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Restore without asking")
	return cmd
}
