package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bnema/dbsnap/internal/domain"
)

// newInspectCmd creates the inspect command.
func newInspectCmd(r *root) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <instance>",
		Short: "Show an instance's state and data volume",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, cleanup, err := r.backend(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			inst, vol, err := backend.Inspect(cmd.Context(), args[0])
			if inst == nil {
				return err
			}
			if printErr := printInstance(cmd.OutOrStdout(), inst, vol, err); printErr != nil {
				return printErr
			}
			if errors.Is(err, domain.ErrVolumeNotFound) || errors.Is(err, domain.ErrAmbiguousVolume) {
				return err
			}
			return nil
		},
	}
}

// newSessionsCmd creates the sessions command.
func newSessionsCmd(r *root) *cobra.Command {
	var prune bool

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List helper containers left behind by --debug runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			backend, cleanup, err := r.backend(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			out := cmd.OutOrStdout()
			if prune {
				removed, err := backend.PruneSessions(cmd.Context())
				for _, name := range removed {
					if writeErr := cliWriteLine(out, cliRenderSuccess("Removed "+name)); writeErr != nil {
						return writeErr
					}
				}
				return err
			}

			sessions, err := backend.ListSessions(cmd.Context())
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				return cliWriteLine(out, cliRenderMuted("No helper containers found"))
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			if _, err := fmt.Fprintln(w, "NAME\tINSTANCE\tOPERATION\tSTATE\tCREATED"); err != nil {
				return err
			}
			for _, s := range sessions {
				if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					s.Name,
					s.Labels[domain.LabelInstance],
					s.Labels[domain.LabelOperation],
					s.Status,
					s.Labels[domain.LabelCreated],
				); err != nil {
					return err
				}
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&prune, "prune", false, "Remove stopped helper containers")
	return cmd
}

// newVersionCmd creates the version command.
func newVersionCmd(r *root) *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			if short {
				cmd.Println(r.info.Version)
				return
			}
			cmd.Printf("dbsnap %s\n", r.info.Version)
			cmd.Printf("Commit: %s\n", r.info.Commit)
			cmd.Printf("Build Date: %s\n", r.info.Date)
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "Show only version number")
	return cmd
}
