package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/erg0nix/chatdesk/internal/snapshot"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List stored sessions",
		Args:  cobra.NoArgs,
		RunE:  runSessionsListCmd,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "use <name>",
		Short: "Make a session the default for later commands",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			if err := saveActiveSession(a.Config.DataDir, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), styleSuccess.Render("active session: "+args[0]))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <name>",
		Short: "Delete a stored session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			if err := a.Store.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), styleSuccess.Render("deleted session: "+args[0]))
			return nil
		},
	})

	return cmd
}

func runSessionsListCmd(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	entries, err := a.Store.List()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, styleDim.Render("No sessions yet."))
		fmt.Fprintln(out, "Start one with "+styleCommand.Render("chatdesk chat"))
		return nil
	}

	fmt.Fprintln(out, sessionsTable(entries, a.SessionName))
	return nil
}

func sessionsTable(entries []snapshot.Entry, active string) string {
	t := newTable("NAME", "MODEL", "REQUESTS", "ARCHIVED", "COST", "MODIFIED")
	for _, e := range entries {
		name := e.Name
		if name == active {
			name = styleActive.Render(name + " *")
		}
		t.Row(name,
			e.Version,
			fmt.Sprintf("%d", e.RequestCount),
			fmt.Sprintf("%d", e.Archived),
			fmt.Sprintf("$%.6f", e.TotalPrice),
			e.ModifiedAt.Format(time.DateTime))
	}
	return t.Render()
}
