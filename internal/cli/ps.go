package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/erg0nix/chatdesk/internal/app"
	"github.com/erg0nix/chatdesk/internal/rpc"
)

func newPsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ps",
		Short: "Show the daemon status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			t := newTable("NAME", "STATUS", "PID", "GRPC", "HTTP", "UPTIME")
			addServerRow(cmd.Context(), t, a)

			fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			return nil
		},
	}
}

func addServerRow(ctx context.Context, t *table.Table, a *App) {
	pid := app.ReadPID(app.PIDFile(a.Config.DataDir))
	if pid == 0 {
		t.Row("chatdesk", styleError.Render("stopped"), "-", a.ServerAddr, a.Config.HTTPBind, "-")
		return
	}

	uptime := "-"
	httpBind := a.Config.HTTPBind
	client, err := rpc.Dial(a.ServerAddr)
	if err == nil {
		defer client.Close()
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if resp, err := client.Status(ctx); err == nil {
			uptime = (time.Duration(resp.UptimeSeconds) * time.Second).String()
			httpBind = resp.HTTPBind
		}
	}

	t.Row("chatdesk",
		styleSuccess.Render("running"),
		fmt.Sprintf("%d", pid),
		a.ServerAddr,
		httpBind,
		uptime)
}
