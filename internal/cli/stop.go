package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/erg0nix/chatdesk/internal/app"
	"github.com/erg0nix/chatdesk/internal/rpc"
)

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the chatdesk daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			stopServer(cmd, a)
			return nil
		},
	}
}

// stopServer asks the daemon to shut down and falls back to SIGTERM on the
// recorded pid when the rpc is not answered.
func stopServer(cmd *cobra.Command, a *App) {
	out := cmd.OutOrStdout()

	client, err := rpc.Dial(a.ServerAddr)
	if err == nil {
		defer client.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()

		if _, err := client.Shutdown(ctx); err == nil {
			fmt.Fprintln(out, styleSuccess.Render("stopped chatdesk server"))
			return
		}
	}

	signalled, err := app.Terminate(app.PIDFile(a.Config.DataDir))
	switch {
	case err != nil:
		fmt.Fprintln(out, styleError.Render("chatdesk server: "+err.Error()))
	case signalled:
		fmt.Fprintln(out, styleSuccess.Render("sent SIGTERM to chatdesk server"))
	default:
		fmt.Fprintln(out, styleDim.Render("chatdesk server not running"))
	}
}
