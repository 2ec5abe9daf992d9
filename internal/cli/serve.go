package cli

import (
	"github.com/spf13/cobra"

	"github.com/erg0nix/chatdesk/internal/app"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chatdesk daemon (gRPC and HTTP)",
		RunE:  runServeCmd,
	}

	cmd.Flags().Bool("foreground", false, "run server in foreground")
	cmd.Flags().String("bind", "", "gRPC bind address (overrides config)")
	cmd.Flags().String("http-bind", "", "HTTP bind address (overrides config)")
	cmd.Flags().String("web-dir", "", "directory of static GUI assets (overrides config)")

	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	foreground, _ := cmd.Flags().GetBool("foreground")
	bindOverride, _ := cmd.Flags().GetString("bind")
	httpBindOverride, _ := cmd.Flags().GetString("http-bind")
	webDirOverride, _ := cmd.Flags().GetString("web-dir")

	cfg := a.Config
	if bindOverride != "" {
		cfg.Bind = bindOverride
	}
	if httpBindOverride != "" {
		cfg.HTTPBind = httpBindOverride
	}
	if webDirOverride != "" {
		cfg.WebDir = webDirOverride
	}

	if foreground {
		return app.RunServer(cfg)
	}

	return startServer(cmd, cfg, a.ConfigPath)
}
