// Package cli implements the Cobra command tree for the chatdesk CLI.
package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/erg0nix/chatdesk/internal/app"
	"github.com/erg0nix/chatdesk/internal/config"
	"github.com/erg0nix/chatdesk/internal/rpc"
)

const defaultSessionName = "default"

func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "chatdesk [prompt]",
		Short:         "chatdesk CLI",
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.ArbitraryArgs,
		RunE:          runAskCmd,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to config file")
	rootCmd.PersistentFlags().String("server", "", "daemon address")
	rootCmd.PersistentFlags().StringP("session", "s", "", "snapshot name to use")
	rootCmd.Flags().String("model", "", "model for a new session")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newStopCmd())
	rootCmd.AddCommand(newPsCmd())
	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newAskCmd())
	rootCmd.AddCommand(newInfoCmd())
	rootCmd.AddCommand(newResetCmd())
	rootCmd.AddCommand(newSystemCmd())
	rootCmd.AddCommand(newSessionsCmd())
	rootCmd.AddCommand(newModelsCmd())
	rootCmd.AddCommand(newPriceCmd())

	return rootCmd
}

func loadConfig(path string) (config.Config, error) {
	configPath := path
	if configPath == "" {
		configPath = filepath.Join(config.Default().DataDir, "config.toml")
	}
	return config.LoadOrCreate(configPath)
}

func resolveServer(override string, cfg config.Config) string {
	if override != "" {
		return override
	}
	return clientAddrFromBind(cfg.Bind)
}

func clientAddrFromBind(bind string) string {
	host, port, err := netSplitHostPort(bind)
	if err != nil || port == "" {
		return bind
	}

	if host == "" || host == "0.0.0.0" || host == "::" {
		return "127.0.0.1:" + port
	}
	return bind
}

func netSplitHostPort(addr string) (string, string, error) {
	if strings.HasPrefix(addr, ":") {
		return "", strings.TrimPrefix(addr, ":"), nil
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", "", err
	}
	return host, port, nil
}

func alreadyRunning(dataDir string) bool {
	return app.ReadPID(app.PIDFile(dataDir)) != 0
}

func loadActiveSession(dataDir string) string {
	path := filepath.Join(dataDir, "active_session")
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func saveActiveSession(dataDir string, name string) error {
	if name == "" {
		return nil
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("save active session: mkdir: %w", err)
	}

	path := filepath.Join(dataDir, "active_session")
	if err := os.WriteFile(path, []byte(name), 0o644); err != nil {
		return fmt.Errorf("save active session: %w", err)
	}
	return nil
}

// dialServer connects to the daemon and checks it answers before returning.
func dialServer(ctx context.Context, cmd *cobra.Command, serverAddr string) (*rpc.Client, error) {
	client, err := rpc.Dial(serverAddr)
	if err != nil {
		printServerNotRunning(cmd, serverAddr, err)
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if _, err := client.Status(pingCtx); err != nil {
		client.Close()
		printServerNotRunning(cmd, serverAddr, err)
		return nil, fmt.Errorf("server not reachable at %s", serverAddr)
	}
	return client, nil
}

func printServerNotRunning(cmd *cobra.Command, addr string, err error) {
	out := cmd.ErrOrStderr()
	fmt.Fprintln(out, styleError.Render("server is not running at "+addr))
	fmt.Fprintln(out, "start with: "+styleCommand.Render("chatdesk serve"))
	if err != nil {
		fmt.Fprintln(out, styleDim.Render(err.Error()))
	}
}

func startServer(cmd *cobra.Command, cfg config.Config, configPath string) error {
	if alreadyRunning(cfg.DataDir) {
		fmt.Fprintln(cmd.OutOrStdout(), styleDim.Render("server already running at "+resolveServer("", cfg)))
		return nil
	}

	serverCmd := exec.Command(os.Args[0], "serve", "--foreground", "--bind", cfg.Bind, "--http-bind", cfg.HTTPBind)
	if configPath != "" {
		serverCmd.Args = append(serverCmd.Args, "--config", configPath)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("start server: create data dir: %w", err)
	}

	logFile := filepath.Join(cfg.DataDir, "server.log")
	out, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("start server: open log: %w", err)
	}
	defer out.Close()

	serverCmd.Stdout = out
	serverCmd.Stderr = out

	if err := serverCmd.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(),
		styleSuccess.Render("started server")+" "+
			stylePID.Render(fmt.Sprintf("pid %d", serverCmd.Process.Pid)))
	return nil
}
