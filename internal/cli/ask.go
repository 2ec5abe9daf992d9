package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/erg0nix/chatdesk/internal/bridge"
	"github.com/erg0nix/chatdesk/internal/session"
)

func newAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <prompt>",
		Short: "Send one prompt through the daemon",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAskCmd,
	}
	cmd.Flags().String("model", "", "model for a new session")
	return cmd
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show usage of the active session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDaemon(cmd, func(a *App, conv *conversation) error {
				result, err := conv.info(cmd.Context())
				if err != nil {
					return reportFailure(cmd, "info failed", err)
				}
				newPrinter(cmd.OutOrStdout()).info(a.SessionName, result.Info)
				return nil
			})
		},
	}
}

func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Archive the current conversation and start a new one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDaemon(cmd, func(_ *App, conv *conversation) error {
				result, err := conv.reset(cmd.Context())
				if err != nil {
					return reportFailure(cmd, "reset failed", err)
				}
				newPrinter(cmd.OutOrStdout()).archived(result.SessionInfo)
				return nil
			})
		},
	}
}

func newSystemCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "system <message>",
		Short: "Replace the system message; the current conversation is archived",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))

			return withDaemon(cmd, func(_ *App, conv *conversation) error {
				result, err := conv.changeSystemMessage(cmd.Context(), text)
				if err != nil {
					return reportFailure(cmd, "change system message failed", err)
				}

				p := newPrinter(cmd.OutOrStdout())
				p.archived(result.SessionInfo)
				p.line(styleSuccess.Render("system message set") + " " + styleDim.Render(truncate(result.SystemMessage, 60)))
				return nil
			})
		},
	}
}

func runAskCmd(cmd *cobra.Command, args []string) error {
	prompt := strings.TrimSpace(strings.Join(args, " "))
	if prompt == "" {
		return fmt.Errorf("prompt is required")
	}

	return withDaemon(cmd, func(_ *App, conv *conversation) error {
		result, err := conv.ask(cmd.Context(), prompt)
		if err != nil {
			return reportFailure(cmd, "prompt failed", err)
		}
		newPrinter(cmd.OutOrStdout()).result(result)
		return nil
	})
}

func withDaemon(cmd *cobra.Command, fn func(*App, *conversation) error) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	client, err := dialServer(cmd.Context(), cmd, a.ServerAddr)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := saveActiveSession(a.Config.DataDir, a.SessionName); err != nil {
		slog.Warn("failed to save active session", "error", err)
	}

	return fn(a, newConversation(cmd, a, client))
}

func newConversation(cmd *cobra.Command, a *App, client bridgeClient) *conversation {
	model, _ := cmd.Flags().GetString("model")
	return &conversation{
		client: client,
		store:  a.Store,
		name:   a.SessionName,
		setup:  bridge.SetupRequest{Version: model},
	}
}

// reportFailure prints the error with a hint for the kinds a user can act on.
func reportFailure(cmd *cobra.Command, msg string, err error) error {
	var hints []string
	switch {
	case session.IsContextExceeded(err):
		hints = append(hints, "start a new conversation with: chatdesk reset")
	case session.IsConfiguration(err):
		hints = append(hints, "set OPENAI_API_KEY or add it to the dotenv file named in the config")
	case session.IsDeserialization(err):
		hints = append(hints, "the stored session is unreadable; remove it with: chatdesk sessions rm <name>")
	}

	fmt.Fprintln(cmd.ErrOrStderr(), styledError(msg+": "+err.Error(), hints...))
	return reportedError{err}
}

type reportedError struct{ error }

func (e reportedError) Unwrap() error { return e.error }

// Reported reports whether err was already printed by the command that
// returned it.
func Reported(err error) bool {
	var reported reportedError
	return errors.As(err, &reported)
}
