package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/erg0nix/chatdesk/internal/bridge"
	"github.com/erg0nix/chatdesk/internal/session"
)

const chatHelp = "/new archives the conversation, /system <text> replaces the system message, /info shows usage, /quit exits"

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat in this process, without the daemon",
		Args:  cobra.NoArgs,
		RunE:  runChatCmd,
	}
	cmd.Flags().String("model", "", "model for a new session")
	return cmd
}

func runChatCmd(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	// Engine logs go to a file so they do not interleave with the transcript.
	logger, closeLog := chatLogger(a.Config.DataDir)
	defer closeLog()

	svc := bridge.NewService(a.Config)
	svc.Logger = logger

	if err := saveActiveSession(a.Config.DataDir, a.SessionName); err != nil {
		logger.Warn("failed to save active session", "error", err)
	}

	conv := newConversation(cmd, a, localClient{svc: svc})
	return runChat(cmd.Context(), cmd.InOrStdin(), newPrinter(cmd.OutOrStdout()), conv)
}

func chatLogger(dataDir string) (*slog.Logger, func()) {
	if err := os.MkdirAll(dataDir, 0o755); err == nil {
		f, err := os.OpenFile(filepath.Join(dataDir, "chat.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			return slog.New(slog.NewTextHandler(f, nil)), func() { f.Close() }
		}
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}
}

// runChat reads one line at a time until /quit or end of input. Failures are
// printed and the loop continues from the last stored snapshot.
func runChat(ctx context.Context, in io.Reader, p *printer, conv *conversation) error {
	snap, err := conv.current(ctx)
	if err != nil {
		p.line(styledError("could not start a session: "+err.Error(), chatFailureHints(err)...))
		return reportedError{err}
	}

	p.line(stylePrompt.Render("chatdesk") + " " + styleDim.Render(fmt.Sprintf("%s, session %q", snap.Version, conv.name)))
	p.line(styleDim.Render(chatHelp))

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for {
		fmt.Fprint(p.out, stylePrompt.Render("> "))
		if !scanner.Scan() {
			p.line("")
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		command, rest, _ := strings.Cut(line, " ")
		switch command {
		case "/quit", "/exit":
			return nil
		case "/help":
			p.line(styleDim.Render(chatHelp))
		case "/new":
			result, err := conv.reset(ctx)
			if err != nil {
				p.line(styledError("reset failed: "+err.Error(), chatFailureHints(err)...))
				continue
			}
			p.archived(result.SessionInfo)
		case "/system":
			text := strings.TrimSpace(rest)
			if text == "" {
				p.line(styleWarning.Render("usage: /system <text>"))
				continue
			}
			result, err := conv.changeSystemMessage(ctx, text)
			if err != nil {
				p.line(styledError("change system message failed: "+err.Error(), chatFailureHints(err)...))
				continue
			}
			p.archived(result.SessionInfo)
			p.line(styleSuccess.Render("system message set"))
		case "/info":
			result, err := conv.info(ctx)
			if err != nil {
				p.line(styledError("info failed: "+err.Error(), chatFailureHints(err)...))
				continue
			}
			p.info(conv.name, result.Info)
		default:
			result, err := conv.ask(ctx, line)
			if err != nil {
				p.line(styledError("prompt failed: "+err.Error(), chatFailureHints(err)...))
				continue
			}
			p.result(result)
		}
	}
}

func chatFailureHints(err error) []string {
	switch {
	case session.IsContextExceeded(err):
		return []string{"type /new to start a new conversation"}
	case session.IsConfiguration(err):
		return []string{"set OPENAI_API_KEY or add it to the dotenv file named in the config"}
	default:
		return nil
	}
}
