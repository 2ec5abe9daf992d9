package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	glamourstyles "github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/x/term"
	"github.com/muesli/termenv"

	"github.com/erg0nix/chatdesk/internal/bridge"
	"github.com/erg0nix/chatdesk/internal/session"
	"github.com/erg0nix/chatdesk/internal/snapshot"
)

type printer struct {
	out io.Writer
	md  *glamour.TermRenderer
}

// newPrinter renders markdown only when out is the terminal.
func newPrinter(out io.Writer) *printer {
	p := &printer{out: out}
	if f, ok := out.(*os.File); ok && term.IsTerminal(f.Fd()) {
		p.md = newMarkdownRenderer(f)
	}
	return p
}

func compactStyle() ansi.StyleConfig {
	var style ansi.StyleConfig
	if termenv.HasDarkBackground() {
		style = glamourstyles.DarkStyleConfig
	} else {
		style = glamourstyles.LightStyleConfig
	}

	zero := uint(0)
	style.Document.Margin = &zero
	style.Document.BlockPrefix = ""
	style.Document.BlockSuffix = ""
	return style
}

func newMarkdownRenderer(f *os.File) *glamour.TermRenderer {
	width, _, err := term.GetSize(f.Fd())
	if err != nil {
		width = 80
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithStyles(compactStyle()),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	return r
}

func (p *printer) line(text string) {
	fmt.Fprintln(p.out, text)
}

func (p *printer) answer(text string) {
	if p.md != nil {
		if rendered, err := p.md.Render(text); err == nil {
			fmt.Fprint(p.out, rendered)
			return
		}
	}
	fmt.Fprintln(p.out, text)
}

func (p *printer) result(result bridge.MessageResult) {
	p.answer(result.Response)
	p.line(finishStyle(result.FinishReason).Render(result.FinishReason) + " " +
		styleDim.Render(fmt.Sprintf("(%.2fs)", result.ResponseTime)))
	p.contextUsage(result.SerializedModel)
}

// contextUsage prints how much of the context budget the session has used.
func (p *printer) contextUsage(snap snapshot.Snapshot) {
	used := 0
	if snap.TotalTokens != nil {
		used = *snap.TotalTokens
	}

	pct := 0
	if snap.MaxContext > 0 {
		pct = used * 100 / snap.MaxContext
	}

	pctStyle := styleDim
	switch {
	case pct >= 100:
		pctStyle = styleError
	case pct > 80:
		pctStyle = styleWarning
	}

	p.line(styleDim.Render("ctx") + " " +
		fmt.Sprintf("%d/%d ", used, snap.MaxContext) +
		pctStyle.Render(fmt.Sprintf("%d%%", pct)) + "  " +
		styleDim.Render(fmt.Sprintf("requests:%d cost:$%.6f", snap.RequestCount, snap.TotalPrice)))
}

func (p *printer) info(name string, info session.Info) {
	t := newTable("FIELD", "VALUE")
	t.Row("session", name)
	t.Row("requests", fmt.Sprintf("%d", info.RequestCount))
	t.Row("input tokens", optionalInt(info.InputTokens))
	t.Row("output tokens", optionalInt(info.OutputTokens))
	t.Row("total tokens", optionalInt(info.TotalTokens))
	t.Row("cost", fmt.Sprintf("$%.6f", info.TotalPrice))
	t.Row("archived sessions", fmt.Sprintf("%d", len(info.Sessions)))
	p.line(t.Render())

	if len(info.Inputs) == 0 {
		p.line(styleDim.Render("no messages in the current session"))
		return
	}

	history := newTable("#", "PROMPT", "FINISH")
	for i, input := range info.Inputs {
		reason := ""
		if i < len(info.FinishReasons) {
			reason = info.FinishReasons[i]
		}
		history.Row(fmt.Sprintf("%d", i+1), truncate(input, 60), finishStyle(reason).Render(reason))
	}
	p.line(history.Render())
}

func (p *printer) archived(archive session.Archive) {
	if archive.RequestCount == 0 {
		p.line(styleDim.Render("archived an empty session"))
		return
	}
	p.line(styleSuccess.Render("archived session") + " " + styleDim.Render(fmt.Sprintf(
		"requests:%d tokens:%s cost:$%.6f", archive.RequestCount, optionalInt(archive.TotalTokens), archive.TotalPrice)))
}

func optionalInt(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len([]rune(s)) <= max {
		return s
	}
	return string([]rune(s)[:max-3]) + "..."
}
