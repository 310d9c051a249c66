package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spektasoft/spekta-cli/agentloop"
)

// previewLines is how much of a tool result is echoed to the terminal.
const previewLines = 4

// Printer renders session events as they arrive.
type Printer struct {
	out io.Writer

	mu          sync.Mutex
	inReasoning bool
	inText      bool
}

// NewPrinter creates a Printer writing to out.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

var _ agentloop.EventSink = (*Printer)(nil)

// Emit renders one event.
func (p *Printer) Emit(ev agentloop.SessionEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.Kind {
	case agentloop.EventSessionStart:
		model, _ := ev.Data["model"].(string)
		resumed, _ := ev.Data["resumed"].(bool)
		verb := "Session"
		if resumed {
			verb = "Resumed session"
		}
		fmt.Fprintf(p.out, "%s %s %s\n", titleStyle.Render("spekta"), dimStyle.Render(verb+" "+ev.SessionID), dimStyle.Render("("+model+")"))

	case agentloop.EventAssistantTextStart:
		p.inReasoning, p.inText = false, false

	case agentloop.EventReasoningDelta:
		if !p.inReasoning {
			fmt.Fprintln(p.out, dimStyle.Render("thinking…"))
			p.inReasoning = true
		}
		fmt.Fprint(p.out, reasoningStyle.Render(ev.Str("delta")))

	case agentloop.EventAssistantTextDelta:
		if p.inReasoning && !p.inText {
			fmt.Fprint(p.out, "\n\n")
		}
		p.inText = true
		fmt.Fprint(p.out, ev.Str("delta"))

	case agentloop.EventAssistantTextEnd:
		fmt.Fprint(p.out, "\n")
		if interrupted, _ := ev.Data["interrupted"].(bool); interrupted {
			fmt.Fprintln(p.out, warningStyle.Render("[interrupted]"))
		}
		fmt.Fprintln(p.out)

	case agentloop.EventToolProposal:
		calls, _ := ev.Data["calls"].([]string)
		fmt.Fprintln(p.out, titleStyle.Render(fmt.Sprintf("Proposed %d action(s):", len(calls))))
		for _, c := range calls {
			fmt.Fprintf(p.out, "  • %s\n", c)
		}

	case agentloop.EventToolCallEnd:
		mark := successStyle.Render("✓")
		if ev.Str("status") != "ok" {
			mark = errorStyle.Render("✗")
		}
		fmt.Fprintf(p.out, "%s %s\n", mark, ev.Str("summary"))
		if preview := previewOf(ev.Str("output"), previewLines); preview != "" {
			fmt.Fprintln(p.out, dimStyle.Render(preview))
		}

	case agentloop.EventInterrupted:
		fmt.Fprint(p.out, warningStyle.Render(" ^C"))

	case agentloop.EventTurnLimit, agentloop.EventLoopDetection, agentloop.EventWarning:
		fmt.Fprintln(p.out, warningStyle.Render("! "+ev.Str("message")))

	case agentloop.EventError:
		fmt.Fprintln(p.out, errorStyle.Render("error: "+ev.Str("error")))

	case agentloop.EventSessionEnd:
		fmt.Fprintln(p.out, dimStyle.Render("Session "+ev.SessionID+" saved."))
	}
}

// Info prints a plain status line.
func (p *Printer) Info(format string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, dimStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error line.
func (p *Printer) Error(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, errorStyle.Render("error: "+err.Error()))
}

func previewOf(s string, n int) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return indent(lines)
	}
	return indent(append(lines[:n:n], fmt.Sprintf("… %d more line(s)", len(lines)-n)))
}

func indent(lines []string) string {
	for i, l := range lines {
		lines[i] = "    " + l
	}
	return strings.Join(lines, "\n")
}
