package agentloop

import (
	"fmt"
	"strings"

	"github.com/spektasoft/spekta-cli/toolcall"
	"github.com/spektasoft/spekta-cli/unifiedllm"
)

// InterruptMarker is appended to non-empty assistant content cut short by
// the user.
const InterruptMarker = "\n\n[Interrupted by user]"

// interruptNote is recorded as reasoning on every interrupted turn, so an
// empty interrupted reply still says why it is empty.
const interruptNote = "[Response interrupted by user]"

// Result statuses reported back to the model.
const (
	resultOK      = "ok"
	resultError   = "error"
	resultDenied  = "denied"
	resultSkipped = "skipped"
)

// DeniedText is the result of an action the user did not approve.
const DeniedText = "Denied by user."

// SkippedText is the result of an approved action left unrun because the
// user asked to exit.
const SkippedText = "Not run: the session is exiting."

// newAssistantTurn builds the single assistant message recorded for a
// finished or interrupted stream.
func newAssistantTurn(acc *unifiedllm.StreamAccumulator, interrupted bool) unifiedllm.Message {
	content := acc.Content()
	reasoning := acc.Reasoning()
	if interrupted {
		if content != "" {
			content += InterruptMarker
		}
		reasoning = joinSections(reasoning, interruptNote)
	}
	return unifiedllm.AssistantMessage(content, reasoning)
}

// stripInterruptMarker removes the marker so tags before it still parse.
func stripInterruptMarker(content string) string {
	return strings.TrimSuffix(content, InterruptMarker)
}

// formatToolResult renders one call's outcome for the pending buffer.
func formatToolResult(call toolcall.Call, status, body string) string {
	return fmt.Sprintf("<result tool=%q path=%q status=%q>\n%s\n</result>", call.Kind, call.Path, status, body)
}

// joinSections concatenates non-empty parts with a blank line between them.
func joinSections(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}
