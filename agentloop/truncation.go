package agentloop

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/spektasoft/spekta-cli/toolcall"
)

// TruncationMode specifies how output is truncated.
type TruncationMode string

const (
	TruncateHeadTail TruncationMode = "head_tail"
	TruncateTail     TruncationMode = "tail"
)

// DefaultToolCharLimits caps each tool's result before it re-enters the
// conversation.
var DefaultToolCharLimits = map[toolcall.Kind]int{
	toolcall.KindRead:    50000,
	toolcall.KindWrite:   1000,
	toolcall.KindReplace: 10000,
}

var defaultTruncationModes = map[toolcall.Kind]TruncationMode{
	toolcall.KindRead:    TruncateHeadTail,
	toolcall.KindWrite:   TruncateTail,
	toolcall.KindReplace: TruncateTail,
}

// DefaultToolLineLimits applies after character truncation.
var DefaultToolLineLimits = map[toolcall.Kind]int{
	toolcall.KindRead: 2000,
}

// TruncateOutput applies character-based truncation to output. Cut points
// are moved to rune boundaries so the result stays valid UTF-8.
func TruncateOutput(output string, maxChars int, mode TruncationMode) string {
	if len(output) <= maxChars {
		return output
	}

	if mode == TruncateTail {
		start := nextRuneStart(output, len(output)-maxChars)
		return fmt.Sprintf("[WARNING: Output was truncated. First %d characters were removed.]\n\n", start) +
			output[start:]
	}

	half := maxChars / 2
	headEnd := prevRuneStart(output, half)
	tailStart := nextRuneStart(output, len(output)-half)
	return output[:headEnd] +
		fmt.Sprintf("\n\n[WARNING: Output was truncated. %d characters were removed from the middle. "+
			"Read a narrower line range to see them.]\n\n", tailStart-headEnd) +
		output[tailStart:]
}

// prevRuneStart moves i back to the start of the rune containing it.
func prevRuneStart(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// nextRuneStart moves i forward to the start of the next whole rune.
func nextRuneStart(s string, i int) int {
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}

// TruncateLines applies line-based truncation using a head/tail split.
func TruncateLines(output string, maxLines int) string {
	lines := strings.Split(output, "\n")
	if len(lines) <= maxLines {
		return output
	}

	headCount := maxLines / 2
	tailCount := maxLines - headCount
	omitted := len(lines) - headCount - tailCount

	return strings.Join(lines[:headCount], "\n") +
		fmt.Sprintf("\n[... %d lines omitted ...]\n", omitted) +
		strings.Join(lines[len(lines)-tailCount:], "\n")
}

// TruncateToolOutput runs the truncation pipeline for one tool kind:
// characters first, then lines.
func TruncateToolOutput(output string, kind toolcall.Kind) string {
	maxChars, ok := DefaultToolCharLimits[kind]
	if !ok {
		maxChars = 30000
	}
	mode, ok := defaultTruncationModes[kind]
	if !ok {
		mode = TruncateHeadTail
	}

	result := TruncateOutput(output, maxChars, mode)
	if maxLines := DefaultToolLineLimits[kind]; maxLines > 0 {
		result = TruncateLines(result, maxLines)
	}
	return result
}
