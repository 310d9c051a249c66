package agentloop

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/spektasoft/spekta-cli/toolcall"
	"github.com/spektasoft/spekta-cli/unifiedllm"
)

func TestDetectLoop(t *testing.T) {
	tests := []struct {
		name   string
		sigs   []string
		window int
		want   bool
	}{
		{"too short", []string{"a", "a"}, 3, false},
		{"same thrice", []string{"x", "a", "a", "a"}, 3, true},
		{"varied", []string{"a", "b", "a"}, 3, false},
		{"pair pattern", []string{"a", "b", "a", "b"}, 4, true},
		{"triple pattern", []string{"a", "b", "c", "a", "b", "c"}, 6, true},
		{"window equals pattern length is not a loop", []string{"a", "b", "c"}, 3, false},
		{"window one", []string{"a"}, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectLoop(tt.sigs, tt.window); got != tt.want {
				t.Errorf("DetectLoop(%v, %d) = %v, want %v", tt.sigs, tt.window, got, tt.want)
			}
		})
	}
}

func TestBatchSignature(t *testing.T) {
	a := []toolcall.Call{{Kind: toolcall.KindRead, Path: "a.go"}, {Kind: toolcall.KindWrite, Path: "b.go", Content: "x"}}
	b := []toolcall.Call{{Kind: toolcall.KindRead, Path: "a.go"}, {Kind: toolcall.KindWrite, Path: "b.go", Content: "y"}}
	if batchSignature(a) == batchSignature(b) {
		t.Error("different content must give different batch signatures")
	}
	if batchSignature(a) != batchSignature(a) {
		t.Error("batch signatures must be deterministic")
	}
}

func TestTruncateOutput(t *testing.T) {
	out := strings.Repeat("a", 50) + strings.Repeat("b", 50)

	head := TruncateOutput(out, 20, TruncateHeadTail)
	if !strings.HasPrefix(head, strings.Repeat("a", 10)) || !strings.HasSuffix(head, strings.Repeat("b", 10)) {
		t.Errorf("head_tail kept the wrong ends: %q", head)
	}
	if !strings.Contains(head, "80 characters were removed") {
		t.Errorf("missing removal note: %q", head)
	}

	tail := TruncateOutput(out, 20, TruncateTail)
	if !strings.HasSuffix(tail, strings.Repeat("b", 20)) || strings.Contains(tail, "aa") {
		t.Errorf("tail mode kept the wrong end: %q", tail)
	}

	if TruncateOutput("short", 20, TruncateTail) != "short" {
		t.Error("short output must pass through")
	}
}

func TestTruncateOutputKeepsRunesWhole(t *testing.T) {
	// Every rune is three bytes, so no byte limit below lands on a boundary
	// by accident.
	out := strings.Repeat("日本語", 20)

	for _, limit := range []int{10, 11, 31} {
		for _, mode := range []TruncationMode{TruncateHeadTail, TruncateTail} {
			got := TruncateOutput(out, limit, mode)
			if !utf8.ValidString(got) {
				t.Errorf("TruncateOutput(limit=%d, %s) produced invalid UTF-8: %q", limit, mode, got)
			}
			if strings.Contains(got, "\uFFFD") {
				t.Errorf("TruncateOutput(limit=%d, %s) split a rune: %q", limit, mode, got)
			}
		}
	}

	tail := TruncateOutput(out, 10, TruncateTail)
	if !strings.HasSuffix(tail, "本語") || !strings.Contains(tail, "First 171 characters were removed") {
		t.Errorf("tail cut = %q", tail)
	}
}

func TestTruncateToolOutputReadLimit(t *testing.T) {
	big := strings.Repeat("x", DefaultToolCharLimits[toolcall.KindRead]+1000)
	got := TruncateToolOutput(big, toolcall.KindRead)
	if len(got) >= len(big) {
		t.Error("read output over the limit must shrink")
	}
	if !strings.Contains(got, "removed from the middle") {
		t.Error("read results are truncated head/tail")
	}

	lines := strings.Repeat("l\n", 3000)
	if got := TruncateToolOutput(lines, toolcall.KindRead); !strings.Contains(got, "lines omitted") {
		t.Error("expected line truncation")
	}
}

func TestNewAssistantTurn(t *testing.T) {
	acc := unifiedllm.NewStreamAccumulator()
	acc.Process(unifiedllm.StreamEvent{Type: unifiedllm.TextDelta, Delta: "partial", ReasoningDelta: "why"})

	done := newAssistantTurn(acc, false)
	if done.Content != "partial" || done.Reasoning != "why" {
		t.Errorf("completed turn = %+v", done)
	}

	cut := newAssistantTurn(acc, true)
	if cut.Content != "partial"+InterruptMarker {
		t.Errorf("content = %q", cut.Content)
	}
	if cut.Reasoning != "why\n\n"+interruptNote {
		t.Errorf("reasoning = %q", cut.Reasoning)
	}
	if stripInterruptMarker(cut.Content) != "partial" {
		t.Error("marker must strip cleanly")
	}

	empty := newAssistantTurn(unifiedllm.NewStreamAccumulator(), true)
	if empty.Content != "" || empty.Reasoning != interruptNote {
		t.Errorf("empty interrupted turn = %+v", empty)
	}
}

func TestJoinSections(t *testing.T) {
	if got := joinSections("", "b"); got != "b" {
		t.Errorf("got %q", got)
	}
	if got := joinSections("a", "  ", "b"); got != "a\n\nb" {
		t.Errorf("got %q", got)
	}
}

func TestBuildSystemPrompt(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "AGENTS.md"), []byte("Use tabs."), 0o644); err != nil {
		t.Fatal(err)
	}
	now := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)

	prompt := BuildSystemPrompt("  Be helpful.  ", NewProfile("openai", "gpt-5.2"), dir, now)
	for _, want := range []string{
		"Be helpful.\n\n# Tools",
		"<read path=",
		"<<<<<<< SEARCH",
		"Working directory: " + dir,
		"Today's date: 2026-03-04",
		"Model: gpt-5.2",
		"# Project Instructions",
		"Use tabs.",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestDiscoverProjectDocsProviderFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "CLAUDE.md"), []byte("claude only"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := DiscoverProjectDocs(dir, "openai"); got != "" {
		t.Errorf("openai must not load CLAUDE.md, got %q", got)
	}
	if got := DiscoverProjectDocs(dir, "anthropic"); !strings.Contains(got, "claude only") {
		t.Errorf("anthropic should load CLAUDE.md, got %q", got)
	}
}

func TestCollectPathHierarchy(t *testing.T) {
	got := collectPathHierarchy("/a", "/a/b/c")
	want := []string{"/a", "/a/b", "/a/b/c"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("got %v", got)
	}
	if got := collectPathHierarchy("/a/b", "/x"); len(got) != 1 {
		t.Errorf("unrelated target must yield only the root, got %v", got)
	}
}

func TestNewProfile(t *testing.T) {
	p := NewProfile("anthropic", "sonnet")
	if p.Model != "claude-sonnet-4-5" || p.ContextWindow != 200000 || !p.SupportsReasoning {
		t.Errorf("catalog alias not resolved: %+v", p)
	}
	unknown := NewProfile("openai", "custom-model")
	if unknown.Model != "custom-model" || unknown.ContextWindow != defaultContextWindow {
		t.Errorf("unknown model = %+v", unknown)
	}
	if p.MaxOutput != 16384 || unknown.MaxOutput != 0 {
		t.Errorf("max output: known %d, unknown %d", p.MaxOutput, unknown.MaxOutput)
	}
}

func TestProfileOutputLimit(t *testing.T) {
	p := NewProfile("anthropic", "sonnet")
	small, large := 1000, 100000
	if got := p.outputLimit(&small); *got != 1000 {
		t.Errorf("limit below the model cap changed: %d", *got)
	}
	if got := p.outputLimit(&large); *got != 16384 {
		t.Errorf("limit above the model cap = %d, want 16384", *got)
	}
	if got := p.outputLimit(nil); got == nil || *got != 16384 {
		t.Errorf("nil request should take the model cap, got %v", got)
	}
	if got := NewProfile("openai", "custom-model").outputLimit(&large); *got != large {
		t.Errorf("unknown model must not cap, got %d", *got)
	}
}

func TestContextUsage(t *testing.T) {
	if (ContextUsage{Tokens: 81, Window: 100}).OverThreshold() != true {
		t.Error("81% is over the threshold")
	}
	if (ContextUsage{Tokens: 80, Window: 100}).OverThreshold() {
		t.Error("80% is not over the threshold")
	}
	if (ContextUsage{Tokens: 5}).OverThreshold() {
		t.Error("an unknown window never warns")
	}
	if got := (ContextUsage{Tokens: 50, Window: 200}).Percent(); got != 25 {
		t.Errorf("Percent = %d", got)
	}
	msgs := []unifiedllm.Message{unifiedllm.UserMessage("hello world"), unifiedllm.AssistantMessage("hi", "thinking")}
	if EstimateConversationTokens(msgs) <= 0 {
		t.Error("expected a positive estimate")
	}
}

func TestEventEmitter(t *testing.T) {
	rec := &recorder{}
	em := NewEventEmitter("", rec)
	em.setSessionID("s1")
	em.Emit(EventWarning, map[string]interface{}{"message": "careful"})
	em.Close()
	em.Emit(EventWarning, nil)

	if len(rec.events) != 1 {
		t.Fatalf("expected one event, got %d", len(rec.events))
	}
	ev := rec.events[0]
	if ev.SessionID != "s1" || ev.Str("message") != "careful" || ev.Str("missing") != "" {
		t.Errorf("event = %+v", ev)
	}

	NewEventEmitter("x", nil).Emit(EventWarning, nil) // nil sink discards
}
