package cli

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spektasoft/spekta-cli/config"
	"github.com/spektasoft/spekta-cli/session"
	"github.com/spektasoft/spekta-cli/unifiedllm"
)

// run executes the root command with args against an isolated config file
// and session directory.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configPath, overrides, resumeID = "", config.Overrides{}, ""
	sessionsLimit, forceInit = 20, false
	for _, name := range []string{"SPEKTA_PROVIDER", "SPEKTA_MODEL", "SPEKTA_SESSION_DIR", "SPEKTA_DEBUG", "SPEKTA_API_KEY"} {
		t.Setenv(name, "")
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestModelsCommand(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	out, err := run(t, "models", "--config", cfgPath, "--provider", "anthropic")
	if err != nil {
		t.Fatalf("models: %v", err)
	}
	if !strings.Contains(out, "claude-opus-4-6") {
		t.Errorf("missing catalog entry:\n%s", out)
	}
	if strings.Contains(out, "openai") {
		t.Errorf("other providers should be filtered out:\n%s", out)
	}
}

func TestSessionsCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")

	out, err := run(t, "sessions", "--config", cfgPath, "--session-dir", dir)
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	if !strings.Contains(out, "No sessions") {
		t.Errorf("empty listing:\n%s", out)
	}

	store := session.NewStore(dir, nil)
	msgs := []unifiedllm.Message{
		unifiedllm.SystemMessage("sys"),
		unifiedllm.UserMessage("rename the config loader"),
	}
	if err := store.Save("abc-123", msgs); err != nil {
		t.Fatal(err)
	}

	out, err = run(t, "sessions", "--config", cfgPath, "--session-dir", dir)
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	for _, want := range []string{"abc-123", "rename the config loader"} {
		if !strings.Contains(out, want) {
			t.Errorf("listing missing %q:\n%s", want, out)
		}
	}
}

func TestConfigInitAndShow(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "spekta", "config.yaml")
	t.Setenv("OPENAI_API_KEY", "secret-key")

	if _, err := run(t, "config", "init", "--config", cfgPath, "--provider", "openai", "--session-dir", "/tmp/spekta-s"); err != nil {
		t.Fatalf("config init: %v", err)
	}
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "secret-key") {
		t.Error("credential written to config file")
	}
	if !strings.Contains(string(data), "/tmp/spekta-s") {
		t.Errorf("flag value not saved:\n%s", data)
	}

	if _, err := run(t, "config", "init", "--config", cfgPath); err == nil {
		t.Error("init over an existing file should fail without --force")
	}

	out, err := run(t, "config", "show", "--config", cfgPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "(set)") || strings.Contains(out, "secret-key") {
		t.Errorf("credential should be masked:\n%s", out)
	}
}

func TestInvalidConfigFails(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("provider: nope\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "sessions", "--config", cfgPath); err == nil {
		t.Error("expected an error for an unknown provider")
	}
}

func TestNewLoggerDebugWritesFile(t *testing.T) {
	cfg := config.Default()
	cfg.Debug = true
	cfg.LogFile = filepath.Join(t.TempDir(), "logs", "spekta.log")

	var stderr bytes.Buffer
	logger, closeLog, err := newLogger(cfg, &stderr)
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	logger.Debug("hello", "k", "v")
	closeLog()

	data, err := os.ReadFile(cfg.LogFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "msg=hello") || stderr.Len() != 0 {
		t.Errorf("log file %q, stderr %q", data, stderr.String())
	}
}

// closingAdapter answers every stream with one reply and records Close.
type closingAdapter struct {
	closed int
}

func (a *closingAdapter) Name() string { return "openai" }

func (a *closingAdapter) Stream(ctx context.Context, req unifiedllm.Request) (<-chan unifiedllm.StreamEvent, error) {
	ch := make(chan unifiedllm.StreamEvent, 2)
	ch <- unifiedllm.StreamEvent{Type: unifiedllm.TextDelta, Delta: "hi from the model"}
	ch <- unifiedllm.StreamEvent{Type: unifiedllm.StreamFinish, FinishReason: &unifiedllm.FinishReason{Reason: "stop"}}
	close(ch)
	return ch, nil
}

func (a *closingAdapter) Close() error {
	a.closed++
	return nil
}

func TestChatReleasesClients(t *testing.T) {
	resumeID = ""
	cfg := config.Default()
	cfg.Model = "gpt-5.2"
	cfg.APIKey = "test-key"
	cfg.SessionDir = t.TempDir()

	adapter := &closingAdapter{}
	factory := func(spec unifiedllm.ClientSpec) (*unifiedllm.Client, error) {
		return unifiedllm.NewClient(unifiedllm.WithProvider(spec.Provider, adapter)), nil
	}

	var out bytes.Buffer
	err := chat(context.Background(), cfg, slog.New(slog.DiscardHandler), t.TempDir(), chatIO{
		in:      strings.NewReader("hello\n"),
		out:     &out,
		factory: factory,
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if adapter.closed != 1 {
		t.Errorf("adapter closed %d times, want 1", adapter.closed)
	}
	if !strings.Contains(out.String(), "hi from the model") {
		t.Errorf("reply not printed:\n%s", out.String())
	}
	ids, err := session.NewStore(cfg.SessionDir, nil).List()
	if err != nil || len(ids) != 1 {
		t.Errorf("saved sessions = %v, %v", ids, err)
	}
}
