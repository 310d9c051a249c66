// Package cli defines the Cobra commands of the spekta binary.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/spektasoft/spekta-cli/agentloop"
	"github.com/spektasoft/spekta-cli/config"
	"github.com/spektasoft/spekta-cli/session"
	"github.com/spektasoft/spekta-cli/toolcall"
	"github.com/spektasoft/spekta-cli/ui"
	"github.com/spektasoft/spekta-cli/unifiedllm"
)

var version = "dev" // set via ldflags at build time

var (
	configPath string
	overrides  config.Overrides
	resumeID   string
)

var rootCmd = &cobra.Command{
	Use:   "spekta",
	Short: "Terminal coding assistant that edits files with your approval",
	Long: `spekta chats with a language model about the project in the current
directory. The model can ask to read, write, or patch files; every action
is listed for approval before it runs, and nothing outside the working
directory is ever touched. Conversations are saved after each step.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	Args:          cobra.NoArgs,
	RunE:          runChat,
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default "+config.DefaultPath()+")")
	rootCmd.PersistentFlags().StringVar(&overrides.Provider, "provider", "", "LLM provider")
	rootCmd.PersistentFlags().StringVar(&overrides.SessionDir, "session-dir", "", "Directory for saved sessions")
	rootCmd.PersistentFlags().BoolVar(&overrides.Debug, "debug", false, "Write debug logs to the log file")
	rootCmd.Flags().StringVarP(&overrides.Model, "model", "m", "", "Model id; prompts for one when unset")
	rootCmd.Flags().StringVarP(&resumeID, "resume", "r", "", "Continue a saved session by id")

	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig reads the config file and layers the command-line flags on top.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Apply(overrides); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger sends debug output to the log file when debugging is on, and
// only warnings to stderr otherwise. The returned closer releases the file.
func newLogger(cfg *config.Config, stderr io.Writer) (*slog.Logger, func(), error) {
	if !cfg.Debug {
		h := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn})
		return slog.New(h), func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	h := slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(h), func() { _ = f.Close() }, nil
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closeLog, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closeLog()

	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}
	logger.Debug("starting", "version", version, "provider", cfg.Provider, "model", cfg.Model, "workdir", workDir)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return chat(ctx, cfg, logger, workDir, chatIO{
		in:      os.Stdin,
		out:     cmd.OutOrStdout(),
		factory: unifiedllm.GollmClientFactory(logger),
	})
}

// chatIO holds the terminal streams and the client factory of a chat.
type chatIO struct {
	in      io.Reader
	out     io.Writer
	factory unifiedllm.ClientFactory
}

// chat wires the collaborators of one session and runs it. Provider
// clients are released when the session ends.
func chat(ctx context.Context, cfg *config.Config, logger *slog.Logger, workDir string, cio chatIO) error {
	clients := unifiedllm.NewClientCache(cio.factory, logger)
	defer func() {
		if err := clients.Close(); err != nil {
			logger.Warn("closing provider clients", "error", err)
		}
	}()

	console := ui.NewConsole(cio.in, cio.out)
	sess := agentloop.NewSession(agentloop.Options{
		Config:   cfg,
		Clients:  clients,
		Store:    session.NewStore(cfg.SessionDir, logger),
		Input:    console,
		Selector: console,
		Tools:    toolcall.NewExecutor(workDir, toolcall.WithLogger(logger)),
		Sink:     ui.NewPrinter(cio.out),
		Logger:   logger,
		WorkDir:  workDir,
		ResumeID: resumeID,
	})

	if err := sess.Initialize(ctx); err != nil {
		return err
	}
	return sess.Start(ctx)
}
