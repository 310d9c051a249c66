package cli

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/spektasoft/spekta-cli/session"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List saved sessions, newest first",
	Long: `List the sessions saved in the session directory. Pass an id to
"spekta --resume" to continue one.`,
	Args: cobra.NoArgs,
	RunE: runSessions,
}

var sessionsLimit int

func init() {
	sessionsCmd.Flags().IntVarP(&sessionsLimit, "limit", "n", 20, "Show at most this many sessions (0 for all)")
}

func runSessions(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closeLog, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closeLog()

	summaries, err := session.NewStore(cfg.SessionDir, logger).Summaries()
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}
	out := cmd.OutOrStdout()
	if len(summaries) == 0 {
		fmt.Fprintf(out, "No sessions in %s\n", cfg.SessionDir)
		return nil
	}
	if sessionsLimit > 0 && len(summaries) > sessionsLimit {
		summaries = summaries[:sessionsLimit]
	}
	fmt.Fprintln(out, sessionTable(summaries))
	return nil
}

func sessionTable(summaries []session.Summary) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "UPDATED", "MESSAGES", "FIRST MESSAGE")
	for _, s := range summaries {
		t.Row(s.ID, s.UpdatedAt.Local().Format("2006-01-02 15:04"), strconv.Itoa(s.Messages), s.Preview)
	}
	return t.String()
}
