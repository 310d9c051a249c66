package cli

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/spektasoft/spekta-cli/unifiedllm"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List known models",
	Long: `List the models in the built-in catalog. With --provider only that
provider's models are shown.`,
	Args: cobra.NoArgs,
	RunE: runModels,
}

func runModels(cmd *cobra.Command, args []string) error {
	models := unifiedllm.ListModels(overrides.Provider)
	if len(models) == 0 {
		return fmt.Errorf("no models for provider %q (known: %v)", overrides.Provider, unifiedllm.Providers())
	}
	fmt.Fprintln(cmd.OutOrStdout(), modelTable(models))
	return nil
}

func modelTable(models []unifiedllm.ModelInfo) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("PROVIDER", "ID", "NAME", "CONTEXT", "MAX OUTPUT", "REASONING")
	for _, m := range models {
		reasoning := ""
		if m.SupportsReasoning {
			reasoning = "yes"
		}
		t.Row(m.Provider, m.ID, m.DisplayName, strconv.Itoa(m.ContextWindow), strconv.Itoa(m.MaxOutput), reasoning)
	}
	return t.String()
}
