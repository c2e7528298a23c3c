package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/adcompliance/infrastructure/storage/filesystem"
)

// newStatsCmd creates the stats command.
func (a *App) newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats [dir]",
		Short: "Summarize saved token statistics",
		Long: `Summarize the token statistics written by previous analyses.
The directory defaults to stats/tokens.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "stats/tokens"
			if len(args) > 0 {
				dir = args[0]
			}
			return a.runStats(dir)
		},
	}
}

func (a *App) runStats(dir string) error {
	sum, files, err := filesystem.NewStatsStore(dir).Summary()
	if err != nil {
		return fmt.Errorf("failed to read statistics: %w", err)
	}
	if files == 0 {
		fmt.Fprintf(a.stdout, "No statistics found in %s\n", dir)
		return nil
	}

	fmt.Fprintf(a.stdout, "Statistics files: %d\n", files)
	fmt.Fprintf(a.stdout, "Period: %s to %s\n", sum.StartDate.Format("2006-01-02 15:04"), sum.EndDate.Format("2006-01-02 15:04"))
	fmt.Fprintf(a.stdout, "Analyzed files: %d\n", sum.TotalFiles)
	fmt.Fprintf(a.stdout, "Tokens: %d (prompt %d, completion %d, embedding %d)\n",
		sum.TotalTokens, sum.TotalPromptTokens, sum.TotalCompletionTokens, sum.TotalEmbeddingTokens)
	fmt.Fprintf(a.stdout, "Total cost: $%.4f\n", sum.TotalCostUSD)
	if sum.TotalFiles > 0 {
		fmt.Fprintf(a.stdout, "Average cost per file: $%.4f\n", sum.TotalCostUSD/float64(sum.TotalFiles))
	}

	names := make([]string, 0, len(sum.Models))
	for name := range sum.Models {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		m := sum.Models[name]
		fmt.Fprintf(a.stdout, "  %s: %d calls, %d prompt, %d completion, %d embedding, $%.4f\n",
			name, m.Calls, m.PromptTokens, m.CompletionTokens, m.EmbeddingTokens, m.CostUSD)
	}
	return nil
}
