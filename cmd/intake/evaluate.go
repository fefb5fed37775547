package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/intake/internal/embedding"
	"github.com/steveyegge/intake/internal/gates"
	"github.com/steveyegge/intake/internal/intake"
	"github.com/steveyegge/intake/internal/types"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score a batch of candidate questions",
	Long: `Run every candidate through the quality gate and report duplicate
clusters within the batch.

Each candidate is compared against the active stored questions and the
candidates before it in the file.

Examples:
  intake evaluate --file candidates.json            # Score and print a summary
  intake evaluate --file candidates.json --save     # Also store approved candidates
  intake evaluate --file candidates.json --verbose  # Print every scorecard
  intake evaluate --file candidates.json --json     # Machine-readable report`,
	Run: func(cmd *cobra.Command, args []string) {
		file, _ := cmd.Flags().GetString("file")
		save, _ := cmd.Flags().GetBool("save")
		verbose, _ := cmd.Flags().GetBool("verbose")
		asJSON, _ := cmd.Flags().GetBool("json")

		items, err := readItems(file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		ctx := context.Background()
		a, err := newApp(ctx, cfg, save)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.close()

		report, err := a.pipeline.EvaluateBatch(ctx, items)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: evaluation failed: %v\n", err)
			os.Exit(1)
		}

		if asJSON {
			if err := printJSON(report); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		}
		printBatchReport(report, verbose)
		fmt.Println(formatEmbeddingStats(a.embedder.Stats(), a.embedder.Model()))
	},
}

func printBatchReport(report *intake.BatchReport, verbose bool) {
	for _, card := range report.Cards {
		if verbose {
			fmt.Println(gates.FormatScoreCard(card))
			continue
		}
		line := fmt.Sprintf("%s %-24s %3d  %s", decisionGlyph(card.Decision), card.ItemID, card.OverallScore, card.Decision)
		if card.SimilarTo != "" && card.MaxSimilarity > 0 {
			line += fmt.Sprintf("  (similar to %s, %.2f)", card.SimilarTo, card.MaxSimilarity)
		}
		fmt.Println(line)
	}

	if len(report.Clusters) > 0 {
		fmt.Printf("\n%s\n", color.New(color.Bold).Sprint("Duplicate clusters"))
		for _, c := range report.Clusters {
			fmt.Printf("  %s  %v  %s\n", c.ID, c.ItemIDs, c.Recommendation)
		}
	}

	fmt.Printf("\n%s approved  %s needs review  %s rejected\n",
		color.GreenString("%d", report.Counts[types.DecisionApproved]),
		color.YellowString("%d", report.Counts[types.DecisionNeedsReview]),
		color.RedString("%d", report.Counts[types.DecisionRejected]))
	if report.Invalid > 0 {
		fmt.Printf("%s %d empty entries dropped\n", color.YellowString("⚠"), report.Invalid)
	}
	if report.Deferred > 0 {
		fmt.Printf("%s %d candidates beyond the per-run limit were not evaluated\n", color.YellowString("⚠"), report.Deferred)
	}
	if len(report.Saved) > 0 {
		fmt.Printf("%s saved %d approved questions\n", color.GreenString("✓"), len(report.Saved))
	}
}

// formatEmbeddingStats summarizes where the run's vectors came from
func formatEmbeddingStats(st embedding.Stats, model string) string {
	line := fmt.Sprintf("embeddings: %s (%d primary, %d fallback, %d cached)",
		model, st.PrimarySuccesses, st.Fallbacks, st.CacheHits)
	if st.PrimaryDegraded {
		line = color.YellowString("⚠") + " " + line + ", primary model unavailable"
	}
	return line
}

func decisionGlyph(d types.Decision) string {
	switch d {
	case types.DecisionApproved:
		return color.GreenString("✓")
	case types.DecisionNeedsReview:
		return color.YellowString("⚠")
	default:
		return color.RedString("✗")
	}
}

func init() {
	evaluateCmd.Flags().StringP("file", "f", "", "JSON file of candidate questions")
	evaluateCmd.Flags().Bool("save", false, "Store approved candidates as active questions")
	evaluateCmd.Flags().BoolP("verbose", "v", false, "Print the full scorecard for every candidate")
	evaluateCmd.Flags().Bool("json", false, "Print the report as JSON")
	_ = evaluateCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(evaluateCmd)
}
