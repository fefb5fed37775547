package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/intake/internal/types"
)

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Re-score a sample of stored questions",
	Long: `Evaluate the first N active questions (by id) through the quality gate
and summarize the scores. Nothing is written back.

Examples:
  intake sample             # Score 20 questions
  intake sample -n 200      # Score 200 questions
  intake sample --worst 5   # Also list the five lowest scores`,
	Run: func(cmd *cobra.Command, args []string) {
		n, _ := cmd.Flags().GetInt("count")
		worst, _ := cmd.Flags().GetInt("worst")
		asJSON, _ := cmd.Flags().GetBool("json")

		ctx := context.Background()
		a, err := newApp(ctx, cfg, false)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.close()

		report, err := a.pipeline.AnalyzeSample(ctx, n)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if asJSON {
			if err := printJSON(report); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		}

		if report.Size == 0 {
			fmt.Println("No active questions to sample")
			return
		}
		fmt.Printf("Sampled %d questions, average score %.1f\n", report.Size, report.AverageScore)
		fmt.Printf("%s approved  %s needs review  %s rejected\n",
			color.GreenString("%d", report.Counts[types.DecisionApproved]),
			color.YellowString("%d", report.Counts[types.DecisionNeedsReview]),
			color.RedString("%d", report.Counts[types.DecisionRejected]))

		// Cards are sorted by ascending score
		if worst > len(report.Cards) {
			worst = len(report.Cards)
		}
		if worst > 0 {
			fmt.Printf("\n%s\n", color.New(color.Bold).Sprint("Lowest scores"))
			for _, card := range report.Cards[:worst] {
				fmt.Printf("%s %-24s %3d  %s\n", decisionGlyph(card.Decision), card.ItemID, card.OverallScore, card.Decision)
			}
		}
	},
}

func init() {
	sampleCmd.Flags().IntP("count", "n", 20, "Number of questions to sample")
	sampleCmd.Flags().Int("worst", 0, "List the N lowest-scoring questions")
	sampleCmd.Flags().Bool("json", false, "Print the report as JSON")
	rootCmd.AddCommand(sampleCmd)
}
