package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/intake/internal/deduplication"
	"github.com/steveyegge/intake/internal/types"
)

var dedupCmd = &cobra.Command{
	Use:   "dedup",
	Short: "Find duplicate questions",
	Long: `Compare questions pairwise and group duplicates into clusters.

With --file the questions in the file are compared with each other. Without
it, the active questions in the store are compared.

Examples:
  intake dedup --file candidates.json  # Duplicates within a candidate file
  intake dedup --limit 1000            # Duplicates among stored questions
  intake dedup --json                  # Machine-readable pairs and clusters`,
	Run: func(cmd *cobra.Command, args []string) {
		file, _ := cmd.Flags().GetString("file")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		ctx := context.Background()
		a, err := newApp(ctx, cfg, false)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.close()

		var items []*types.ContentItem
		if file != "" {
			items, err = readItems(file)
		} else {
			items, err = a.store.ListItems(ctx, types.ItemFilter{Status: types.StatusActive, Limit: limit})
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		result, err := a.dedup.DetectBatch(ctx, items)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: duplicate detection failed: %v\n", err)
			os.Exit(1)
		}
		clusters := deduplication.Cluster(result.ItemIDs, result.Pairs)

		if asJSON {
			out := struct {
				*deduplication.BatchResult
				Clusters []types.DuplicateCluster `json:"clusters"`
			}{result, clusters}
			if err := printJSON(out); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		}

		for _, p := range result.Pairs {
			mark := color.YellowString("~")
			if p.Classification == types.ClassDuplicate {
				mark = color.RedString("=")
			}
			fmt.Printf("%s %s  %s  %.3f\n", mark, p.ItemA, p.ItemB, p.Score)
		}
		if len(clusters) > 0 {
			fmt.Printf("\n%s\n", color.New(color.Bold).Sprint("Clusters"))
			for _, c := range clusters {
				fmt.Printf("  %s  %v  %s\n", c.ID, c.ItemIDs, c.Recommendation)
			}
		}

		s := result.Stats
		fmt.Printf("\n%d questions, %d comparisons: %s duplicate, %s near-duplicate pairs (%dms)\n",
			s.TotalItems, s.ComparisonsMade,
			color.RedString("%d", s.DuplicateCount),
			color.YellowString("%d", s.NearDuplicateCount),
			s.ProcessingTimeMs)
		if len(result.Failed) > 0 {
			fmt.Printf("%s %d questions could not be embedded: %v\n", color.YellowString("⚠"), len(result.Failed), result.Failed)
		}
		fmt.Println(formatEmbeddingStats(a.embedder.Stats(), a.embedder.Model()))
	},
}

func init() {
	dedupCmd.Flags().StringP("file", "f", "", "JSON file of questions (default: stored active questions)")
	dedupCmd.Flags().Int("limit", 0, "Maximum stored questions to compare (0 = all)")
	dedupCmd.Flags().Bool("json", false, "Print pairs and clusters as JSON")
	rootCmd.AddCommand(dedupCmd)
}
