package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/steveyegge/intake/internal/types"
)

var similarCmd = &cobra.Command{
	Use:   "similar <question-id>",
	Short: "List stored questions similar to one question",
	Long: `Index the active questions in the configured similarity backend and list
the nearest neighbours of one question.

With the memory backend the index is rebuilt on every call. With
Elasticsearch, --skip-index reuses vectors indexed by an earlier call.

Examples:
  intake similar q-123                      # Neighbours above the near-duplicate threshold
  intake similar q-123 --threshold 0.5      # Wider search
  intake similar q-123 --skip-index         # Reuse the Elasticsearch index`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		threshold, _ := cmd.Flags().GetFloat64("threshold")
		skipIndex, _ := cmd.Flags().GetBool("skip-index")

		ctx := context.Background()
		a, err := newApp(ctx, cfg, false)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.close()

		item, err := a.store.GetItem(ctx, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if !skipIndex {
			items, err := a.store.ListItems(ctx, types.ItemFilter{Status: types.StatusActive})
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			n, err := a.dedup.Index(ctx, items)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: indexing failed: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Indexed %d questions\n\n", n)
		}

		if threshold <= 0 {
			threshold = a.cfg.Dedup.NearDuplicateThreshold
		}
		matches, err := a.dedup.FindSimilar(ctx, item, threshold, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(matches) == 0 {
			fmt.Printf("No questions above %.2f similar to %s\n", threshold, item.ID)
			return
		}
		thresholds := a.dedup.Config().Thresholds()
		for _, m := range matches {
			fmt.Printf("%-24s %.3f  %s\n", m.ID, m.Score, thresholds.Classify(m.Score))
		}
	},
}

func init() {
	similarCmd.Flags().Float64("threshold", 0, "Minimum similarity (default: dedup.near_duplicate_threshold)")
	similarCmd.Flags().Bool("skip-index", false, "Search the existing index without re-indexing")
	rootCmd.AddCommand(similarCmd)
}
