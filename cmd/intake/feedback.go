package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/intake/internal/feedback"
	"github.com/steveyegge/intake/internal/tracker"
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Apply reader feedback reports to stored questions",
	Long: `Process open feedback reports. Each report is claimed in the ledger,
applied to its question, commented on and closed.

Reports come from the local tracker by default. --batch reads them from a
JSON file and --kafka consumes one batch from the configured topic; both are
imported into the tracker before processing.

Examples:
  intake feedback                        # Process open reports in the local tracker
  intake feedback --batch reports.json   # Process reports from a file
  intake feedback --kafka                # Consume and process one batch from Kafka
  intake feedback publish --file r.json  # Publish reports to the Kafka topic`,
	Run: func(cmd *cobra.Command, args []string) {
		batchFile, _ := cmd.Flags().GetString("batch")
		useKafka, _ := cmd.Flags().GetBool("kafka")
		asJSON, _ := cmd.Flags().GetBool("json")

		if batchFile != "" && useKafka {
			fmt.Fprintf(os.Stderr, "Error: --batch and --kafka are mutually exclusive\n")
			os.Exit(1)
		}

		ctx := context.Background()
		a, err := newApp(ctx, cfg, false)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.close()

		proc, err := a.newProcessor()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		var summary *feedback.RunSummary
		switch {
		case batchFile != "":
			issues, rerr := readReports(batchFile)
			if rerr != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", rerr)
				os.Exit(1)
			}
			summary, err = proc.ProcessBatch(ctx, issues)
		case useKafka:
			summary, err = runKafkaBatch(ctx, a, proc)
		default:
			summary, err = proc.Run(ctx)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		a.pruneLedger(ctx)

		if asJSON {
			if err := printJSON(summary); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		}
		printRunSummary(summary)
	},
}

var feedbackPublishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish feedback reports to the Kafka topic",
	Long: `Write reports from a JSON file to the configured Kafka topic, where
"intake feedback --kafka" consumes them.`,
	Run: func(cmd *cobra.Command, args []string) {
		file, _ := cmd.Flags().GetString("file")

		issues, err := readReports(file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		pub, err := tracker.NewKafkaPublisher(kafkaConfig())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer pub.Close()

		if err := pub.Publish(context.Background(), issues); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s published %d reports to %s\n", color.GreenString("✓"), len(issues), cfg.Kafka.Topic)
	},
}

// runKafkaBatch consumes up to feedback.limit reports and commits the
// offsets once they have been processed
func runKafkaBatch(ctx context.Context, a *app, proc *feedback.Processor) (*feedback.RunSummary, error) {
	src, err := tracker.NewKafkaSource(kafkaConfig())
	if err != nil {
		return nil, err
	}
	defer src.Close()

	issues, err := src.Fetch(ctx, a.cfg.Feedback.Limit)
	if err != nil {
		return nil, err
	}
	summary, err := proc.ProcessBatch(ctx, issues)
	if err != nil {
		return nil, err
	}
	if err := src.Commit(ctx); err != nil {
		return summary, err
	}
	return summary, nil
}

func kafkaConfig() tracker.KafkaConfig {
	return tracker.KafkaConfig{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
		GroupID: cfg.Kafka.GroupID,
		MaxWait: 5 * time.Second,
	}
}

func printRunSummary(s *feedback.RunSummary) {
	for _, r := range s.Results {
		switch {
		case r.Skipped:
			fmt.Printf("%s %s skipped\n", color.New(color.FgHiBlack).Sprint("-"), r.IssueID)
		case r.Success:
			fmt.Printf("%s %s %s %s %v\n", color.GreenString("✓"), r.IssueID, r.Kind, r.ItemID, r.Updated)
		default:
			fmt.Printf("%s %s %s %s: %s\n", color.RedString("✗"), r.IssueID, r.Kind, r.ItemID, r.Error)
		}
	}
	fmt.Printf("\nRun %s: %d fetched, %s processed, %s failed, %d skipped\n",
		s.RunID, s.Fetched,
		color.GreenString("%d", s.Processed),
		color.RedString("%d", s.Failed),
		s.Skipped)
}

func init() {
	feedbackCmd.Flags().String("batch", "", "JSON file of reports to process")
	feedbackCmd.Flags().Bool("kafka", false, "Consume one batch of reports from Kafka")
	feedbackCmd.Flags().Bool("json", false, "Print the run summary as JSON")

	feedbackPublishCmd.Flags().StringP("file", "f", "", "JSON file of reports")
	_ = feedbackPublishCmd.MarkFlagRequired("file")

	feedbackCmd.AddCommand(feedbackPublishCmd)
	rootCmd.AddCommand(feedbackCmd)
}
