package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/steveyegge/intake/internal/config"
	"github.com/steveyegge/intake/internal/logging"
)

var (
	cfgPath string
	dbPath  string

	// cfg is loaded once per invocation by the root command
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "intake",
	Short: "Quality gate, duplicate detection and feedback processing for interview content",
	Long: `intake scores candidate interview questions before they are accepted,
finds duplicates across the accepted corpus, and applies reader feedback
reports to stored questions.

Configuration is read from --config (YAML) and INTAKE_* environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		if dbPath != "" {
			loaded.Storage.Path = dbPath
		}
		if err := logging.Init(loaded.Log.Level, loaded.Log.Format, loaded.Log.OutputPath); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to intake.yaml")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides storage.path)")
}

func main() {
	defer logging.Sync()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
