package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/curate/cmd/curate/commands"
	"github.com/teranos/curate/logger"
)

var rootCmd = &cobra.Command{
	Use:   "curate",
	Short: "curate - quality-gated text dataset pipeline",
	Long: `curate - quality-gated text dataset pipeline.

curate batches raw text records from a queue, applies ordered quality gates
(length, language, profanity, in-batch duplicates), writes raw, accepted,
rejected and curated artifacts, and appends one lineage entry per run.

Available commands:
  run     - Execute one pipeline run now
  pulse   - Run the trigger daemon (cadence + backlog size)
  ingest  - Enqueue raw records from a JSONL file
  lineage - Inspect the run manifest
  runs    - Inspect, replay and clean up runs
  am      - Manage configuration ("I am")
  db      - Manage the database

Examples:
  curate ingest samples.jsonl     # Load sample records
  curate run                      # Process one batch
  curate lineage summary          # Pass rate and rejection reasons
  curate pulse start              # Run continuously`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("log-json")
		// keep 'am show' output machine-readable
		if cmd.Name() == "show" {
			return nil
		}
		if err := logger.InitializeWithLevel(jsonLogs, logger.VerbosityToLevel(verbosity)); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Emit JSON logs")

	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.PulseCmd)
	rootCmd.AddCommand(commands.IngestCmd)
	rootCmd.AddCommand(commands.LineageCmd)
	rootCmd.AddCommand(commands.RunsCmd)
	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
