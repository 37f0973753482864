package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teranos/curate/am"
	"github.com/teranos/curate/logger"
	"github.com/teranos/curate/pulse/schedule"
)

// PulseCmd represents the pulse command - the run trigger daemon
var PulseCmd = &cobra.Command{
	Use:   "pulse",
	Short: "Manage the Pulse daemon (run trigger)",
	Long: `Pulse daemon - continuous curation.

The Pulse daemon starts a pipeline run:
- every pulse.cadence_seconds
- when the source backlog reaches pulse.size_threshold
- never more than pulse.max_runs_per_minute, one run at a time

Gate settings in am.toml are re-applied between runs when the file changes.

Example:
  curate pulse start              # Start daemon in foreground`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// PulseStartCmd starts the Pulse daemon
var PulseStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the Pulse daemon",
	Long: `Start the Pulse daemon in foreground mode.

Runs until interrupted (Ctrl+C). A run in flight when the daemon stops is
failed unless it already reached the lineage append; an unfinished run is
resumed on the next start.`,
	RunE: runPulseStart,
}

func init() {
	PulseCmd.AddCommand(PulseStartCmd)
}

func runPulseStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadValidConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	c, err := buildComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	tickerCfg := schedule.TickerConfig{
		Cadence:          cfg.Pulse.Cadence(),
		PollInterval:     cfg.Pulse.PollInterval(),
		SizeThreshold:    cfg.Pulse.SizeThreshold,
		MaxRunsPerMinute: cfg.Pulse.MaxRunsPerMinute,
	}
	ticker := schedule.NewTickerWithContext(ctx, c.orch, c.source, tickerCfg, logger.ComponentLogger("pulse"))

	watcher := startConfigWatcher(c)
	ticker.Start()

	fmt.Println("Pulse daemon started")
	fmt.Printf("  Source: %s\n", cfg.Source.Kind)
	fmt.Printf("  Storage: %s (%s)\n", cfg.Storage.Backend, cfg.Storage.Format)
	fmt.Printf("  Cadence: %v\n", tickerCfg.Cadence)
	fmt.Printf("  Size threshold: %d (poll %v)\n", tickerCfg.SizeThreshold, tickerCfg.PollInterval)
	fmt.Printf("  Max runs per minute: %d\n", tickerCfg.MaxRunsPerMinute)
	fmt.Printf("\nPress Ctrl+C for graceful shutdown\n\n")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nShutting down...")
	ticker.Stop()
	if watcher != nil {
		if err := watcher.Stop(); err != nil {
			logger.Warnw("Failed to stop config watcher", logger.FieldError, err)
		}
	}

	stats := ticker.Stats()
	fmt.Printf("Pulse daemon stopped (%d runs, %d failed, %d rate limited)\n",
		stats.Runs, stats.Failures, stats.RateLimited)
	return nil
}

// startConfigWatcher re-applies gate settings when the active config file
// changes. It returns nil when there is no config file to watch.
func startConfigWatcher(c *components) *am.ConfigWatcher {
	path := am.ActiveConfigFile()
	if path == "" {
		return nil
	}

	watcher, err := am.NewConfigWatcher(path)
	if err != nil {
		logger.Warnw("Config hot reload disabled", logger.FieldPath, path, logger.FieldError, err)
		return nil
	}

	watcher.OnReload(func(cfg *am.Config) error {
		engine, err := newGateEngine(cfg.Gates)
		if err != nil {
			return err
		}
		c.orch.SetGates(engine)
		logger.Infow("Gate settings reloaded",
			"min_length", cfg.Gates.MinLength,
			"max_length", cfg.Gates.MaxLength,
			"language_threshold", cfg.Gates.LanguageThreshold)
		return nil
	})
	watcher.Start()
	return watcher
}
