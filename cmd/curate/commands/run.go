package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/curate/am"
	"github.com/teranos/curate/errors"
	"github.com/teranos/curate/pipeline"
)

// RunCmd executes a single pipeline run in the foreground
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one pipeline run now",
	Long: `Fetch one batch from the configured source, gate it, write the raw,
accepted, rejected and curated artifacts, and append the lineage entry.

A run left unfinished by an interrupted process is resumed instead of
fetching a new batch.

Examples:
  curate run                  # One run with the configured source
  CURATE_SOURCE_KIND=inbox curate run`,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadValidConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := buildComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	run, err := c.orch.RunOnce(ctx)
	if run != nil {
		printRun(run)
	}
	if err != nil {
		return errors.Wrapf(err, "run failed (%s)", pipeline.Kind(err))
	}
	return nil
}

// loadValidConfig loads am config and rejects invalid settings.
func loadValidConfig() (*am.Config, error) {
	cfg, err := am.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return cfg, nil
}

func printRun(run *pipeline.Run) {
	ingested, accepted, rejected := run.Counts()

	switch {
	case run.State == pipeline.StateComplete && ingested == 0:
		pterm.Info.Println("No records available, nothing to do")
		return
	case run.State == pipeline.StateComplete:
		pterm.Success.Printfln("Run %s complete", run.RunID)
	case run.State == pipeline.StateFailed:
		pterm.Error.Printfln("Run %s failed: %s", run.RunID, run.Error)
	default:
		pterm.Warning.Printfln("Run %s left in %s: %s", run.RunID, run.State, run.Error)
	}

	data := pterm.TableData{
		{"Ingested", "Accepted", "Rejected"},
		{fmt.Sprint(ingested), fmt.Sprint(accepted), fmt.Sprint(rejected)},
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()

	if run.Paths != nil {
		pterm.Printfln("  %s %s", pterm.Gray("raw:     "), run.Paths.Raw)
		pterm.Printfln("  %s %s", pterm.Gray("accepted:"), run.Paths.Accepted)
		pterm.Printfln("  %s %s", pterm.Gray("rejected:"), run.Paths.Rejected)
		for _, p := range run.Paths.Curated {
			pterm.Printfln("  %s %s", pterm.Gray("curated: "), p)
		}
	}
}
