package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/curate/errors"
	"github.com/teranos/curate/lineage"
	"github.com/teranos/curate/pipeline"
	"github.com/teranos/curate/tier"
)

// RunsCmd inspects and repairs run checkpoints
var RunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect run checkpoints",
	Long: `Inspect the run checkpoints kept in the database.

Examples:
  curate runs ls                          # Latest runs
  curate runs ls --state failed           # Failed runs only
  curate runs replay 20250301T100000.123456Z
  curate runs orphans                     # Artifacts of failed runs
  curate runs orphans --purge             # Delete them (raw batches are kept)`,
}

var runsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List runs",
	RunE:  runRunsLs,
}

var runsReplayCmd = &cobra.Command{
	Use:   "replay <run_id>",
	Short: "Re-run the batch of a failed run under a new run id",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsReplay,
}

var runsOrphansCmd = &cobra.Command{
	Use:   "orphans",
	Short: "List artifacts written by failed runs",
	RunE:  runRunsOrphans,
}

var (
	runsState string
	runsLimit int
	runsJSON  bool
	runsPurge bool
)

func init() {
	runsLsCmd.Flags().StringVar(&runsState, "state", "", "Filter by state (gating, writing, recording, complete, failed)")
	runsLsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum runs to show (0 = all)")
	runsLsCmd.Flags().BoolVar(&runsJSON, "json", false, "Output JSON")
	runsOrphansCmd.Flags().BoolVar(&runsPurge, "purge", false, "Delete orphaned accepted, rejected and curated artifacts")

	RunsCmd.AddCommand(runsLsCmd)
	RunsCmd.AddCommand(runsReplayCmd)
	RunsCmd.AddCommand(runsOrphansCmd)
}

type runSummary struct {
	RunID    string `json:"run_id"`
	State    string `json:"state"`
	Ingested int    `json:"ingested"`
	Accepted int    `json:"accepted"`
	Rejected int    `json:"rejected"`
	Started  string `json:"started_at"`
	ReplayOf string `json:"replay_of,omitempty"`
	Error    string `json:"error,omitempty"`
}

func runRunsLs(cmd *cobra.Command, args []string) error {
	cfg, err := loadValidConfig()
	if err != nil {
		return err
	}
	database, err := openDatabase(cfg.GetDatabasePath())
	if err != nil {
		return err
	}
	defer database.Close()

	runs, err := pipeline.NewStore(database).List(cmd.Context(), pipeline.State(runsState), runsLimit)
	if err != nil {
		return err
	}

	summaries := make([]runSummary, 0, len(runs))
	for _, r := range runs {
		ingested, accepted, rejected := r.Counts()
		summaries = append(summaries, runSummary{
			RunID:    r.RunID,
			State:    string(r.State),
			Ingested: ingested,
			Accepted: accepted,
			Rejected: rejected,
			Started:  r.StartedAt.UTC().Format("2006-01-02 15:04:05"),
			ReplayOf: r.ReplayOf,
			Error:    r.Error,
		})
	}

	if runsJSON {
		return printJSON(summaries)
	}
	if len(summaries) == 0 {
		pterm.Info.Println("No runs")
		return nil
	}

	data := pterm.TableData{{"Run", "State", "Ingested", "Accepted", "Rejected", "Started", "Replay of"}}
	for _, s := range summaries {
		data = append(data, []string{
			s.RunID, colorState(s.State),
			fmt.Sprint(s.Ingested), fmt.Sprint(s.Accepted), fmt.Sprint(s.Rejected),
			s.Started, s.ReplayOf,
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func colorState(state string) string {
	switch pipeline.State(state) {
	case pipeline.StateComplete:
		return pterm.LightGreen(state)
	case pipeline.StateFailed:
		return pterm.LightRed(state)
	default:
		return pterm.Yellow(state)
	}
}

func runRunsReplay(cmd *cobra.Command, args []string) error {
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

	run, err := c.orch.Replay(ctx, args[0])
	if run != nil {
		printRun(run)
	}
	if err != nil {
		return errors.Wrapf(err, "replay of %s failed (%s)", args[0], pipeline.Kind(err))
	}
	return nil
}

func runRunsOrphans(cmd *cobra.Command, args []string) error {
	cfg, err := loadValidConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	database, err := openDatabase(cfg.GetDatabasePath())
	if err != nil {
		return err
	}
	defer database.Close()

	backend, err := newBackend(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	if closer, ok := backend.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	entries, err := lineage.ReadAll(cfg.GetLineagePath())
	if err != nil {
		return err
	}
	failed, err := pipeline.NewStore(database).OrphanedRunIDs(ctx, entries)
	if err != nil {
		return err
	}

	var keys []string
	if runsPurge {
		keys, err = tier.PurgeOrphans(ctx, backend, failed)
	} else {
		keys, err = tier.Orphans(ctx, backend, failed)
	}
	if err != nil {
		return err
	}

	if len(keys) == 0 {
		pterm.Info.Printfln("No orphaned artifacts (%d failed runs)", len(failed))
		return nil
	}
	for _, key := range keys {
		fmt.Println(backend.Location(key))
	}
	if runsPurge {
		pterm.Success.Printfln("Deleted %d orphaned artifacts", len(keys))
	} else {
		pterm.Info.Printfln("%d orphaned artifacts from %d failed runs", len(keys), len(failed))
	}
	return nil
}
