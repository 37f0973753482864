package commands

import (
	"encoding/json"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/curate/lineage"
	"github.com/teranos/curate/record"
)

// LineageCmd reads the run manifest
var LineageCmd = &cobra.Command{
	Use:   "lineage",
	Short: "Inspect the run manifest",
	Long: `Read the append-only run manifest (lineage.path).

Examples:
  curate lineage ls               # One line per completed run
  curate lineage ls --limit 5     # Latest five runs
  curate lineage summary --json   # Totals, pass rate and reason mix`,
}

var lineageLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List manifest entries",
	RunE:  runLineageLs,
}

var lineageSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Summarize manifest entries",
	RunE:  runLineageSummary,
}

var (
	lineageLimit int
	lineageJSON  bool
)

func init() {
	lineageLsCmd.Flags().IntVar(&lineageLimit, "limit", 20, "Latest entries to show (0 = all)")
	LineageCmd.PersistentFlags().BoolVar(&lineageJSON, "json", false, "Output JSON")

	LineageCmd.AddCommand(lineageLsCmd)
	LineageCmd.AddCommand(lineageSummaryCmd)
}

func readManifest() ([]lineage.Entry, error) {
	cfg, err := loadValidConfig()
	if err != nil {
		return nil, err
	}
	return lineage.ReadAll(cfg.GetLineagePath())
}

func runLineageLs(cmd *cobra.Command, args []string) error {
	entries, err := readManifest()
	if err != nil {
		return err
	}
	if lineageLimit > 0 && len(entries) > lineageLimit {
		entries = entries[len(entries)-lineageLimit:]
	}

	if lineageJSON {
		return printJSON(entries)
	}
	if len(entries) == 0 {
		pterm.Info.Println("No runs recorded")
		return nil
	}

	data := pterm.TableData{{"Run", "Ingested", "Accepted", "Rejected", "Curated", "Completed"}}
	for _, e := range entries {
		data = append(data, []string{
			e.RunID,
			fmt.Sprint(e.Counts.Ingested),
			fmt.Sprint(e.Counts.Accepted),
			fmt.Sprint(e.Counts.Rejected),
			fmt.Sprint(e.Counts.Curated),
			e.CompletedAt.Format("2006-01-02 15:04:05"),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func runLineageSummary(cmd *cobra.Command, args []string) error {
	entries, err := readManifest()
	if err != nil {
		return err
	}
	s := lineage.Summarize(entries)

	if lineageJSON {
		return printJSON(s)
	}

	pterm.DefaultSection.Println("Lineage summary")
	pterm.Printfln("Runs:      %d (%s .. %s)", s.Runs, s.FirstRunID, s.LastRunID)
	pterm.Printfln("Ingested:  %d", s.Ingested)
	pterm.Printfln("Accepted:  %d", s.Accepted)
	pterm.Printfln("Rejected:  %d", s.Rejected)
	pterm.Printfln("Curated:   %d", s.Curated)
	pterm.Printfln("Pass rate: %s", pterm.LightGreen(fmt.Sprintf("%.1f%%", s.PassRate*100)))

	data := pterm.TableData{{"Reason", "Count"}}
	for _, reason := range record.Reasons {
		data = append(data, []string{string(reason), fmt.Sprint(s.Reasons[reason])})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
