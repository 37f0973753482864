package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/curate/errors"
	"github.com/teranos/curate/pipeline"
)

// DbCmd represents the db (database) command
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the curate database",
	Long: `db — Manage the SQLite database holding run checkpoints and the inbox queue.

Examples:
  curate db migrate               # Apply pending migrations
  curate db stats                 # Runs per state and inbox backlog`,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending migrations",
	RunE:  runDbMigrate,
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show run and inbox statistics",
	RunE:  runDbStats,
}

func init() {
	DbCmd.AddCommand(dbMigrateCmd)
	DbCmd.AddCommand(dbStatsCmd)
}

func runDbMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadValidConfig()
	if err != nil {
		return err
	}
	database, err := openDatabase(cfg.GetDatabasePath())
	if err != nil {
		return err
	}
	defer database.Close()

	pterm.Success.Printfln("Database %s is up to date", cfg.GetDatabasePath())
	return nil
}

func runDbStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadValidConfig()
	if err != nil {
		return err
	}
	database, err := openDatabase(cfg.GetDatabasePath())
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer database.Close()

	ctx := cmd.Context()
	rows, err := database.QueryContext(ctx, `SELECT state, COUNT(*) FROM runs GROUP BY state ORDER BY state`)
	if err != nil {
		return errors.Wrap(err, "failed to query run states")
	}
	defer rows.Close()

	data := pterm.TableData{{"State", "Runs"}}
	for rows.Next() {
		var (
			state string
			n     int
		)
		if err := rows.Scan(&state, &n); err != nil {
			return errors.Wrap(err, "failed to scan run state")
		}
		data = append(data, []string{colorState(state), fmt.Sprint(n)})
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "error iterating run states")
	}

	var inbox int
	if err := database.QueryRowContext(ctx, `SELECT COUNT(*) FROM inbox_messages`).Scan(&inbox); err != nil {
		return errors.Wrap(err, "failed to count inbox messages")
	}

	latest, err := pipeline.NewStore(database).LatestRunID(ctx)
	if err != nil {
		return err
	}

	pterm.DefaultSection.Println("Database statistics")
	pterm.Printfln("Database path: %s", cfg.GetDatabasePath())
	pterm.Printfln("Latest run:    %s", latest)
	pterm.Printfln("Inbox backlog: %d", inbox)
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
