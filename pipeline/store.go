package pipeline

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/teranos/curate/errors"
	"github.com/teranos/curate/lineage"
	"github.com/teranos/curate/tier"
)

// Store persists run checkpoints in the runs table.
type Store struct {
	db *sql.DB
}

// NewStore creates a run store on a migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const runColumns = `run_id, state, started_at, updated_at, completed_at,
		batch_json, validated_json, paths_json, error, replay_of`

// Create inserts a new run checkpoint.
func (s *Store) Create(ctx context.Context, run *Run) error {
	args, err := runArgs(run)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO runs (` + runColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrapf(err, "failed to create run %s", run.RunID)
	}
	return nil
}

// Update rewrites the checkpoint of an existing run.
func (s *Store) Update(ctx context.Context, run *Run) error {
	args, err := runArgs(run)
	if err != nil {
		return err
	}

	query := `
		UPDATE runs
		SET state = ?, started_at = ?, updated_at = ?, completed_at = ?,
		    batch_json = ?, validated_json = ?, paths_json = ?, error = ?, replay_of = ?
		WHERE run_id = ?
	`
	res, err := s.db.ExecContext(ctx, query, append(args[1:], run.RunID)...)
	if err != nil {
		return errors.Wrapf(err, "failed to update run %s", run.RunID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if n == 0 {
		return errors.NewNotFoundError("run %s", run.RunID)
	}
	return nil
}

// Get loads one run with its stage outputs.
func (s *Store) Get(ctx context.Context, runID string) (*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE run_id = ?`

	run, err := scanRun(s.db.QueryRowContext(ctx, query, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("run %s", runID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get run %s", runID)
	}
	return run, nil
}

// LatestRunID returns the greatest run id ever stored, or "" for none.
func (s *Store) LatestRunID(ctx context.Context) (string, error) {
	var latest sql.NullString
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(run_id) FROM runs`).Scan(&latest); err != nil {
		return "", errors.Wrap(err, "failed to get latest run id")
	}
	return latest.String, nil
}

// Unfinished returns the non-terminal runs, oldest first.
func (s *Store) Unfinished(ctx context.Context) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs
		WHERE state NOT IN ('complete', 'failed')
		ORDER BY run_id ASC`
	return s.query(ctx, query)
}

// List returns the most recent runs, newest first. An empty state matches
// every state; limit <= 0 means no limit.
func (s *Store) List(ctx context.Context, state State, limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE (? = '' OR state = ?) ORDER BY run_id DESC`
	args := []any{string(state), string(state)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.query(ctx, query, args...)
}

// FailedRunIDs returns the ids of failed runs in order.
func (s *Store) FailedRunIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id FROM runs WHERE state = 'failed' ORDER BY run_id ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query failed runs")
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "failed to scan run id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating failed runs")
	}
	return ids, nil
}

// OrphanedRunIDs returns the failed runs that have no manifest entry. A run
// with an entry owns its artifacts whatever its stored state says.
func (s *Store) OrphanedRunIDs(ctx context.Context, entries []lineage.Entry) ([]string, error) {
	failed, err := s.FailedRunIDs(ctx)
	if err != nil {
		return nil, err
	}

	recorded := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		recorded[e.RunID] = struct{}{}
	}
	ids := failed[:0]
	for _, id := range failed {
		if _, ok := recorded[id]; !ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query runs")
	}
	defer rows.Close()

	runs := []*Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan run")
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating runs")
	}
	return runs, nil
}

// runArgs returns the insert arguments in runColumns order.
func runArgs(run *Run) ([]any, error) {
	batchJSON, err := json.Marshal(run.Batch)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal batch of run %s", run.RunID)
	}
	if run.Batch == nil {
		batchJSON = []byte("[]")
	}

	var validatedJSON, pathsJSON sql.NullString
	if run.Validated != nil {
		data, err := json.Marshal(run.Validated)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to marshal gate results of run %s", run.RunID)
		}
		validatedJSON = sql.NullString{String: string(data), Valid: true}
	}
	if run.Paths != nil {
		data, err := json.Marshal(run.Paths)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to marshal paths of run %s", run.RunID)
		}
		pathsJSON = sql.NullString{String: string(data), Valid: true}
	}

	var completedAt sql.NullTime
	if run.CompletedAt != nil {
		completedAt = sql.NullTime{Time: run.CompletedAt.UTC(), Valid: true}
	}

	return []any{
		run.RunID,
		string(run.State),
		run.StartedAt.UTC(),
		run.UpdatedAt.UTC(),
		completedAt,
		string(batchJSON),
		validatedJSON,
		pathsJSON,
		nullString(run.Error),
		nullString(run.ReplayOf),
	}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run                      Run
		state                    string
		completedAt              sql.NullTime
		batchJSON                string
		validatedJSON, pathsJSON sql.NullString
		errorMsg, replayOf       sql.NullString
	)
	err := row.Scan(&run.RunID, &state, &run.StartedAt, &run.UpdatedAt, &completedAt,
		&batchJSON, &validatedJSON, &pathsJSON, &errorMsg, &replayOf)
	if err != nil {
		return nil, err
	}

	run.State = State(state)
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	if err := json.Unmarshal([]byte(batchJSON), &run.Batch); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal batch of run %s", run.RunID)
	}
	if validatedJSON.Valid {
		if err := json.Unmarshal([]byte(validatedJSON.String), &run.Validated); err != nil {
			return nil, errors.Wrapf(err, "failed to unmarshal gate results of run %s", run.RunID)
		}
	}
	if pathsJSON.Valid {
		var paths tier.Paths
		if err := json.Unmarshal([]byte(pathsJSON.String), &paths); err != nil {
			return nil, errors.Wrapf(err, "failed to unmarshal paths of run %s", run.RunID)
		}
		run.Paths = &paths
	}
	run.Error = errorMsg.String
	run.ReplayOf = replayOf.String
	return &run, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
