package commands

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/curate/am"
	"github.com/teranos/curate/errors"
	"github.com/teranos/curate/lineage"
	"github.com/teranos/curate/pipeline"
)

const projectConfig = `
[database]
path = "curate.db"

[source]
kind = "inbox"
max_wait_seconds = 1
inbox_poll_ms = 10

[storage]
backend = "local"
root = "data"
format = "jsonl"

[lineage]
path = "manifests/versions.jsonl"
`

// setupProject runs the test inside a fresh project directory with its own am.toml.
func setupProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "am.toml"), []byte(projectConfig), 0o644))

	am.Reset()
	t.Cleanup(am.Reset)
	return dir
}

func testCommand() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	return cmd
}

func TestIngestThenRun(t *testing.T) {
	dir := setupProject(t)

	corpus := filepath.Join(dir, "samples.jsonl")
	lines := `{"id":"a","ts":"2025-03-01T10:00:00","text":"The quick brown fox jumps over the lazy dog and it is a fine day.","source":"web","domain":"news","category":"ai"}

{"id":"b","ts":"2025-03-01T11:00:00","text":"This sentence has a shit ton of words in it.","source":"web","domain":"social","category":"ai"}
`
	require.NoError(t, os.WriteFile(corpus, []byte(lines), 0o644))

	cmd := testCommand()
	require.NoError(t, runIngest(cmd, []string{corpus}))
	require.NoError(t, runRun(cmd, nil))

	entries, err := lineage.ReadAll(filepath.Join(dir, "manifests", "versions.jsonl"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, lineage.Counts{Ingested: 2, Accepted: 1, Rejected: 1, Curated: 1}, entries[0].Counts)
	assert.FileExists(t, entries[0].ArtifactPaths.Raw)

	assert.NoError(t, runRunsLs(cmd, nil))
	assert.NoError(t, runLineageLs(cmd, nil))
	assert.NoError(t, runLineageSummary(cmd, nil))
	assert.NoError(t, runRunsOrphans(cmd, nil))
	assert.NoError(t, runDbStats(cmd, nil))
}

func TestReplayUnknownRun(t *testing.T) {
	setupProject(t)
	cmd := testCommand()

	err := runRunsReplay(cmd, []string{"20250301T100000.000000Z"})
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestComponentFactories(t *testing.T) {
	_, err := newSource(am.SourceConfig{Kind: "carrier-pigeon"}, nil)
	assert.True(t, errors.IsInvalidRequestError(err))

	_, err = newBackend(context.Background(), am.StorageConfig{Backend: "tape"})
	assert.True(t, errors.IsInvalidRequestError(err))

	backend, err := newBackend(context.Background(), am.StorageConfig{Backend: am.BackendLocal, Root: t.TempDir()})
	require.NoError(t, err)
	assert.NotNil(t, backend)

	_, err = newGateEngine(am.GatesConfig{DenyListFile: filepath.Join(t.TempDir(), "missing.txt")})
	assert.Error(t, err)
}

func TestPipelineConfig(t *testing.T) {
	cfg := &am.Config{
		Source:  am.SourceConfig{MaxBatch: 10, MaxWaitSeconds: 2},
		Lineage: am.LineageConfig{AppendAttempts: 4, BackoffMS: 50},
		Pulse:   am.PulseConfig{FetchAttempts: 2, FetchBackoffMS: 20},
	}
	pc := pipelineConfig(cfg)
	assert.Equal(t, 10, pc.MaxBatch)
	assert.Equal(t, 2*time.Second, pc.MaxWait)
	assert.Equal(t, pipeline.Backoff{Attempts: 2, Initial: 20 * time.Millisecond, Max: pipeline.DefaultConfig().FetchRetry.Max}, pc.FetchRetry)
	assert.Equal(t, 4, pc.AppendRetry.Attempts)
	assert.Equal(t, 50*time.Millisecond, pc.AppendRetry.Initial)
}
