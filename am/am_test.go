package am

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig(t *testing.T) *Config {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	cfg, err := LoadWithViper(v)
	require.NoError(t, err)
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	cfg := defaultConfig(t)

	assert.Equal(t, DefaultDatabasePath, cfg.Database.Path)
	assert.Equal(t, SourceKindKafka, cfg.Source.Kind)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Source.Kafka.Brokers)
	assert.Equal(t, "raw_text", cfg.Source.Kafka.Topic)
	assert.Equal(t, "dq", cfg.Source.Kafka.GroupID)
	assert.Equal(t, 1500, cfg.Source.MaxBatch)
	assert.Equal(t, 30, cfg.Source.MaxWaitSeconds)
	assert.Equal(t, 20, cfg.Gates.MinLength)
	assert.Equal(t, 4000, cfg.Gates.MaxLength)
	assert.InDelta(t, 0.08, cfg.Gates.LanguageThreshold, 1e-9)
	assert.Equal(t, BackendLocal, cfg.Storage.Backend)
	assert.Equal(t, FormatParquet, cfg.Storage.Format)
	assert.Equal(t, DefaultLineagePath, cfg.Lineage.Path)
	assert.Equal(t, 5, cfg.Lineage.AppendAttempts)
	assert.Equal(t, 3, cfg.Pulse.FetchAttempts)

	require.NoError(t, cfg.Validate(), "defaults must validate")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"inbox source", func(c *Config) { c.Source.Kind = SourceKindInbox }, ""},
		{"unknown source kind", func(c *Config) { c.Source.Kind = "sqs" }, "source.kind"},
		{"kafka without brokers", func(c *Config) { c.Source.Kafka.Brokers = nil }, "source.kafka.brokers"},
		{"zero max batch", func(c *Config) { c.Source.MaxBatch = 0 }, "source.max_batch"},
		{"zero max wait is valid", func(c *Config) { c.Source.MaxWaitSeconds = 0 }, ""},
		{"negative min length", func(c *Config) { c.Gates.MinLength = -1 }, "gates.min_length"},
		{"max below min", func(c *Config) { c.Gates.MaxLength = 10 }, "gates.max_length"},
		{"threshold above one", func(c *Config) { c.Gates.LanguageThreshold = 1.5 }, "gates.language_threshold"},
		{"zero workers is valid (auto)", func(c *Config) { c.Gates.Workers = 0 }, ""},
		{"negative workers", func(c *Config) { c.Gates.Workers = -2 }, "gates.workers"},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "s3" }, "storage.backend"},
		{"gcs without bucket", func(c *Config) { c.Storage.Backend = BackendGCS }, "storage.bucket"},
		{"gcs with bucket", func(c *Config) { c.Storage.Backend = BackendGCS; c.Storage.Bucket = "b" }, ""},
		{"unknown format", func(c *Config) { c.Storage.Format = "csv" }, "storage.format"},
		{"zero append attempts", func(c *Config) { c.Lineage.AppendAttempts = 0 }, "lineage.append_attempts"},
		{"zero cadence is valid (disabled)", func(c *Config) { c.Pulse.CadenceSeconds = 0 }, ""},
		{"zero size threshold is valid (disabled)", func(c *Config) { c.Pulse.SizeThreshold = 0; c.Pulse.PollIntervalMS = 0 }, ""},
		{"size threshold without poll interval", func(c *Config) { c.Pulse.PollIntervalMS = 0 }, "pulse.poll_interval_ms"},
		{"negative rate limit", func(c *Config) { c.Pulse.MaxRunsPerMinute = -1 }, "pulse.max_runs_per_minute"},
		{"zero fetch attempts", func(c *Config) { c.Pulse.FetchAttempts = 0 }, "pulse.fetch_attempts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "am.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[source]
kind = "inbox"
max_batch = 10

[gates]
min_length = 5
deny_list_file = "terms.yaml"

[storage]
format = "jsonl"
`), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, SourceKindInbox, cfg.Source.Kind)
	assert.Equal(t, 10, cfg.Source.MaxBatch)
	assert.Equal(t, 5, cfg.Gates.MinLength)
	assert.Equal(t, 4000, cfg.Gates.MaxLength, "unset keys keep defaults")
	assert.Equal(t, "terms.yaml", cfg.Gates.DenyListFile)
	assert.Equal(t, FormatJSONL, cfg.Storage.Format)
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestFindProjectConfig(t *testing.T) {
	tmpDir := t.TempDir()
	nested := filepath.Join(tmpDir, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "am.toml"), []byte("[database]\npath = \"x.db\"\n"), 0644))

	t.Chdir(nested)
	got := findProjectConfig()

	// macOS temp dirs resolve through /private
	want, err := filepath.EvalSymlinks(filepath.Join(tmpDir, "am.toml"))
	require.NoError(t, err)
	gotResolved, err := filepath.EvalSymlinks(got)
	require.NoError(t, err)
	assert.Equal(t, want, gotResolved)
}

func TestLoad_ProjectAndEnvPrecedence(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "am.toml"), []byte(`
[database]
path = "project.db"

[gates]
min_length = 7
max_length = 70
`), 0644))
	t.Chdir(tmpDir)
	t.Setenv("CURATE_GATES_MAX_LENGTH", "99")

	Reset()
	t.Cleanup(Reset)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "project.db", cfg.Database.Path)
	assert.Equal(t, 7, cfg.Gates.MinLength)
	assert.Equal(t, 99, cfg.Gates.MaxLength, "env overrides project file")

	settings, err := GetConfigIntrospection()
	require.NoError(t, err)
	byKey := map[string]SettingInfo{}
	for _, s := range settings {
		byKey[s.Key] = s
	}
	assert.Equal(t, SourceProject, byKey["gates.min_length"].Source)
	assert.Equal(t, SourceEnvironment, byKey["gates.max_length"].Source)
	assert.Equal(t, "CURATE_GATES_MAX_LENGTH", byKey["gates.max_length"].SourcePath)
	assert.Equal(t, SourceDefault, byKey["lineage.append_attempts"].Source)
}
