package am

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Default values shared by SetDefaults and the accessor fallbacks
const (
	DefaultDatabasePath = "curate.db"
	DefaultLineagePath  = "manifests/versions.jsonl"
	DefaultStorageRoot  = "data"
	DefaultKafkaTopic   = "raw_text"
	DefaultKafkaGroupID = "dq"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", DefaultDatabasePath)

	// A batch closes at 1500 records or 30s, whichever comes first
	v.SetDefault("source.kind", SourceKindKafka)
	v.SetDefault("source.max_batch", 1500)
	v.SetDefault("source.max_wait_seconds", 30)
	v.SetDefault("source.reconnect_attempts", 3)
	v.SetDefault("source.inbox_poll_ms", 200)
	v.SetDefault("source.kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("source.kafka.topic", DefaultKafkaTopic)
	v.SetDefault("source.kafka.group_id", DefaultKafkaGroupID)

	v.SetDefault("gates.min_length", 20)
	v.SetDefault("gates.max_length", 4000)
	v.SetDefault("gates.language_threshold", 0.08)
	v.SetDefault("gates.workers", 0)
	v.SetDefault("gates.deny_list_file", "")

	v.SetDefault("storage.backend", BackendLocal)
	v.SetDefault("storage.root", DefaultStorageRoot)
	v.SetDefault("storage.format", FormatParquet)

	v.SetDefault("lineage.path", DefaultLineagePath)
	v.SetDefault("lineage.append_attempts", 5)
	v.SetDefault("lineage.backoff_ms", 100)

	v.SetDefault("pulse.cadence_seconds", 300)
	v.SetDefault("pulse.poll_interval_ms", 1000)
	v.SetDefault("pulse.size_threshold", 1500)
	v.SetDefault("pulse.max_runs_per_minute", 6)
	v.SetDefault("pulse.fetch_attempts", 3)
	v.SetDefault("pulse.fetch_backoff_ms", 200)
}

// BindSensitiveEnvVars explicitly binds deployment-specific configuration to environment variables
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("database.path", "CURATE_DATABASE_PATH")
	v.BindEnv("storage.bucket", "CURATE_STORAGE_BUCKET")
	v.BindEnv("source.kafka.brokers", "CURATE_KAFKA_BROKERS")
}

// GetDatabasePath returns the configured database path
func (c *Config) GetDatabasePath() string {
	if c.Database.Path == "" {
		return DefaultDatabasePath
	}
	return c.Database.Path
}

// GetLineagePath returns the configured manifest path
func (c *Config) GetLineagePath() string {
	if c.Lineage.Path == "" {
		return DefaultLineagePath
	}
	return c.Lineage.Path
}

// MaxWait returns the batch window as a duration
func (c SourceConfig) MaxWait() time.Duration {
	return time.Duration(c.MaxWaitSeconds) * time.Second
}

// Cadence returns the cadence trigger period (0 = disabled)
func (c PulseConfig) Cadence() time.Duration {
	return time.Duration(c.CadenceSeconds) * time.Second
}

// PollInterval returns the backlog poll period
func (c PulseConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// FetchBackoff returns the initial fetch retry delay
func (c PulseConfig) FetchBackoff() time.Duration {
	return time.Duration(c.FetchBackoffMS) * time.Millisecond
}

// Backoff returns the initial append retry delay
func (c LineageConfig) Backoff() time.Duration {
	return time.Duration(c.BackoffMS) * time.Millisecond
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{Database: %s, Source: %s, Storage: %s/%s, Lineage: %s}",
		c.Database.Path, c.Source.Kind, c.Storage.Backend, c.Storage.Format, c.Lineage.Path)
}
