package am

// Config represents the curate node configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Source   SourceConfig   `mapstructure:"source"`
	Gates    GatesConfig    `mapstructure:"gates"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Lineage  LineageConfig  `mapstructure:"lineage"`
	Pulse    PulseConfig    `mapstructure:"pulse"`
}

// DatabaseConfig configures the SQLite node database (run checkpoints, inbox)
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// Source kinds
const (
	SourceKindKafka = "kafka"
	SourceKindInbox = "inbox"
)

// SourceConfig configures where records are fetched from
type SourceConfig struct {
	Kind              string      `mapstructure:"kind"`               // kafka or inbox
	MaxBatch          int         `mapstructure:"max_batch"`          // Records per run (default: 1500)
	MaxWaitSeconds    int         `mapstructure:"max_wait_seconds"`   // Batch window (default: 30)
	ReconnectAttempts int         `mapstructure:"reconnect_attempts"` // Immediate reconnects before a transient error (default: 3)
	InboxPollMS       int         `mapstructure:"inbox_poll_ms"`      // Inbox polling interval (default: 200)
	Kafka             KafkaConfig `mapstructure:"kafka"`
}

// KafkaConfig configures the Kafka consumer group
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

// GatesConfig configures the quality gates
type GatesConfig struct {
	MinLength         int     `mapstructure:"min_length"`         // Shorter texts are too_short (default: 20)
	MaxLength         int     `mapstructure:"max_length"`         // Longer texts are too_long (default: 4000)
	LanguageThreshold float64 `mapstructure:"language_threshold"` // Minimum English score (default: 0.08)
	Workers           int     `mapstructure:"workers"`            // Gate workers, 0 = logical CPU count
	DenyListFile      string  `mapstructure:"deny_list_file"`     // yaml, toml or text term list (empty = built-in list)
}

// Storage backends and formats
const (
	BackendLocal  = "local"
	BackendGCS    = "gcs"
	FormatParquet = "parquet"
	FormatJSONL   = "jsonl"
)

// StorageConfig configures the tiered artifact store
type StorageConfig struct {
	Backend string `mapstructure:"backend"` // local or gcs
	Root    string `mapstructure:"root"`    // Local root directory
	Bucket  string `mapstructure:"bucket"`  // GCS bucket
	Prefix  string `mapstructure:"prefix"`  // GCS object prefix
	Format  string `mapstructure:"format"`  // parquet or jsonl
}

// LineageConfig configures the run manifest log
type LineageConfig struct {
	Path           string `mapstructure:"path"`            // JSONL manifest (default: manifests/versions.jsonl)
	AppendAttempts int    `mapstructure:"append_attempts"` // Bounded retries for a manifest append (default: 5)
	BackoffMS      int    `mapstructure:"backoff_ms"`      // Initial retry backoff (default: 100)
}

// PulseConfig configures run triggering
type PulseConfig struct {
	CadenceSeconds   int `mapstructure:"cadence_seconds"`     // Fixed cadence, 0 = disabled (default: 300)
	PollIntervalMS   int `mapstructure:"poll_interval_ms"`    // Backlog poll interval (default: 1000)
	SizeThreshold    int `mapstructure:"size_threshold"`      // Backlog that triggers a run, 0 = disabled (default: 1500)
	MaxRunsPerMinute int `mapstructure:"max_runs_per_minute"` // 0 = unlimited (default: 6)
	FetchAttempts    int `mapstructure:"fetch_attempts"`      // Bounded retries for transient source errors (default: 3)
	FetchBackoffMS   int `mapstructure:"fetch_backoff_ms"`    // Initial fetch backoff (default: 200)
}

// File system constants
const (
	DefaultDirPermissions  = 0755 // Standard directory permissions (rwxr-xr-x)
	DefaultFilePermissions = 0644 // Standard file permissions (rw-r--r--)
)
