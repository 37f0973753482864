package am

import "github.com/teranos/curate/errors"

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if err := c.Source.validate(); err != nil {
		return err
	}
	if err := c.Gates.validate(); err != nil {
		return err
	}
	if err := c.Storage.validate(); err != nil {
		return err
	}

	// Append attempts: at least one attempt is always made
	if c.Lineage.AppendAttempts < 1 {
		return errors.Newf("lineage.append_attempts must be >= 1, got %d", c.Lineage.AppendAttempts)
	}
	if c.Lineage.BackoffMS < 0 {
		return errors.Newf("lineage.backoff_ms must be >= 0, got %d", c.Lineage.BackoffMS)
	}

	// Pulse: 0 disables cadence, size trigger and rate limit; negative is invalid
	if c.Pulse.CadenceSeconds < 0 {
		return errors.Newf("pulse.cadence_seconds must be >= 0, got %d", c.Pulse.CadenceSeconds)
	}
	if c.Pulse.SizeThreshold < 0 {
		return errors.Newf("pulse.size_threshold must be >= 0, got %d", c.Pulse.SizeThreshold)
	}
	if c.Pulse.SizeThreshold > 0 && c.Pulse.PollIntervalMS <= 0 {
		return errors.Newf("pulse.poll_interval_ms must be > 0 when size_threshold is set, got %d", c.Pulse.PollIntervalMS)
	}
	if c.Pulse.MaxRunsPerMinute < 0 {
		return errors.Newf("pulse.max_runs_per_minute must be >= 0, got %d", c.Pulse.MaxRunsPerMinute)
	}
	if c.Pulse.FetchAttempts < 1 {
		return errors.Newf("pulse.fetch_attempts must be >= 1, got %d", c.Pulse.FetchAttempts)
	}
	if c.Pulse.FetchBackoffMS < 0 {
		return errors.Newf("pulse.fetch_backoff_ms must be >= 0, got %d", c.Pulse.FetchBackoffMS)
	}

	return nil
}

func (c SourceConfig) validate() error {
	switch c.Kind {
	case SourceKindKafka:
		if len(c.Kafka.Brokers) == 0 {
			return errors.New("source.kafka.brokers cannot be empty for the kafka source")
		}
		if c.Kafka.Topic == "" {
			return errors.New("source.kafka.topic cannot be empty for the kafka source")
		}
		if c.Kafka.GroupID == "" {
			return errors.New("source.kafka.group_id cannot be empty for the kafka source")
		}
	case SourceKindInbox:
		if c.InboxPollMS <= 0 {
			return errors.Newf("source.inbox_poll_ms must be > 0, got %d", c.InboxPollMS)
		}
	default:
		return errors.Newf("source.kind must be %q or %q, got %q", SourceKindKafka, SourceKindInbox, c.Kind)
	}

	if c.MaxBatch <= 0 {
		return errors.Newf("source.max_batch must be > 0, got %d", c.MaxBatch)
	}
	if c.MaxWaitSeconds < 0 {
		return errors.Newf("source.max_wait_seconds must be >= 0, got %d", c.MaxWaitSeconds)
	}
	if c.ReconnectAttempts < 0 {
		return errors.Newf("source.reconnect_attempts must be >= 0, got %d", c.ReconnectAttempts)
	}
	return nil
}

func (c GatesConfig) validate() error {
	if c.MinLength < 0 {
		return errors.Newf("gates.min_length must be >= 0, got %d", c.MinLength)
	}
	if c.MaxLength < c.MinLength {
		return errors.Newf("gates.max_length (%d) must be >= gates.min_length (%d)", c.MaxLength, c.MinLength)
	}
	if c.LanguageThreshold < 0 || c.LanguageThreshold > 1 {
		return errors.Newf("gates.language_threshold must be within [0, 1], got %f", c.LanguageThreshold)
	}
	// Workers: 0 = logical CPU count, negative = invalid
	if c.Workers < 0 {
		return errors.Newf("gates.workers must be >= 0, got %d", c.Workers)
	}
	return nil
}

func (c StorageConfig) validate() error {
	switch c.Backend {
	case BackendLocal:
		if c.Root == "" {
			return errors.New("storage.root cannot be empty for the local backend")
		}
	case BackendGCS:
		if c.Bucket == "" {
			return errors.New("storage.bucket cannot be empty for the gcs backend")
		}
	default:
		return errors.Newf("storage.backend must be %q or %q, got %q", BackendLocal, BackendGCS, c.Backend)
	}

	switch c.Format {
	case FormatParquet, FormatJSONL:
	default:
		return errors.Newf("storage.format must be %q or %q, got %q", FormatParquet, FormatJSONL, c.Format)
	}
	return nil
}
