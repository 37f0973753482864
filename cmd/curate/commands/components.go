package commands

import (
	"context"
	"database/sql"
	"time"

	"github.com/teranos/curate/am"
	"github.com/teranos/curate/db"
	"github.com/teranos/curate/errors"
	"github.com/teranos/curate/gate"
	"github.com/teranos/curate/lineage"
	"github.com/teranos/curate/logger"
	"github.com/teranos/curate/pipeline"
	"github.com/teranos/curate/source"
	"github.com/teranos/curate/tier"
)

// components is the wired pipeline for one CLI invocation.
type components struct {
	db       *sql.DB
	source   source.Source
	backend  tier.Backend
	writer   *tier.Writer
	recorder *lineage.Recorder
	store    *pipeline.Store
	orch     *pipeline.Orchestrator

	closers []func() error
}

// buildComponents wires the source, gates, tier writer, lineage recorder and
// run store described by cfg.
func buildComponents(ctx context.Context, cfg *am.Config) (*components, error) {
	c := &components{}
	ok := false
	defer func() {
		if !ok {
			c.Close()
		}
	}()

	database, err := openDatabase(cfg.GetDatabasePath())
	if err != nil {
		return nil, err
	}
	c.db = database
	c.closers = append(c.closers, database.Close)

	if c.source, err = newSource(cfg.Source, database); err != nil {
		return nil, err
	}
	c.closers = append(c.closers, c.source.Close)

	engine, err := newGateEngine(cfg.Gates)
	if err != nil {
		return nil, err
	}

	if c.backend, err = newBackend(ctx, cfg.Storage); err != nil {
		return nil, err
	}
	if closer, isCloser := c.backend.(interface{ Close() error }); isCloser {
		c.closers = append(c.closers, closer.Close)
	}

	codec, err := tier.NewCodec(cfg.Storage.Format)
	if err != nil {
		return nil, err
	}
	c.writer = tier.NewWriter(c.backend, codec, logger.ComponentLogger("tier"))

	if c.recorder, err = lineage.Open(cfg.GetLineagePath(), logger.ComponentLogger("lineage")); err != nil {
		return nil, err
	}
	c.closers = append(c.closers, c.recorder.Close)

	c.store = pipeline.NewStore(database)
	c.orch = pipeline.New(c.source, engine, c.writer, c.recorder, c.store, pipelineConfig(cfg),
		pipeline.WithLogger(logger.ComponentLogger("pipeline")))

	ok = true
	return c, nil
}

// Close releases everything in reverse order of opening.
func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && !db.IsDatabaseClosed(err) {
			logger.Warnw("Failed to close component", logger.FieldError, err)
		}
	}
	c.closers = nil
}

func newSource(cfg am.SourceConfig, database *sql.DB) (source.Source, error) {
	switch cfg.Kind {
	case am.SourceKindKafka:
		return source.NewKafka(source.KafkaConfig{
			Brokers:           cfg.Kafka.Brokers,
			Topic:             cfg.Kafka.Topic,
			GroupID:           cfg.Kafka.GroupID,
			ReconnectAttempts: cfg.ReconnectAttempts,
		}, logger.ComponentLogger("source")), nil
	case am.SourceKindInbox:
		return newInbox(cfg, database), nil
	default:
		return nil, errors.NewInvalidRequestError("unknown source kind %q", cfg.Kind)
	}
}

func newInbox(cfg am.SourceConfig, database *sql.DB) *source.Inbox {
	poll := cfg.InboxPollMS
	if poll <= 0 {
		poll = 200
	}
	return source.NewInbox(database, time.Duration(poll)*time.Millisecond, cfg.ReconnectAttempts, logger.ComponentLogger("source"))
}

func newGateEngine(cfg am.GatesConfig) (*gate.Engine, error) {
	opts := []gate.Option{gate.WithLogger(logger.ComponentLogger("gate"))}
	if cfg.DenyListFile != "" {
		deny, err := gate.LoadDenyList(cfg.DenyListFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, gate.WithDenyList(deny))
	}
	return gate.NewEngine(gate.Config{
		MinLength:         cfg.MinLength,
		MaxLength:         cfg.MaxLength,
		LanguageThreshold: cfg.LanguageThreshold,
		Workers:           cfg.Workers,
	}, opts...), nil
}

func newBackend(ctx context.Context, cfg am.StorageConfig) (tier.Backend, error) {
	switch cfg.Backend {
	case am.BackendLocal:
		root := cfg.Root
		if root == "" {
			root = am.DefaultStorageRoot
		}
		backend, err := tier.NewLocalBackend(root, logger.ComponentLogger("tier"))
		if err != nil {
			return nil, err
		}
		return backend, nil
	case am.BackendGCS:
		backend, err := tier.NewGCSBackend(ctx, cfg.Bucket, cfg.Prefix, logger.ComponentLogger("tier"))
		if err != nil {
			return nil, err
		}
		return backend, nil
	default:
		return nil, errors.NewInvalidRequestError("unknown storage backend %q", cfg.Backend)
	}
}

func pipelineConfig(cfg *am.Config) pipeline.Config {
	pc := pipeline.DefaultConfig()
	pc.MaxBatch = cfg.Source.MaxBatch
	pc.MaxWait = cfg.Source.MaxWait()
	pc.FetchRetry.Attempts = cfg.Pulse.FetchAttempts
	pc.FetchRetry.Initial = cfg.Pulse.FetchBackoff()
	pc.AppendRetry.Attempts = cfg.Lineage.AppendAttempts
	pc.AppendRetry.Initial = cfg.Lineage.Backoff()
	return pc
}
