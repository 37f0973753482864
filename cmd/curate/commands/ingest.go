package commands

import (
	"bufio"
	"bytes"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/curate/am"
	"github.com/teranos/curate/errors"
	"github.com/teranos/curate/source"
)

// IngestCmd loads a JSONL corpus into the configured source queue
var IngestCmd = &cobra.Command{
	Use:   "ingest <file.jsonl>",
	Short: "Enqueue raw records from a JSONL file",
	Long: `Enqueue one message per non-empty line of a JSONL file into the configured
source: the SQLite inbox, or the Kafka topic the pipeline consumes.

Lines are enqueued as-is; malformed ones are skipped later by the run.

Examples:
  curate ingest samples/news.jsonl
  curate ingest --chunk 100 corpus.jsonl`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

var ingestChunk int

func init() {
	IngestCmd.Flags().IntVar(&ingestChunk, "chunk", 500, "Messages per enqueue call")
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadValidConfig()
	if err != nil {
		return err
	}

	producer, closeAll, err := newProducer(cfg)
	if err != nil {
		return err
	}
	defer closeAll()

	f, err := os.Open(args[0])
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", args[0])
	}
	defer f.Close()

	ctx := cmd.Context()
	chunk := max(ingestChunk, 1)
	pending := make([][]byte, 0, chunk)
	total := 0

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		n, err := producer.Enqueue(ctx, pending...)
		total += n
		pending = pending[:0]
		return err
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		pending = append(pending, bytes.Clone(line))
		if len(pending) == chunk {
			if err := flush(); err != nil {
				return errors.Wrapf(err, "enqueued %d messages before failing", total)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "failed to read %s", args[0])
	}
	if err := flush(); err != nil {
		return errors.Wrapf(err, "enqueued %d messages before failing", total)
	}

	pterm.Success.Printfln("Enqueued %d messages into %s", total, cfg.Source.Kind)
	return nil
}

func newProducer(cfg *am.Config) (source.Producer, func(), error) {
	switch cfg.Source.Kind {
	case am.SourceKindKafka:
		p := source.NewKafkaProducer(source.KafkaConfig{
			Brokers: cfg.Source.Kafka.Brokers,
			Topic:   cfg.Source.Kafka.Topic,
		})
		return p, func() { p.Close() }, nil
	case am.SourceKindInbox:
		database, err := openDatabase(cfg.GetDatabasePath())
		if err != nil {
			return nil, nil, err
		}
		inbox := newInbox(cfg.Source, database)
		return inbox, func() { database.Close() }, nil
	default:
		return nil, nil, errors.NewInvalidRequestError("unknown source kind %q", cfg.Source.Kind)
	}
}
