package tier

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/curate/errors"
	"github.com/teranos/curate/logger"
	"github.com/teranos/curate/record"
)

// ErrWrite marks a failed artifact encode or publish.
var ErrWrite = errors.New("artifact write failed")

// Writer encodes and publishes the four tiers of a run.
type Writer struct {
	backend Backend
	codec   Codec
	logger  *zap.SugaredLogger
}

// NewWriter creates a tier writer.
func NewWriter(backend Backend, codec Codec, log *zap.SugaredLogger) *Writer {
	if log == nil {
		log = logger.ComponentLogger("tier")
	}
	return &Writer{backend: backend, codec: codec, logger: log}
}

// Backend returns the underlying object store.
func (w *Writer) Backend() Backend {
	return w.backend
}

// Codec returns the artifact codec.
func (w *Writer) Codec() Codec {
	return w.codec
}

// Write publishes the raw batch, the accepted and rejected partitions, and one
// curated file per UTC day of the accepted records. Accepted and rejected are
// written even when empty. Calling Write again for the same run is safe:
// already published keys are left untouched.
func (w *Writer) Write(ctx context.Context, runID string, raw []record.Raw, validated []record.Validated) (Paths, error) {
	start := time.Now()
	ext := w.codec.Ext()
	accepted, rejected := record.Partition(validated)

	paths := Paths{Curated: make([]string, 0)}
	var err error

	if paths.Raw, err = w.publish(ctx, TierRaw, RawKey(runID, ext), rawRows(raw)); err != nil {
		return Paths{}, err
	}
	if paths.Accepted, err = w.publish(ctx, TierAccepted, AcceptedKey(runID, ext), accepted); err != nil {
		return Paths{}, err
	}
	if paths.Rejected, err = w.publish(ctx, TierRejected, RejectedKey(runID, ext), rejected); err != nil {
		return Paths{}, err
	}

	days := groupByDay(accepted)
	for _, day := range sortedDays(days) {
		loc, err := w.publish(ctx, TierCurated, CuratedKey(day, runID, ext), days[day])
		if err != nil {
			return Paths{}, err
		}
		paths.Curated = append(paths.Curated, loc)
	}

	w.logger.Infow("Tiers written",
		logger.FieldRunID, runID,
		logger.FieldIngested, len(raw),
		logger.FieldAccepted, len(accepted),
		logger.FieldRejected, len(rejected),
		"curated_days", len(days),
		logger.FieldDurationMS, time.Since(start).Milliseconds())

	return paths, nil
}

func (w *Writer) publish(ctx context.Context, t Tier, key string, rows []record.Validated) (string, error) {
	data, err := w.codec.Encode(ctx, t, rows)
	if err != nil {
		return "", errors.Mark(errors.Wrapf(err, "encode %s", key), ErrWrite)
	}
	if err := w.backend.Publish(ctx, key, data); err != nil {
		return "", errors.Mark(errors.Wrapf(err, "publish %s", key), ErrWrite)
	}
	w.logger.Debugw("Artifact published",
		logger.FieldTier, string(t),
		logger.FieldKey, key,
		logger.FieldCount, len(rows))
	return w.backend.Location(key), nil
}

// groupByDay partitions accepted records by the UTC day of their capture time,
// keeping arrival order inside each day.
func groupByDay(accepted []record.Validated) map[string][]record.Validated {
	days := make(map[string][]record.Validated)
	for _, v := range accepted {
		day := v.Day()
		days[day] = append(days[day], v)
	}
	return days
}

func sortedDays(days map[string][]record.Validated) []string {
	keys := make([]string, 0, len(days))
	for d := range days {
		keys = append(keys, d)
	}
	sort.Strings(keys)
	return keys
}
