package tier

import (
	"context"
	"sort"

	"github.com/teranos/curate/errors"
)

// Orphans lists the artifact keys belonging to the given runs, typically runs
// that failed after WRITING started and therefore have no lineage entry.
func Orphans(ctx context.Context, backend Backend, runIDs []string) ([]string, error) {
	if len(runIDs) == 0 {
		return nil, nil
	}

	wanted := make(map[string]struct{}, len(runIDs))
	var keys []string
	for _, runID := range runIDs {
		wanted[runID] = struct{}{}
		for _, prefix := range runPrefixes(runID) {
			found, err := backend.List(ctx, prefix)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to list orphans of run %s", runID)
			}
			keys = append(keys, found...)
		}
	}

	curated, err := backend.List(ctx, string(TierCurated)+"/")
	if err != nil {
		return nil, errors.Wrap(err, "failed to list curated partitions")
	}
	for _, key := range curated {
		for runID := range wanted {
			if isCuratedKeyOf(key, runID) {
				keys = append(keys, key)
				break
			}
		}
	}

	sort.Strings(keys)
	return keys, nil
}

// PurgeOrphans deletes the non-raw artifacts of the given runs and returns
// the deleted keys. Raw artifacts are write-once and kept for replay.
func PurgeOrphans(ctx context.Context, backend Backend, runIDs []string) ([]string, error) {
	keys, err := Orphans(ctx, backend, runIDs)
	if err != nil {
		return nil, err
	}

	var deleted []string
	for _, key := range keys {
		if TierOf(key) == TierRaw {
			continue
		}
		if err := backend.Delete(ctx, key); err != nil {
			return deleted, err
		}
		deleted = append(deleted, key)
	}
	return deleted, nil
}
