// Package lineage keeps the append-only run manifest: one JSON line per
// completed run, in run_id order, never rewritten.
package lineage

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/teranos/curate/errors"
	"github.com/teranos/curate/logger"
)

var (
	// ErrOutOfOrder marks an append whose run_id sorts before the last entry.
	ErrOutOfOrder = errors.New("lineage entry out of order")
	// ErrLocked marks a manifest already held by another writer.
	ErrLocked = errors.New("lineage manifest locked")
	// ErrClosed marks use of a closed recorder.
	ErrClosed = errors.New("lineage recorder closed")
)

// Recorder appends entries to a manifest file. It is the single writer of the
// file: Open takes an exclusive lock and Append is serialized by a mutex.
// Each entry is written with one write call followed by fsync, so a crash
// leaves at most a torn trailing line, which the next Open truncates.
type Recorder struct {
	mu     sync.Mutex
	path   string
	f      *os.File
	size   int64
	ids    map[string]struct{}
	last   string
	logger *zap.SugaredLogger
}

// Open opens or creates the manifest at path.
func Open(path string, log *zap.SugaredLogger) (*Recorder, error) {
	if log == nil {
		log = logger.ComponentLogger("lineage")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create manifest directory for %s", path)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open manifest %s", path)
	}
	if err := lockFile(f); err != nil {
		f.Close()
		return nil, err
	}

	r := &Recorder{path: path, f: f, ids: make(map[string]struct{}), logger: log}
	if err := r.load(); err != nil {
		f.Close()
		return nil, err
	}

	log.Debugw("Lineage manifest opened",
		logger.FieldPath, path,
		logger.FieldCount, len(r.ids))
	return r, nil
}

// load indexes existing entries and drops a torn trailing line.
func (r *Recorder) load() error {
	if _, err := r.f.Seek(0, io.SeekStart); err != nil {
		return errors.Wrap(err, "failed to rewind manifest")
	}
	data, err := io.ReadAll(r.f)
	if err != nil {
		return errors.Wrapf(err, "failed to read manifest %s", r.path)
	}

	complete := data
	if i := bytes.LastIndexByte(data, '\n'); i < len(data)-1 {
		complete = data[:i+1]
		torn := len(data) - len(complete)
		if err := r.f.Truncate(int64(len(complete))); err != nil {
			return errors.Wrapf(err, "failed to truncate torn manifest tail of %s", r.path)
		}
		if err := r.f.Sync(); err != nil {
			return errors.Wrapf(err, "failed to sync manifest %s", r.path)
		}
		r.logger.Warnw("Truncated torn manifest line",
			logger.FieldPath, r.path,
			"bytes", torn)
	}
	r.size = int64(len(complete))

	entries, err := parseLines(complete)
	if err != nil {
		return errors.Wrapf(err, "manifest %s", r.path)
	}
	for _, e := range entries {
		r.ids[e.RunID] = struct{}{}
		if e.RunID > r.last {
			r.last = e.RunID
		}
	}
	return nil
}

// Append writes entry unless its run is already recorded. It returns false
// without error for an already recorded run_id.
func (r *Recorder) Append(ctx context.Context, entry Entry) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := entry.Validate(); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.f == nil {
		return false, ErrClosed
	}
	if _, ok := r.ids[entry.RunID]; ok {
		r.logger.Debugw("Lineage entry already recorded", logger.FieldRunID, entry.RunID)
		return false, nil
	}
	if entry.RunID < r.last {
		return false, errors.Mark(
			errors.Newf("run_id %s sorts before last recorded %s", entry.RunID, r.last),
			ErrOutOfOrder,
		)
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return false, errors.Wrapf(err, "failed to encode entry %s", entry.RunID)
	}
	line = append(line, '\n')

	if _, err := r.f.Write(line); err != nil {
		r.rollback()
		return false, errors.Wrapf(err, "failed to write entry %s", entry.RunID)
	}
	if err := r.f.Sync(); err != nil {
		r.rollback()
		return false, errors.Wrapf(err, "failed to sync entry %s", entry.RunID)
	}

	r.size += int64(len(line))
	r.ids[entry.RunID] = struct{}{}
	r.last = entry.RunID

	r.logger.Infow("Lineage entry appended",
		logger.FieldRunID, entry.RunID,
		logger.FieldIngested, entry.Counts.Ingested,
		logger.FieldAccepted, entry.Counts.Accepted,
		logger.FieldRejected, entry.Counts.Rejected)
	return true, nil
}

// rollback cuts a partially written line so the file ends on an entry boundary.
func (r *Recorder) rollback() {
	if err := r.f.Truncate(r.size); err != nil {
		r.logger.Errorw("Failed to roll back partial manifest write",
			logger.FieldPath, r.path,
			logger.FieldError, err)
	}
}

// Has reports whether runID is recorded.
func (r *Recorder) Has(runID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.ids[runID]
	return ok
}

// Len is the number of recorded entries.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

// Path returns the manifest path.
func (r *Recorder) Path() string {
	return r.path
}

// Close releases the manifest and its lock.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}
