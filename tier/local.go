package tier

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/curate/errors"
	"github.com/teranos/curate/logger"
)

const (
	tempPrefix   = ".tmp-"
	staleTempAge = time.Hour
)

// LocalBackend stores artifacts as files under a root directory. Publish
// writes a hidden temp file in the destination directory, fsyncs it and
// hard-links it into place, so a key either exists completely or not at all.
type LocalBackend struct {
	root   string
	logger *zap.SugaredLogger
}

// NewLocalBackend creates the root directory if needed and removes temp files
// left behind by interrupted publishes.
func NewLocalBackend(root string, log *zap.SugaredLogger) (*LocalBackend, error) {
	if log == nil {
		log = logger.ComponentLogger("tier")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create artifact root %s", root)
	}
	b := &LocalBackend{root: root, logger: log}
	if err := b.sweepTemps(time.Now().Add(-staleTempAge)); err != nil {
		return nil, err
	}
	return b, nil
}

// Root returns the artifact root directory.
func (b *LocalBackend) Root() string {
	return b.root
}

func (b *LocalBackend) path(key string) string {
	return filepath.Join(b.root, filepath.FromSlash(key))
}

// Location implements Backend.
func (b *LocalBackend) Location(key string) string {
	return b.path(key)
}

// Publish implements Backend.
func (b *LocalBackend) Publish(ctx context.Context, key string, data []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dest := b.path(key)
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", key)
	}

	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return errors.Wrapf(err, "failed to create temp file for %s", key)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "failed to write %s", key)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "failed to sync %s", key)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "failed to close %s", key)
	}

	// link fails if dest exists, unlike rename
	if err := os.Link(tmpName, dest); err != nil {
		if os.IsExist(err) {
			b.logger.Debugw("Artifact already published", logger.FieldKey, key)
			return nil
		}
		return errors.Wrapf(err, "failed to publish %s", key)
	}

	if err := syncDir(dir); err != nil {
		return errors.Wrapf(err, "failed to sync directory of %s", key)
	}
	return nil
}

// Get implements Backend.
func (b *LocalBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(b.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Mark(errors.Wrapf(err, "artifact %s", key), errors.ErrNotFound)
		}
		return nil, errors.Wrapf(err, "failed to read %s", key)
	}
	return data, nil
}

// List implements Backend.
func (b *LocalBackend) List(ctx context.Context, prefix string) ([]string, error) {
	start := b.root
	if dir := prefixDir(prefix); dir != "" {
		start = b.path(dir)
	}

	var keys []string
	err := filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), tempPrefix) {
			return nil
		}
		rel, err := filepath.Rel(b.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list %q", prefix)
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete implements Backend.
func (b *LocalBackend) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := os.Remove(b.path(key)); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to delete %s", key)
	}
	return nil
}

// sweepTemps removes temp files older than cutoff.
func (b *LocalBackend) sweepTemps(cutoff time.Time) error {
	swept := 0
	err := filepath.WalkDir(b.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasPrefix(d.Name(), tempPrefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(p); err == nil {
				swept++
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "failed to sweep temp files under %s", b.root)
	}
	if swept > 0 {
		b.logger.Infow("Removed stale temp files", logger.FieldCount, swept, logger.FieldPath, b.root)
	}
	return nil
}

// prefixDir returns the directory part of a key prefix ("" for the root).
func prefixDir(prefix string) string {
	if prefix == "" {
		return ""
	}
	if strings.HasSuffix(prefix, "/") {
		return strings.TrimSuffix(prefix, "/")
	}
	i := strings.LastIndex(prefix, "/")
	if i < 0 {
		return ""
	}
	return prefix[:i]
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
