package tier

import (
	"context"
	"path"
	"strings"

	"github.com/teranos/curate/errors"
)

// Backend is an object store for artifacts, addressed by slash-separated keys.
type Backend interface {
	// Publish atomically materializes data under key. Readers never observe a
	// partial object. An existing key is never overwritten; publishing to it
	// again succeeds without changes.
	Publish(ctx context.Context, key string, data []byte) error
	// Get returns the object; a missing key is marked errors.ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// List returns the keys starting with prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
	// Delete removes key; a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Location is the external path or URI of key, as recorded in lineage.
	Location(key string) string
}

// validateKey rejects keys that could escape the store root.
func validateKey(key string) error {
	if key == "" {
		return errors.New("empty artifact key")
	}
	if strings.HasPrefix(key, "/") || path.Clean(key) != key || strings.HasPrefix(key, "../") || key == ".." {
		return errors.Newf("invalid artifact key %q", key)
	}
	return nil
}
