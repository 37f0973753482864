package tier

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"

	"github.com/teranos/curate/errors"
	"github.com/teranos/curate/logger"
)

// GCSBackend stores artifacts as objects in a Cloud Storage bucket. Publish
// uses a DoesNotExist precondition: GCS finalizes an object only when the
// upload completes, and a 412 means the key was already published.
type GCSBackend struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
	prefix string
	logger *zap.SugaredLogger
}

// NewGCSBackend connects with application default credentials.
func NewGCSBackend(ctx context.Context, bucket, prefix string, log *zap.SugaredLogger) (*GCSBackend, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create GCS client")
	}
	if log == nil {
		log = logger.ComponentLogger("tier")
	}
	return &GCSBackend{
		client: client,
		bucket: client.Bucket(bucket),
		name:   bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: log,
	}, nil
}

// Close releases the client.
func (b *GCSBackend) Close() error {
	return b.client.Close()
}

func (b *GCSBackend) objectName(key string) string {
	if b.prefix == "" {
		return key
	}
	return b.prefix + "/" + key
}

// Location implements Backend.
func (b *GCSBackend) Location(key string) string {
	return "gs://" + b.name + "/" + b.objectName(key)
}

// Publish implements Backend.
func (b *GCSBackend) Publish(ctx context.Context, key string, data []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	w := b.bucket.Object(b.objectName(key)).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		if isPreconditionFailed(err) {
			b.logger.Debugw("Artifact already published", logger.FieldKey, key)
			return nil
		}
		return errors.Wrapf(err, "failed to write gs object %s", key)
	}
	if err := w.Close(); err != nil {
		if isPreconditionFailed(err) {
			b.logger.Debugw("Artifact already published", logger.FieldKey, key)
			return nil
		}
		return errors.Wrapf(err, "failed to finalize gs object %s", key)
	}
	return nil
}

// Get implements Backend.
func (b *GCSBackend) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := b.bucket.Object(b.objectName(key)).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, errors.Mark(errors.Wrapf(err, "artifact %s", key), errors.ErrNotFound)
		}
		return nil, errors.Wrapf(err, "failed to open gs object %s", key)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read gs object %s", key)
	}
	return data, nil
}

// List implements Backend.
func (b *GCSBackend) List(ctx context.Context, prefix string) ([]string, error) {
	full := b.objectName(prefix)
	if prefix == "" && b.prefix != "" {
		full = b.prefix + "/"
	}

	var keys []string
	it := b.bucket.Objects(ctx, &storage.Query{Prefix: full})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to list gs prefix %q", prefix)
		}
		key := attrs.Name
		if b.prefix != "" {
			key = strings.TrimPrefix(key, b.prefix+"/")
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Delete implements Backend.
func (b *GCSBackend) Delete(ctx context.Context, key string) error {
	err := b.bucket.Object(b.objectName(key)).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return errors.Wrapf(err, "failed to delete gs object %s", key)
	}
	return nil
}

// isPreconditionFailed reports whether err is the HTTP 412 returned when a
// DoesNotExist precondition fails.
func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusPreconditionFailed
	}
	return false
}
