package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"apartment-valuation-service/internal/config"
	"apartment-valuation-service/internal/core/domain"
	ports "apartment-valuation-service/internal/core/ports/output"
)

type gcsStore struct {
	client  *storage.Client
	bucket  string
	prefix  string
	timeout time.Duration
}

// NewGCSStore opens a Cloud Storage bucket as an object store. A GCS object
// write becomes visible only when the writer is closed, so Put is atomic.
func NewGCSStore(ctx context.Context, cfg *config.StorageConfig) (ports.ObjectStore, error) {
	if cfg.GCSBucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	var opts []option.ClientOption
	switch {
	case cfg.GCSEmulatorHost != "":
		opts = append(opts, option.WithEndpoint(strings.TrimRight(cfg.GCSEmulatorHost, "/")+"/storage/v1/"), option.WithoutAuthentication())
	case cfg.GCSCredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.GCSCredentialsFile))
	}
	opts = append(opts, option.WithScopes(storage.ScopeReadWrite))

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	timeout := cfg.OpTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	prefix := strings.Trim(cfg.GCSPrefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &gcsStore{client: client, bucket: cfg.GCSBucket, prefix: prefix, timeout: timeout}, nil
}

func (s *gcsStore) object(key string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(s.prefix + key)
}

func (s *gcsStore) Put(ctx context.Context, key string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	w := s.object(key).NewWriter(ctx)
	w.ContentType = contentTypeForKey(key)
	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		return fmt.Errorf("write gs://%s/%s: %w", s.bucket, s.prefix+key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close gs://%s/%s: %w", s.bucket, s.prefix+key, err)
	}
	return nil
}

func (s *gcsStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	r, err := s.object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("open gs://%s/%s: %w", s.bucket, s.prefix+key, err)
	}
	defer r.Close()

	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read gs://%s/%s: %w", s.bucket, s.prefix+key, err)
	}
	return body, nil
}

func (s *gcsStore) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.object(key).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat gs://%s/%s: %w", s.bucket, s.prefix+key, err)
	}
	return true, nil
}

func (s *gcsStore) List(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// the API returns names in lexical order
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: s.prefix + prefix})
	var keys []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list gs://%s/%s: %w", s.bucket, s.prefix+prefix, err)
		}
		keys = append(keys, strings.TrimPrefix(attrs.Name, s.prefix))
	}
	return keys, nil
}

func contentTypeForKey(key string) string {
	switch {
	case strings.HasSuffix(key, ".json"):
		return "application/json"
	case strings.HasSuffix(key, ".csv"):
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}
