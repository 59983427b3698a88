package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

type objectStore interface {
	List(ctx context.Context, bucket, prefix string) ([]string, error)
	Open(ctx context.Context, bucket, name string) (io.ReadCloser, error)
	Close() error
}

// GCSSource downloads the videos under a bucket prefix into a local cache so
// they can be queued like local files.
type GCSSource struct {
	objects  objectStore
	bucket   string
	prefix   string
	cacheDir string
	logger   *slog.Logger
}

func NewGCSSource(ctx context.Context, url, cacheDir string, logger *slog.Logger) (*GCSSource, error) {
	bucket, prefix, err := ParseGCSURL(url)
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return newGCSSource(&gcsObjects{client: client}, bucket, prefix, cacheDir, logger), nil
}

func newGCSSource(objects objectStore, bucket, prefix, cacheDir string, logger *slog.Logger) *GCSSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &GCSSource{
		objects:  objects,
		bucket:   bucket,
		prefix:   prefix,
		cacheDir: cacheDir,
		logger:   logger,
	}
}

func (s *GCSSource) Close() error {
	return s.objects.Close()
}

func (s *GCSSource) Videos(ctx context.Context) ([]string, error) {
	names, err := s.objects.List(ctx, s.bucket, s.prefix)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, name := range names {
		if !IsVideoFile(name, QueueExtensions) {
			continue
		}

		localPath, err := s.cachePath(name)
		if err != nil {
			return nil, err
		}

		if _, err := os.Stat(localPath); err == nil {
			s.logger.Debug("Using cached object", "object", name, "path", localPath)
			paths = append(paths, localPath)
			continue
		}

		s.logger.Info("Downloading object", "bucket", s.bucket, "object", name)
		if err := s.download(ctx, name, localPath); err != nil {
			return nil, fmt.Errorf("failed to download gs://%s/%s: %w", s.bucket, name, err)
		}
		paths = append(paths, localPath)
	}

	if len(paths) == 0 {
		return nil, fmt.Errorf("no video files found in gs://%s/%s", s.bucket, s.prefix)
	}
	return paths, nil
}

func (s *GCSSource) cachePath(name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("unsafe object name %q", name)
	}
	return filepath.Join(s.cacheDir, s.bucket, clean), nil
}

func (s *GCSSource) download(ctx context.Context, name, localPath string) error {
	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	r, err := s.objects.Open(ctx, s.bucket, name)
	if err != nil {
		return fmt.Errorf("failed to create reader: %w", err)
	}
	defer func() { _ = r.Close() }()

	tmp, err := os.CreateTemp(filepath.Dir(localPath), ".download-*")
	if err != nil {
		return fmt.Errorf("failed to create local file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to download file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close local file: %w", err)
	}
	return os.Rename(tmp.Name(), localPath)
}

type gcsObjects struct {
	client *storage.Client
}

func (g *gcsObjects) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	it := g.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})

	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		if strings.HasSuffix(attrs.Name, "/") {
			continue
		}
		names = append(names, attrs.Name)
	}
	return names, nil
}

func (g *gcsObjects) Open(ctx context.Context, bucket, name string) (io.ReadCloser, error) {
	return g.client.Bucket(bucket).Object(name).NewReader(ctx)
}

func (g *gcsObjects) Close() error {
	return g.client.Close()
}
