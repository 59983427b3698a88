package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// QueueExtensions are picked up when a folder is added to the queue.
var QueueExtensions = []string{".mp4", ".mkv", ".avi", ".mov"}

// WatchExtensions are picked up by the folder watcher.
var WatchExtensions = []string{".mp4", ".avi", ".mkv", ".mov", ".flv", ".wmv"}

// VideoSource yields local paths of video files ready to be queued.
type VideoSource interface {
	Videos(ctx context.Context) ([]string, error)
}

func IsVideoFile(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return false
	}
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// ParseGCSURL splits gs://bucket/prefix into its parts.
func ParseGCSURL(raw string) (bucket, prefix string, err error) {
	rest, ok := strings.CutPrefix(raw, "gs://")
	if !ok {
		return "", "", fmt.Errorf("not a gs:// URL: %q", raw)
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("missing bucket in %q", raw)
	}
	return bucket, prefix, nil
}

func IsGCSURL(raw string) bool {
	return strings.HasPrefix(raw, "gs://")
}
