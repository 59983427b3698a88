package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

type LocalSource struct {
	dir        string
	recursive  bool
	extensions []string
}

func NewLocalSource(dir string, recursive bool, extensions []string) *LocalSource {
	if len(extensions) == 0 {
		extensions = QueueExtensions
	}
	return &LocalSource{
		dir:        dir,
		recursive:  recursive,
		extensions: extensions,
	}
}

func (s *LocalSource) Videos(ctx context.Context) ([]string, error) {
	info, err := os.Stat(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", s.dir)
	}

	var videos []string
	err = filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != s.dir && !s.recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if IsVideoFile(d.Name(), s.extensions) {
			videos = append(videos, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", s.dir, err)
	}

	sort.Strings(videos)
	return videos, nil
}

// EnsureDir creates dir and reports whether it is usable as an output folder.
func EnsureDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("output directory is not set")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}
