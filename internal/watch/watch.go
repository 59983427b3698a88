package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"tubebatch/internal/storage"
)

const (
	DefaultSettle = 2 * time.Second
	minPoll       = 10 * time.Millisecond
)

type Options struct {
	// Extensions defaults to storage.WatchExtensions.
	Extensions []string
	// Settle is how long a file size must stay unchanged before the file is
	// reported.
	Settle time.Duration
	Logger *slog.Logger
}

// Watcher reports new video files that appear directly inside one directory.
type Watcher struct {
	dir        string
	extensions []string
	settle     time.Duration
	logger     *slog.Logger
}

type pending struct {
	size  int64
	since time.Time
}

func New(dir string, opts Options) *Watcher {
	if len(opts.Extensions) == 0 {
		opts.Extensions = storage.WatchExtensions
	}
	if opts.Settle <= 0 {
		opts.Settle = DefaultSettle
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Watcher{
		dir:        dir,
		extensions: opts.Extensions,
		settle:     opts.Settle,
		logger:     opts.Logger,
	}
}

func (w *Watcher) Dir() string {
	return w.dir
}

// Run blocks until ctx is done, calling onFile once for each video file that
// is created in or moved into the directory, after its size has settled.
func (w *Watcher) Run(ctx context.Context, onFile func(path string)) error {
	info, err := os.Stat(w.dir)
	if err != nil {
		return fmt.Errorf("failed to watch directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", w.dir)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	w.logger.Info("Watching folder", "dir", w.dir, "settle", w.settle)

	ticker := time.NewTicker(max(w.settle/4, minPoll))
	defer ticker.Stop()

	waiting := make(map[string]*pending)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Stopped watching folder", "dir", w.dir)
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(event, waiting)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watcher error", "dir", w.dir, "error", err)

		case now := <-ticker.C:
			for path, p := range waiting {
				info, err := os.Stat(path)
				if err != nil {
					delete(waiting, path)
					continue
				}
				if info.Size() != p.size {
					p.size = info.Size()
					p.since = now
					continue
				}
				if now.Sub(p.since) < w.settle {
					continue
				}
				delete(waiting, path)
				w.logger.Debug("New video detected", "path", path, "size", p.size)
				onFile(path)
			}
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event, waiting map[string]*pending) {
	path := event.Name
	if filepath.Dir(path) != filepath.Clean(w.dir) {
		return
	}

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		delete(waiting, path)
		return
	case event.Has(fsnotify.Create):
	case event.Has(fsnotify.Write):
		if p, ok := waiting[path]; ok {
			p.since = time.Now()
		}
		return
	default:
		return
	}

	if !storage.IsVideoFile(path, w.extensions) {
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}
	if p, ok := waiting[path]; ok {
		p.size = info.Size()
		p.since = time.Now()
		return
	}
	waiting[path] = &pending{size: info.Size(), since: time.Now()}
}
