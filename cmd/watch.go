package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"tubebatch/internal/app"
	"tubebatch/internal/queue"
	"tubebatch/internal/storage"
	"tubebatch/internal/watch"
)

var (
	watchQueue  queueFlags
	watchSettle time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Process and upload videos as they appear in a folder",
	Long: `Watch a folder and run every new video through the queue with the
default preset and account. Videos are handled one at a time in arrival order.

Press Ctrl+C once to stop after the current video, twice to abort.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchQueue.register(watchCmd)
	watchCmd.Flags().DurationVar(&watchSettle, "settle", 0, "How long a file must stop growing before it is picked up (default from config)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	cfg, svc, err := openService(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	dir := cfg.Watch.Dir
	if len(args) == 1 {
		dir = args[0]
	}
	if dir == "" {
		return errors.New("no folder to watch, pass one or set watch.dir in config.yaml")
	}

	builder := svc.NewBuilder()
	batch, err := watchQueue.assemble(ctx, cmd, cfg, builder, nil)
	if err != nil {
		return err
	}
	builder.Clear()

	preset := watchQueue.preset
	account := watchQueue.account
	if account == "" {
		account = cfg.Defaults.Account
	}
	if account == "" {
		return errors.New("no account for watched videos, pass --account or set defaults.account")
	}

	if err := storage.EnsureDir(batch.OutputFolder); err != nil {
		return fmt.Errorf("failed to prepare output folder: %w", err)
	}
	if sameDir(dir, batch.OutputFolder) {
		return errors.New("output folder must differ from the watched folder")
	}

	settle := cfg.Watch.Settle
	if watchSettle > 0 {
		settle = watchSettle
	}
	w := watch.New(dir, watch.Options{Settle: settle, Logger: slog.Default()})

	watchCtx, stopWatching := context.WithCancel(ctx)
	defer stopWatching()

	canceler := queue.NewCanceler()
	stop := handleInterrupts(func() {
		canceler.Cancel()
		stopWatching()
	}, cancel)
	defer stop()

	fmt.Println(titleStyle.Render("Watching " + w.Dir()))

	files := make(chan string, 64)
	g, gctx := errgroup.WithContext(watchCtx)

	g.Go(func() error {
		defer close(files)
		return w.Run(gctx, func(path string) {
			select {
			case files <- path:
			case <-gctx.Done():
			}
		})
	})

	g.Go(func() error {
		for path := range files {
			if canceler.Canceled() {
				continue
			}
			fmt.Println(infoStyle.Render("New video: " + filepath.Base(path)))

			tasks, err := tasksFor(builder, path, batch, preset, account)
			if err != nil {
				fmt.Println(errorStyle.Render(fmt.Sprintf("Skipping %s: %v", filepath.Base(path), err)))
				continue
			}

			// ctx rather than gctx so that the current upload survives the
			// first interrupt.
			summary, err := svc.Run(ctx, tasks, canceler, renderEvent)
			if err != nil {
				return err
			}
			printSummary(summary)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	fmt.Println(successStyle.Render("Stopped watching"))
	return nil
}

// tasksFor builds a single-video queue from the shared builder.
func tasksFor(b *app.Builder, path string, batch app.Batch, preset, account string) ([]queue.Task, error) {
	b.Clear()
	if err := b.AddFiles([]string{path}, preset, account); err != nil {
		return nil, err
	}
	return b.Build(batch)
}

func sameDir(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}
