package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tubebatch/internal/queue"
	"tubebatch/internal/session"
	"tubebatch/internal/storage"
)

var (
	runQueue       queueFlags
	runSaveSession string
	runDryRun      bool
)

var runCmd = &cobra.Command{
	Use:   "run [files|folders|gs://bucket/prefix]...",
	Short: "Process and upload a queue of videos",
	Long: `Build a queue from files, folders, GCS prefixes and/or a saved session,
edit every video with its preset and upload it to its account.

Press Ctrl+C once to stop after the current video, twice to abort.`,
	RunE: runQueueCmd,
}

func init() {
	runQueue.register(runCmd)
	runCmd.Flags().StringVar(&runSaveSession, "save-session", "", "Save the assembled queue to this session file before running")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Validate the queue without processing anything")
	rootCmd.AddCommand(runCmd)
}

func runQueueCmd(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	cfg, svc, err := openService(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	builder := svc.NewBuilder()
	batch, err := runQueue.assemble(ctx, cmd, cfg, builder, args)
	if err != nil {
		return err
	}
	if builder.Len() == 0 {
		return fmt.Errorf("nothing to run, pass files, folders or --session")
	}

	if runSaveSession != "" {
		if err := session.Save(runSaveSession, builder.Session(batch)); err != nil {
			return err
		}
		fmt.Println(successStyle.Render("Session saved to " + runSaveSession))
	}

	if err := storage.EnsureDir(batch.OutputFolder); err != nil {
		return fmt.Errorf("failed to prepare output folder: %w", err)
	}

	tasks, err := builder.Build(batch)
	if err != nil {
		return err
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("Tubebatch: %d video(s)", len(tasks))))
	printPlan(tasks)
	if batch.Schedule != "" {
		fmt.Println(infoStyle.Render(fmt.Sprintf("Publishing at %s %s", batch.Schedule, svc.Location())))
	}

	if runDryRun {
		fmt.Println(successStyle.Render("Queue is valid"))
		return nil
	}

	canceler := queue.NewCanceler()
	stop := handleInterrupts(canceler.Cancel, cancel)
	defer stop()

	summary, err := svc.Run(ctx, tasks, canceler, renderEvent)
	if err != nil {
		return err
	}

	printSummary(summary)
	if summary.Failed() {
		return fmt.Errorf("%d of %d video(s) failed", summary.Errors, summary.Total)
	}
	return nil
}

// handleInterrupts calls first on the first signal, which should let the
// current task finish, and abort on the second.
func handleInterrupts(first, abort func()) func() {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		count := 0
		for {
			select {
			case <-done:
				return
			case <-sigCh:
				count++
				if count == 1 {
					fmt.Println(warnStyle.Render("\nStopping after the current video, press Ctrl+C again to abort"))
					first()
					continue
				}
				fmt.Println(errorStyle.Render("\nAborting"))
				abort()
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}

func printPlan(tasks []queue.Task) {
	for i, t := range tasks {
		fmt.Printf("  %s %s %s %s\n",
			dimStyle.Render(fmt.Sprintf("%2d.", i+1)),
			filepath.Base(t.SourcePath),
			dimStyle.Render("->"),
			infoStyle.Render(fmt.Sprintf("%s [%s]", t.AccountName, t.PresetName)),
		)
	}
	fmt.Println()
}

func statusStyle(s queue.Status) string {
	switch s {
	case queue.StatusCompleted:
		return successStyle.Render(string(s))
	case queue.StatusError:
		return errorStyle.Render(string(s))
	case queue.StatusProcessing, queue.StatusUploading:
		return warnStyle.Render(string(s))
	}
	return string(s)
}

func renderEvent(e queue.Event) {
	switch ev := e.(type) {
	case queue.EventLog:
		fmt.Printf("%s %s\n", dimStyle.Render(ev.Time.Format("15:04:05")), ev.Message)
	case queue.EventStatus:
		line := fmt.Sprintf("  #%d %s", ev.Row+1, statusStyle(ev.Status))
		if ev.Err != nil {
			line += " " + errorStyle.Render(ev.Err.Error())
		}
		fmt.Println(line)
	case queue.EventOverall:
		fmt.Println(infoStyle.Render(fmt.Sprintf("[%3d%%] %s", ev.Percent, ev.Label)))
	case queue.EventTaskProgress:
		slog.Debug("Task progress", "row", ev.Row+1, "percent", fmt.Sprintf("%.0f", ev.Percent))
	case queue.EventFinished:
		style := successStyle
		if ev.Canceled || ev.Failed > 0 {
			style = warnStyle
		}
		fmt.Println()
		fmt.Println(style.Render(ev.Message))
	}
}

func printSummary(s *queue.Summary) {
	fmt.Println()
	fmt.Println(titleStyle.Render("Summary"))
	for _, r := range s.Results {
		name := filepath.Base(r.SourcePath)
		switch r.Status {
		case queue.StatusCompleted:
			fmt.Printf("  %s %s %s\n", successStyle.Render("✓"), name, infoStyle.Render(r.URL))
		case queue.StatusError:
			fmt.Printf("  %s %s %s\n", errorStyle.Render("✗"), name, errorStyle.Render(errString(r.Err)))
		default:
			fmt.Printf("  %s %s %s\n", warnStyle.Render("•"), name, statusStyle(r.Status))
		}
	}
	if n := s.Skipped(); n > 0 {
		fmt.Println(warnStyle.Render(fmt.Sprintf("  %d video(s) not started", n)))
	}
	fmt.Printf("\n  %s %d/%d in %s\n", dimStyle.Render("Completed"), s.Completed, s.Total, s.Duration().Round(time.Second))
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

