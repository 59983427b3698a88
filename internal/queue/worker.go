package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"tubebatch/internal/distribution"
	"tubebatch/internal/video"
)

const (
	defaultEventBuffer  = 256
	defaultOutputSuffix = "_processed"

	finishedMessage = "Queue processing finished!"
	canceledMessage = "Queue processing cancelled."
)

type Transformer interface {
	Transform(ctx context.Context, req video.TransformRequest) (string, error)
}

type Option func(*Worker)

// WithCancel shares a cancel flag owned by the caller.
func WithCancel(c *Canceler) Option {
	return func(w *Worker) {
		if c != nil {
			w.cancel = c
		}
	}
}

func WithEventBuffer(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.bufferSize = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		if now != nil {
			w.now = now
		}
	}
}

func WithOutputSuffix(suffix string) Option {
	return func(w *Worker) {
		w.suffix = suffix
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// Worker runs a queue of tasks one at a time: transform, then upload. A
// Worker is single use. Callers must drain Events until it is closed.
type Worker struct {
	transformer Transformer
	uploader    distribution.Uploader
	cancel      *Canceler
	bufferSize  int
	now         func() time.Time
	suffix      string
	logger      *slog.Logger

	events  chan Event
	started atomic.Bool
}

func NewWorker(transformer Transformer, uploader distribution.Uploader, opts ...Option) *Worker {
	w := &Worker{
		transformer: transformer,
		uploader:    uploader,
		cancel:      NewCanceler(),
		bufferSize:  defaultEventBuffer,
		now:         time.Now,
		suffix:      defaultOutputSuffix,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.events = make(chan Event, w.bufferSize)
	return w
}

func (w *Worker) Events() <-chan Event {
	return w.events
}

func (w *Worker) Canceler() *Canceler {
	return w.cancel
}

// Run processes tasks in order and returns the outcome of each one that was
// started. Task failures are recorded, never returned. Run closes the event
// stream before returning.
func (w *Worker) Run(ctx context.Context, tasks []Task) *Summary {
	if !w.started.CompareAndSwap(false, true) {
		w.logger.Error("Worker already used, create a new one per run")
		return &Summary{RunID: uuid.Nil, Total: len(tasks)}
	}
	defer close(w.events)

	queue := make([]Task, len(tasks))
	copy(queue, tasks)

	summary := &Summary{
		RunID:   uuid.New(),
		Started: w.now(),
		Total:   len(queue),
	}

	w.logger.Info("Queue started", "run_id", summary.RunID, "tasks", len(queue))

	total := len(queue)
	for i, task := range queue {
		if w.cancel.Canceled() || ctx.Err() != nil {
			w.logf("Cancellation requested. Stopping queue before %s.", filepath.Base(task.SourcePath))
			summary.Canceled = true
			break
		}

		result, stop := w.runTask(ctx, task, i, total)
		summary.Results = append(summary.Results, result)

		switch result.Status {
		case StatusCompleted:
			summary.Completed++
		case StatusError:
			summary.Errors++
		}

		if stop {
			summary.Canceled = true
			break
		}
	}

	summary.Finished = w.now()

	message := finishedMessage
	if summary.Canceled {
		message = canceledMessage
	} else {
		w.emit(EventOverall{Percent: 100, Label: fmt.Sprintf("Finished %d/%d", total, total)})
	}

	w.logger.Info("Queue finished",
		"run_id", summary.RunID,
		"completed", summary.Completed,
		"failed", summary.Errors,
		"canceled", summary.Canceled,
		"duration", summary.Duration(),
	)

	w.emit(EventFinished{
		Message:   message,
		Err:       false,
		Canceled:  summary.Canceled,
		Completed: summary.Completed,
		Failed:    summary.Errors,
	})

	return summary
}

// runTask executes one task. stop is true when the run must end after it,
// which only happens on cancellation.
func (w *Worker) runTask(ctx context.Context, task Task, index, total int) (result Result, stop bool) {
	result = Result{
		TaskID:     task.ID,
		Row:        task.Row,
		SourcePath: task.SourcePath,
		Account:    task.AccountName,
		Status:     StatusQueued,
	}
	base := filepath.Base(task.SourcePath)

	setStatus := func(next Status, err error) {
		if !result.Status.CanTransition(next) {
			w.logger.Warn("Ignoring invalid status transition", "row", task.Row, "from", result.Status, "to", next)
			return
		}
		result.Status = next
		w.emit(EventStatus{Row: task.Row, TaskID: task.ID, Status: next, Err: err})
	}

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			result.Err = err
			w.logger.Error("Task panicked", "row", task.Row, "file", base, "panic", r)
			w.logf("Error processing %s: %v", base, err)
			setStatus(StatusError, err)
			stop = false
		}
	}()

	setStatus(StatusProcessing, nil)
	w.logf("Processing: %s", base)
	w.emit(EventOverall{
		Percent: index * 100 / total,
		Label:   fmt.Sprintf("Processing %d/%d", index+1, total),
	})
	w.emit(EventTaskProgress{Row: task.Row, Percent: 0})

	dest := w.destPath(task)
	output, err := w.transformer.Transform(ctx, video.TransformRequest{
		SourcePath: task.SourcePath,
		DestPath:   dest,
		Config:     task.Edit,
		Cancel:     w.cancel,
		OnProgress: w.progressSink(task.Row),
	})
	if err != nil {
		if errors.Is(err, video.ErrCanceled) || ctx.Err() != nil {
			result.Err = err
			w.logf("Processing cancelled: %s", base)
			return result, true
		}
		result.Err = err
		w.logf("Processing failed for %s: %v", base, err)
		setStatus(StatusError, err)
		return result, false
	}
	if output == "" {
		output = dest
	}
	result.OutputPath = output

	meta := task.Metadata.Resolve(task.SourcePath)

	setStatus(StatusUploading, nil)
	w.emit(EventTaskProgress{Row: task.Row, Percent: 0})
	w.logf("Uploading: %s", filepath.Base(output))

	resp, err := w.uploader.Upload(ctx, distribution.UploadRequest{
		FilePath:      output,
		Metadata:      meta,
		CredentialRef: task.CredentialRef,
		OnProgress:    w.progressSink(task.Row),
	})
	if err != nil {
		result.Err = err
		if ctx.Err() != nil {
			w.logf("Upload cancelled: %s", filepath.Base(output))
			return result, true
		}
		if errors.Is(err, distribution.ErrCredentialInvalid) {
			w.logf("Upload failed for %s: credentials for %s need to be linked again: %v", base, accountLabel(task), err)
		} else {
			w.logf("Upload failed for %s: %v", base, err)
		}
		setStatus(StatusError, err)
		return result, false
	}

	result.VideoID = resp.ID
	result.URL = resp.URL
	w.emit(EventTaskProgress{Row: task.Row, Percent: 100})
	setStatus(StatusCompleted, nil)
	w.logf("Upload complete: %s", resp.URL)
	return result, false
}

func (w *Worker) destPath(task Task) string {
	base := filepath.Base(task.SourcePath)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(task.DestDir, fmt.Sprintf("%s%s_%d.mp4", name, w.suffix, w.now().UnixNano()))
}

// progressSink clamps values to [0,100]. Progress is advisory, so updates are
// dropped rather than stalling the run when the buffer is full.
func (w *Worker) progressSink(row int) func(float64) {
	return func(percent float64) {
		if percent < 0 {
			percent = 0
		}
		if percent > 100 {
			percent = 100
		}
		select {
		case w.events <- EventTaskProgress{Row: row, Percent: percent}:
		default:
		}
	}
}

func (w *Worker) emit(e Event) {
	w.events <- e
}

func (w *Worker) logf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	w.logger.Debug(msg)
	w.emit(EventLog{Time: w.now(), Message: msg})
}

func accountLabel(task Task) string {
	if task.AccountName != "" {
		return task.AccountName
	}
	return task.CredentialRef
}
