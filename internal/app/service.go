package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"tubebatch/internal/accounts"
	"tubebatch/internal/distribution"
	"tubebatch/internal/notify"
	"tubebatch/internal/presets"
	"tubebatch/internal/queue"
)

var ErrRunActive = errors.New("a queue run is already in progress")

type Service struct {
	presets     *presets.Store
	accounts    *accounts.Store
	transformer queue.Transformer
	uploader    distribution.Uploader
	linker      accounts.Linker
	notifier    notify.Notifier
	builder     BuilderOptions
	eventBuffer int
	suffix      string
	logger      *slog.Logger
	closers     []io.Closer

	running atomic.Bool
}

type ServiceOptions struct {
	Presets      *presets.Store
	Accounts     *accounts.Store
	Transformer  queue.Transformer
	Uploader     distribution.Uploader
	Linker       accounts.Linker
	Notifier     notify.Notifier
	Builder      BuilderOptions
	EventBuffer  int
	OutputSuffix string
	Logger       *slog.Logger
	Closers      []io.Closer
}

func NewService(opts ServiceOptions) *Service {
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Builder.Logger == nil {
		opts.Builder.Logger = opts.Logger
	}
	return &Service{
		presets:     opts.Presets,
		accounts:    opts.Accounts,
		transformer: opts.Transformer,
		uploader:    opts.Uploader,
		linker:      opts.Linker,
		notifier:    opts.Notifier,
		builder:     opts.Builder,
		eventBuffer: opts.EventBuffer,
		suffix:      opts.OutputSuffix,
		logger:      opts.Logger,
		closers:     opts.Closers,
	}
}

func (s *Service) Presets() *presets.Store {
	return s.presets
}

func (s *Service) Accounts() *accounts.Store {
	return s.accounts
}

func (s *Service) Location() *time.Location {
	if s.builder.Location == nil {
		return time.UTC
	}
	return s.builder.Location
}

func (s *Service) NewBuilder() *Builder {
	return NewBuilder(s.presets, s.accounts, s.builder)
}

// LinkAccount runs the consent flow and records the new account.
func (s *Service) LinkAccount(ctx context.Context) (accounts.Account, error) {
	if s.linker == nil {
		return accounts.Account{}, errors.New("account linking is not configured")
	}
	return s.accounts.Add(ctx, s.linker)
}

// Run executes tasks on a fresh worker and forwards every event to onEvent
// from a single goroutine. Only one run may be active at a time. The
// notifier is called after the last event, even when ctx was cancelled.
func (s *Service) Run(ctx context.Context, tasks []queue.Task, cancel *queue.Canceler, onEvent func(queue.Event)) (*queue.Summary, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrRunActive
	}
	defer s.running.Store(false)

	opts := []queue.Option{
		queue.WithCancel(cancel),
		queue.WithLogger(s.logger),
		queue.WithEventBuffer(s.eventBuffer),
	}
	if s.suffix != "" {
		opts = append(opts, queue.WithOutputSuffix(s.suffix))
	}
	worker := queue.NewWorker(s.transformer, s.uploader, opts...)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for event := range worker.Events() {
			if onEvent != nil {
				s.forward(onEvent, event)
			}
		}
	}()

	summary := worker.Run(ctx, tasks)
	wg.Wait()

	if err := s.notifier.RunFinished(context.WithoutCancel(ctx), summary); err != nil {
		s.logger.Warn("Failed to send run notification", "error", err)
	}
	return summary, nil
}

// forward delivers one event. A panicking handler is logged and the events
// keep draining so the worker never blocks on a full channel.
func (s *Service) forward(onEvent func(queue.Event), event queue.Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("Event handler panicked", "event", fmt.Sprintf("%T", event), "panic", r)
		}
	}()
	onEvent(event)
}

func (s *Service) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
