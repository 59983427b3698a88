package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tubebatch/internal/accounts"
	"tubebatch/internal/distribution"
	"tubebatch/internal/presets"
	"tubebatch/internal/queue"
	"tubebatch/internal/session"
	"tubebatch/internal/storage"
)

var ErrUnknownAccount = errors.New("account is not linked")

// ValidationError lists every reason a queue cannot start.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "queue is not ready: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) add(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

// Row is one queued video and its selections.
type Row struct {
	SourcePath    string
	Preset        string
	CredentialRef string
	// Unresolved is set when the selected account could not be found.
	Unresolved bool
}

// Batch holds the settings shared by every row.
type Batch struct {
	OutputFolder  string
	TitleTemplate string
	Description   string
	Tags          string
	Privacy       string
	Schedule      string
}

func (b Batch) Metadata() distribution.Metadata {
	return distribution.Metadata{
		Title:       b.TitleTemplate,
		Description: b.Description,
		Tags:        b.Tags,
		Privacy:     distribution.Privacy(b.Privacy),
		Schedule:    b.Schedule,
	}
}

// RemoteOpener returns a source for a gs:// URL.
type RemoteOpener func(ctx context.Context, url string) (storage.VideoSource, error)

type BuilderOptions struct {
	Location      *time.Location
	DefaultPreset string
	CacheDir      string
	Remote        RemoteOpener
	Logger        *slog.Logger
}

// Builder collects rows and turns them into validated tasks. It reads the
// preset and account stores but never writes them.
type Builder struct {
	presets  *presets.Store
	accounts *accounts.Store
	opts     BuilderOptions
	rows     []Row
}

func NewBuilder(ps *presets.Store, as *accounts.Store, opts BuilderOptions) *Builder {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.DefaultPreset == "" {
		opts.DefaultPreset = presets.NoEffects
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Remote == nil {
		cacheDir, logger := opts.CacheDir, opts.Logger
		opts.Remote = func(ctx context.Context, url string) (storage.VideoSource, error) {
			src, err := storage.NewGCSSource(ctx, url, cacheDir, logger)
			if err != nil {
				return nil, err
			}
			return src, nil
		}
	}
	return &Builder{presets: ps, accounts: as, opts: opts}
}

func (b *Builder) Rows() []Row {
	rows := make([]Row, len(b.rows))
	copy(rows, b.rows)
	return rows
}

func (b *Builder) Len() int {
	return len(b.rows)
}

func (b *Builder) Clear() {
	b.rows = nil
}

// resolveAccount turns an id, ref or display name into a credential ref. An
// empty key leaves the row without an account.
func (b *Builder) resolveAccount(key string) (string, error) {
	if key == "" {
		return "", nil
	}
	account, ok := b.accounts.Lookup(key)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownAccount, key)
	}
	return account.CredentialRef, nil
}

func (b *Builder) presetName(name string) string {
	if name == "" {
		return b.opts.DefaultPreset
	}
	return name
}

// AddFiles queues paths with one preset and account.
func (b *Builder) AddFiles(paths []string, preset, account string) error {
	ref, err := b.resolveAccount(account)
	if err != nil {
		return err
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("failed to add %s: %w", path, err)
		}
		if info.IsDir() {
			return fmt.Errorf("failed to add %s: is a directory", path)
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		b.rows = append(b.rows, Row{
			SourcePath:    abs,
			Preset:        b.presetName(preset),
			CredentialRef: ref,
		})
	}
	return nil
}

// AddFolder queues every video under dir, recursively.
func (b *Builder) AddFolder(ctx context.Context, dir, preset, account string) (int, error) {
	return b.addSource(ctx, storage.NewLocalSource(dir, true, storage.QueueExtensions), preset, account)
}

// AddRemote downloads the videos under a gs:// prefix and queues them.
func (b *Builder) AddRemote(ctx context.Context, url, preset, account string) (int, error) {
	if _, _, err := storage.ParseGCSURL(url); err != nil {
		return 0, err
	}
	src, err := b.opts.Remote(ctx, url)
	if err != nil {
		return 0, err
	}
	if c, ok := src.(io.Closer); ok {
		defer func() { _ = c.Close() }()
	}
	return b.addSource(ctx, src, preset, account)
}

func (b *Builder) addSource(ctx context.Context, src storage.VideoSource, preset, account string) (int, error) {
	if _, err := b.resolveAccount(account); err != nil {
		return 0, err
	}
	paths, err := src.Videos(ctx)
	if err != nil {
		return 0, err
	}
	if err := b.AddFiles(paths, preset, account); err != nil {
		return 0, err
	}
	return len(paths), nil
}

// FromSession replaces the rows with the session queue and returns its batch
// settings. Presets that no longer exist fall back to defaults. Rows whose
// account is gone take fallback when it is set and stay unresolved otherwise.
// Each substitution is reported as a warning.
func (b *Builder) FromSession(s *session.Session, fallback string) (Batch, []string, error) {
	fallbackRef, err := b.resolveAccount(fallback)
	if err != nil {
		return Batch{}, nil, err
	}

	var warnings []string
	rows := make([]Row, 0, len(s.Queue))
	for i, entry := range s.Queue {
		row := Row{
			SourcePath:    entry.VideoPath,
			Preset:        entry.Preset,
			CredentialRef: entry.CredentialRef,
		}
		base := filepath.Base(entry.VideoPath)

		if row.Preset != presets.NoEffects && !b.presets.Has(row.Preset) {
			warnings = append(warnings, fmt.Sprintf("row %d (%s): preset %q not found, using defaults", i+1, base, row.Preset))
			row.Preset = presets.NoEffects
		}

		if _, ok := b.accounts.FindByRef(row.CredentialRef); !ok {
			switch {
			case fallbackRef != "":
				warnings = append(warnings, fmt.Sprintf("row %d (%s): account %q not linked, using %s", i+1, base, row.CredentialRef, fallback))
				row.CredentialRef = fallbackRef
			default:
				warnings = append(warnings, fmt.Sprintf("row %d (%s): account %q not linked, select another account", i+1, base, row.CredentialRef))
				row.Unresolved = true
			}
		}
		rows = append(rows, row)
	}

	for _, w := range warnings {
		b.opts.Logger.Warn(w)
	}

	b.rows = rows
	return Batch{
		OutputFolder:  s.Batch.OutputFolder,
		TitleTemplate: s.Batch.TitleTemplate,
		Description:   s.Batch.Description,
		Tags:          s.Batch.Tags,
		Privacy:       s.Batch.Privacy,
		Schedule:      s.Batch.Schedule,
	}, warnings, nil
}

// Session snapshots the current rows and batch for saving.
func (b *Builder) Session(batch Batch) *session.Session {
	s := &session.Session{
		Batch: session.BatchSettings{
			OutputFolder:  batch.OutputFolder,
			TitleTemplate: batch.TitleTemplate,
			Description:   batch.Description,
			Tags:          batch.Tags,
			Privacy:       batch.Privacy,
			Schedule:      batch.Schedule,
		},
		Queue: make([]session.Entry, 0, len(b.rows)),
	}
	for _, row := range b.rows {
		s.Queue = append(s.Queue, session.Entry{
			VideoPath:     row.SourcePath,
			CredentialRef: row.CredentialRef,
			Preset:        row.Preset,
		})
	}
	return s
}

// Build validates the rows against batch and the current stores. It returns
// every problem at once as a *ValidationError.
func (b *Builder) Build(batch Batch) ([]queue.Task, error) {
	verr := &ValidationError{}

	if len(b.rows) == 0 {
		verr.add("queue is empty")
	}

	output := strings.TrimSpace(batch.OutputFolder)
	if output == "" {
		verr.add("output folder is not set")
	} else if info, err := os.Stat(output); err != nil || !info.IsDir() {
		verr.add("output folder %s does not exist", output)
	}

	meta := batch.Metadata()
	if err := meta.Validate(b.opts.Location); err != nil {
		verr.add("%v", err)
	} else {
		meta.Privacy, _ = distribution.ParsePrivacy(string(meta.Privacy))
	}

	tasks := make([]queue.Task, 0, len(b.rows))
	for i, row := range b.rows {
		label := fmt.Sprintf("row %d (%s)", i+1, filepath.Base(row.SourcePath))

		if _, err := os.Stat(row.SourcePath); err != nil {
			verr.add("%s: source file not found", label)
		}

		var account accounts.Account
		switch {
		case row.CredentialRef == "":
			verr.add("%s: no account selected", label)
		default:
			a, ok := b.accounts.FindByRef(row.CredentialRef)
			if !ok {
				verr.add("%s: account %q is not linked", label, row.CredentialRef)
			}
			account = a
		}

		edit, err := b.presets.Resolve(row.Preset)
		if err == nil {
			err = edit.Validate()
		}
		if err != nil {
			verr.add("%s: %v", label, err)
		}

		task := queue.NewTask(i, row.SourcePath, output)
		task.Edit = edit
		task.Metadata = meta
		task.CredentialRef = row.CredentialRef
		task.AccountName = account.Name
		task.PresetName = row.Preset
		tasks = append(tasks, task)
	}

	if len(verr.Problems) > 0 {
		return nil, verr
	}
	return tasks, nil
}
