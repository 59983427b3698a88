package queue

import (
	"sync/atomic"

	"github.com/google/uuid"

	"tubebatch/internal/distribution"
	"tubebatch/internal/video"
)

type Status string

const (
	StatusQueued     Status = "Queued"
	StatusProcessing Status = "Processing"
	StatusUploading  Status = "Uploading"
	StatusCompleted  Status = "Completed"
	StatusError      Status = "Error"
)

// CanTransition reports whether a task may move from s to next. Statuses only
// move forward and Completed and Error are terminal.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusQueued:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusUploading || next == StatusError
	case StatusUploading:
		return next == StatusCompleted || next == StatusError
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Task is a fully resolved unit of work. Everything the worker needs is
// copied in, so later changes to presets or accounts do not affect it.
type Task struct {
	ID            uuid.UUID
	Row           int
	SourcePath    string
	DestDir       string
	Edit          video.EditConfig
	Metadata      distribution.Metadata
	CredentialRef string
	AccountName   string
	PresetName    string
}

func NewTask(row int, source, destDir string) Task {
	return Task{
		ID:         uuid.New(),
		Row:        row,
		SourcePath: source,
		DestDir:    destDir,
		Edit:       video.DefaultEditConfig(),
	}
}

// Canceler is a cooperative stop flag shared between the caller and a run.
type Canceler struct {
	flag atomic.Bool
}

var _ video.CancelChecker = (*Canceler)(nil)

func NewCanceler() *Canceler {
	return &Canceler{}
}

func (c *Canceler) Cancel() {
	c.flag.Store(true)
}

func (c *Canceler) Canceled() bool {
	return c != nil && c.flag.Load()
}
