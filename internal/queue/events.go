package queue

import (
	"time"

	"github.com/google/uuid"
)

// Event is one notification from a running worker. The concrete types are
// EventLog, EventOverall, EventStatus, EventTaskProgress and EventFinished.
type Event interface {
	event()
}

type EventLog struct {
	Time    time.Time
	Message string
}

type EventOverall struct {
	Percent int
	Label   string
}

type EventStatus struct {
	Row    int
	TaskID uuid.UUID
	Status Status
	Err    error
}

type EventTaskProgress struct {
	Row     int
	Percent float64
}

// EventFinished is sent exactly once per run, as the last event.
type EventFinished struct {
	Message   string
	Err       bool
	Canceled  bool
	Completed int
	Failed    int
}

func (EventLog) event()          {}
func (EventOverall) event()      {}
func (EventStatus) event()       {}
func (EventTaskProgress) event() {}
func (EventFinished) event()     {}

type Result struct {
	TaskID     uuid.UUID
	Row        int
	SourcePath string
	Account    string
	Status     Status
	OutputPath string
	VideoID    string
	URL        string
	Err        error
}

type Summary struct {
	RunID     uuid.UUID
	Started   time.Time
	Finished  time.Time
	Results   []Result
	Total     int
	Completed int
	Errors    int
	Canceled  bool
}

// Failed reports whether any task ended in Error.
func (s *Summary) Failed() bool {
	return s.Errors > 0
}

// Skipped is the number of tasks never started because the run stopped early.
func (s *Summary) Skipped() int {
	return s.Total - len(s.Results)
}

func (s *Summary) Duration() time.Duration {
	return s.Finished.Sub(s.Started)
}
