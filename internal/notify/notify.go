package notify

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"tubebatch/internal/queue"
)

// Notifier is told about every run that reaches its Finished event.
type Notifier interface {
	RunFinished(ctx context.Context, summary *queue.Summary) error
}

type Nop struct{}

func (Nop) RunFinished(context.Context, *queue.Summary) error { return nil }

// maxListed caps how many failed rows are spelled out in one message.
const maxListed = 10

// FormatSummary renders a run summary as plain text.
func FormatSummary(s *queue.Summary) string {
	var b strings.Builder

	switch {
	case s.Canceled:
		b.WriteString("tubebatch: queue cancelled\n")
	case s.Failed():
		b.WriteString("tubebatch: queue finished with errors\n")
	default:
		b.WriteString("tubebatch: queue finished\n")
	}

	fmt.Fprintf(&b, "Completed: %d/%d\n", s.Completed, s.Total)
	if s.Errors > 0 {
		fmt.Fprintf(&b, "Failed: %d\n", s.Errors)
	}
	if skipped := s.Skipped(); skipped > 0 {
		fmt.Fprintf(&b, "Not started: %d\n", skipped)
	}
	if d := s.Duration(); d > 0 {
		fmt.Fprintf(&b, "Duration: %s\n", d.Round(time.Second))
	}

	listed := 0
	for _, r := range s.Results {
		if r.Status != queue.StatusError {
			continue
		}
		if listed == maxListed {
			fmt.Fprintf(&b, "... and %d more\n", s.Errors-listed)
			break
		}
		fmt.Fprintf(&b, "x %s: %v\n", filepath.Base(r.SourcePath), r.Err)
		listed++
	}

	for _, r := range s.Results {
		if r.Status == queue.StatusCompleted && r.URL != "" {
			fmt.Fprintf(&b, "+ %s %s\n", filepath.Base(r.SourcePath), r.URL)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}
