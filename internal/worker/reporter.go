package worker

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/den-kezlia/torrent/internal/types"
)

// Reporter keeps a running tally of reconciled streets and, when enabled,
// rewrites a one-line status after every group.
type Reporter struct {
	out   io.Writer
	start time.Time
	now   func() time.Time

	mu       sync.Mutex
	enabled  bool
	done     int
	total    int
	failed   int
	created  int
	updated  int
	segments int
	skipped  int
}

// NewReporter creates a reporter writing to out.
func NewReporter(out io.Writer, enabled bool) *Reporter {
	return &Reporter{out: out, enabled: enabled, start: time.Now(), now: time.Now}
}

// Observe folds one snapshot into the tally. It has the ProgressFunc signature.
func (r *Reporter) Observe(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.done, r.total, r.failed = s.Completed, s.Total, s.Failed
	switch s.Last.Stats.Street {
	case types.UpsertCreated:
		r.created++
	case types.UpsertUpdated:
		r.updated++
	}
	r.segments += s.Last.Stats.UpsertedSegments
	r.skipped += s.Last.Stats.SkippedWays

	if r.enabled {
		fmt.Fprintf(r.out, "\r%s   ", r.line())
	}
}

// Finish ends the status line.
func (r *Reporter) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.enabled && r.done > 0 {
		fmt.Fprintln(r.out)
	}
}

// Summary describes the whole run in one line.
func (r *Reporter) Summary() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fmt.Sprintf("Reconciled %s in %s", r.line(), r.elapsed())
}

func (r *Reporter) line() string {
	s := fmt.Sprintf("%d/%d streets (%d created, %d updated), %d segments, %d ways skipped",
		r.done, r.total, r.created, r.updated, r.segments, r.skipped)
	if r.failed > 0 {
		s += fmt.Sprintf(", %d failed", r.failed)
	}
	return s
}

func (r *Reporter) elapsed() time.Duration {
	return r.now().Sub(r.start).Round(100 * time.Millisecond)
}
