package sync

import "time"

// RunState is the lifecycle state of one sync run.
type RunState int

// RunState values. Running becomes Resuming when the run starts from a
// non-zero checkpoint.
const (
	StateIdle RunState = iota
	StateRunning
	StateResuming
	StateCompleted
	StateFailed
)

// String returns the state name.
func (s RunState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateResuming:
		return "resuming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state ends a run.
func (s RunState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Stats accumulates counters across the batches of one sync run. The
// value is immutable; accumulation returns copies, and the run returns
// a final snapshot.
type Stats struct {
	totalFetched int
	totalIndexed int
	totalFailed  int
	startedAt    time.Time
	endedAt      time.Time
}

// NewStats creates Stats for a run starting now.
func NewStats(startedAt time.Time) Stats {
	return Stats{startedAt: startedAt}
}

// TotalFetched returns how many items were pulled from the source.
func (s Stats) TotalFetched() int { return s.totalFetched }

// TotalIndexed returns how many points were committed to the store.
func (s Stats) TotalIndexed() int { return s.totalIndexed }

// TotalFailed returns how many items failed to embed or upsert.
func (s Stats) TotalFailed() int { return s.totalFailed }

// StartedAt returns when the run began.
func (s Stats) StartedAt() time.Time { return s.startedAt }

// EndedAt returns when the run finished, zero while running.
func (s Stats) EndedAt() time.Time { return s.endedAt }

// Elapsed returns the run duration so far, or the total for a finished
// run.
func (s Stats) Elapsed() time.Duration {
	if s.endedAt.IsZero() {
		return time.Since(s.startedAt)
	}
	return s.endedAt.Sub(s.startedAt)
}

// AddBatch returns a copy with one batch's counters folded in.
func (s Stats) AddBatch(fetched, indexed, failed int) Stats {
	s.totalFetched += fetched
	s.totalIndexed += indexed
	s.totalFailed += failed
	return s
}

// Finish returns a copy stamped with the end time.
func (s Stats) Finish(endedAt time.Time) Stats {
	s.endedAt = endedAt
	return s
}

// ProgressFunc receives the running stats after each committed batch.
type ProgressFunc func(Stats)
