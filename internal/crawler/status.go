package crawler

import (
	"sync/atomic"
	"time"
)

// StatusSnapshot is a point-in-time, read-only copy of crawl progress.
type StatusSnapshot struct {
	IsRunning      bool      `json:"is_running"`
	RunID          string    `json:"run_id,omitempty"`
	CurrentID      int64     `json:"current_id"`
	RangeEnd       int64     `json:"range_end"`
	FoundCount     int64     `json:"found_count"`
	StartedAt      time.Time `json:"started_at,omitzero"`
	ElapsedSeconds int64     `json:"elapsed_seconds"`
}

// Status holds live crawl progress. The engine is the only writer; readers
// call Snapshot from any goroutine. Fields are individually atomic, so a
// snapshot taken mid-update may mix values from adjacent iterations.
type Status struct {
	running    atomic.Bool
	runID      atomic.Pointer[string]
	currentID  atomic.Int64
	rangeEnd   atomic.Int64
	found      atomic.Int64
	startedAt  atomic.Int64
	finishedAt atomic.Int64
	clock      Clock
}

// NewStatus creates an idle Status that measures elapsed time with clock.
func NewStatus(clock Clock) *Status {
	return &Status{clock: clock}
}

// tryAcquire claims the single worker slot. It returns false when a run is active.
func (s *Status) tryAcquire() bool {
	return s.running.CompareAndSwap(false, true)
}

// reset initializes progress for a run that already holds the slot.
func (s *Status) reset(runID string, startID, endID int64, now time.Time) {
	s.runID.Store(&runID)
	s.currentID.Store(startID)
	s.rangeEnd.Store(endID)
	s.found.Store(0)
	s.finishedAt.Store(0)
	s.startedAt.Store(now.UnixNano())
}

func (s *Status) setCurrent(id int64) {
	s.currentID.Store(id)
}

func (s *Status) incrementFound() int64 {
	return s.found.Add(1)
}

// release marks the run finished and frees the worker slot.
func (s *Status) release(now time.Time) {
	s.finishedAt.Store(now.UnixNano())
	s.running.Store(false)
}

// IsRunning reports whether a crawl currently holds the worker slot.
func (s *Status) IsRunning() bool {
	return s.running.Load()
}

// Snapshot returns the current progress. Elapsed time stops advancing once
// the run has finished.
func (s *Status) Snapshot() StatusSnapshot {
	snap := StatusSnapshot{
		IsRunning:  s.running.Load(),
		CurrentID:  s.currentID.Load(),
		RangeEnd:   s.rangeEnd.Load(),
		FoundCount: s.found.Load(),
	}
	if id := s.runID.Load(); id != nil {
		snap.RunID = *id
	}
	started := s.startedAt.Load()
	if started == 0 {
		return snap
	}
	snap.StartedAt = time.Unix(0, started).UTC()
	end := s.finishedAt.Load()
	if snap.IsRunning || end == 0 {
		end = s.now().UnixNano()
	}
	if elapsed := time.Duration(end - started); elapsed > 0 {
		snap.ElapsedSeconds = int64(elapsed / time.Second)
	}
	return snap
}

func (s *Status) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock.Now()
}
