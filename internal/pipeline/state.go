package pipeline

import (
	"sync"

	"github.com/google/uuid"
)

// RunState is the single-flight guard for pipeline runs. At most one run
// owns the state between TryStart and Finish; concurrent starters are told
// the current status and handed the last completed result instead of being
// queued.
type RunState struct {
	mu         sync.Mutex
	running    bool
	runID      string
	status     Status
	lastResult *Result
}

func NewRunState() *RunState {
	return &RunState{status: StatusIdle}
}

// TryStart claims the run slot. It returns the run id and true on success;
// when a run is already active it returns that run's id and false.
func (s *RunState) TryStart() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return s.runID, false
	}
	s.running = true
	s.runID = uuid.NewString()
	s.status = StatusFetching
	return s.runID, true
}

// SetStatus records stage progress for the active run.
func (s *RunState) SetStatus(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.status = status
	}
}

// Finish releases the run slot and stores the result for later Snapshot
// calls.
func (s *RunState) Finish(r Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = false
	s.runID = ""
	if r.Success {
		s.status = StatusCompleted
	} else {
		s.status = StatusFailed
	}
	s.lastResult = &r
}

// Snapshot reports whether a run is active, the current status, and a copy
// of the last completed result (nil when no run has finished yet).
func (s *RunState) Snapshot() (bool, Status, *Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var last *Result
	if s.lastResult != nil {
		cp := *s.lastResult
		last = &cp
	}
	return s.running, s.status, last
}
