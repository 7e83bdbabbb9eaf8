package mnsync

import (
	"time"
)

// State is the mutable record of the sync progression: current stage,
// attempts made within the stage, and the per-stage freshness timestamps
// the timeout rules compare against.
//
// State carries no locking: it is owned by the Reactor and mutated only on
// the tick path (single active writer).
type State struct {
	stage   Stage
	attempt uint32

	stageStartedAt    time.Time
	lastListAt        time.Time
	lastPaymentVoteAt time.Time
	lastGovernanceAt  time.Time

	lastFailureAt time.Time
	failureCount  uint32
}

// NewState returns a fresh State in StageInitial with all freshness
// timestamps set to now.
func NewState(now time.Time) *State {
	s := &State{}
	s.Reset(now)
	return s
}

// Reset puts the state back to StageInitial with fresh timestamps. The
// failure counter is deliberately preserved; it is only zero at process
// start.
func (s *State) Reset(now time.Time) {
	s.stage = StageInitial
	s.attempt = 0
	s.stageStartedAt = now
	s.lastListAt = now
	s.lastPaymentVoteAt = now
	s.lastGovernanceAt = now
	s.lastFailureAt = time.Time{}
}

// Fail moves the state to StageFailed and records the failure time, which
// gates the cooldown before the next Reset. Attempt and the per-stage
// timestamps are left untouched.
func (s *State) Fail(now time.Time) {
	s.stage = StageFailed
	s.lastFailureAt = now
	s.failureCount++
}

// Advance moves to the next stage in the fixed order, resets the attempt
// counter and stamps the new stage's freshness marker. Advancing from
// StageFailed is a programming error: callers must Reset first.
func (s *State) Advance(now time.Time) Stage {
	switch s.stage {
	case StageFailed:
		panic("mnsync: cannot advance from failed state, Reset first")
	case StageInitial:
		s.stage = StageSporks
	case StageSporks:
		s.lastListAt = now
		s.stage = StageList
	case StageList:
		s.lastPaymentVoteAt = now
		s.stage = StagePayments
	case StagePayments:
		// the governance stage is dormant, the progression ends here
		s.lastGovernanceAt = now
		s.stage = StageFinished
	case StageGovernance:
		s.stage = StageFinished
	case StageFinished:
		// terminal, nothing beyond
	}
	s.attempt = 0
	s.stageStartedAt = now
	return s.stage
}

// RefreshTimestamps stamps all per-stage freshness markers with now. Used
// while waiting on blockchain sync so the wait is not mistaken for a stage
// timeout.
func (s *State) RefreshTimestamps(now time.Time) {
	s.lastListAt = now
	s.lastPaymentVoteAt = now
	s.lastGovernanceAt = now
}

// finish jumps straight to StageFinished, bypassing the remaining stages.
// Only the regtest fast path uses this.
func (s *State) finish() {
	s.stage = StageFinished
}

func (s *State) Stage() Stage              { return s.stage }
func (s *State) Attempt() uint32           { return s.attempt }
func (s *State) FailureCount() uint32      { return s.failureCount }
func (s *State) LastFailureAt() time.Time  { return s.lastFailureAt }
func (s *State) StageStartedAt() time.Time { return s.stageStartedAt }
