package mnsync

// Stage is one phase of the bootstrap sync progression. The numeric values
// are part of the diagnostic surface (progress reports) and mirror the wire
// item IDs peers use in status-count messages.
type Stage int32

const (
	StageFailed   Stage = -1
	StageInitial  Stage = 0 // sync just started
	StageSporks   Stage = 1
	StageList     Stage = 2
	StagePayments Stage = 3

	// StageGovernance is dormant: it is never produced by the transition
	// table. The constant exists so the stage-entry hook and status surface
	// cover it if it is ever restored.
	StageGovernance Stage = 4

	StageFinished Stage = 999
)

// Name returns the stage's canonical identifier.
func (s Stage) Name() string {
	switch s {
	case StageInitial:
		return "MASTERNODE_SYNC_INITIAL"
	case StageSporks:
		return "MASTERNODE_SYNC_SPORKS"
	case StageList:
		return "MASTERNODE_SYNC_LIST"
	case StagePayments:
		return "MASTERNODE_SYNC_MNW"
	case StageGovernance:
		return "MASTERNODE_SYNC_GOVERNANCE"
	case StageFailed:
		return "MASTERNODE_SYNC_FAILED"
	case StageFinished:
		return "MASTERNODE_SYNC_FINISHED"
	default:
		return "UNKNOWN"
	}
}

func (s Stage) String() string { return s.Name() }

// StatusMessage returns the human-readable status for the stage.
func (s Stage) StatusMessage() string {
	switch s {
	case StageInitial:
		return "Synchronization pending..."
	case StageSporks:
		return "Synchronizing sporks..."
	case StageList:
		return "Synchronizing masternodes..."
	case StagePayments:
		return "Synchronizing masternode payments..."
	case StageGovernance:
		return "Synchronizing governance objects..."
	case StageFailed:
		return "Synchronization failed"
	case StageFinished:
		return "Synchronization finished"
	default:
		return ""
	}
}
