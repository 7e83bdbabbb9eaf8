package mnsync

import (
	"errors"
	"fmt"

	"github.com/dashpay/mnsync/internal/jsontypes"
	"github.com/dashpay/mnsync/internal/p2p"
)

// The protocol messages this module produces or consumes. The set is
// closed: Reactor.Receive matches it exhaustively and rejects anything
// else.

// GetSporksRequest asks a peer for the current network sporks. No payload.
type GetSporksRequest struct{}

// PaymentVoteSyncRequest asks a peer for its payment votes, up to Limit
// entries (new peers will only return votes for future payments).
type PaymentVoteSyncRequest struct {
	Limit uint32 `json:"limit"`
}

// SyncStatusCount is sent by peers to report how many inventory items they
// announced for a sync stage. Consumed for diagnostics only.
type SyncStatusCount struct {
	ItemID Stage `json:"item_id"`
	Count  int32 `json:"count"`
}

func (GetSporksRequest) TypeTag() string       { return "mnsync/GetSporks" }
func (PaymentVoteSyncRequest) TypeTag() string { return "mnsync/PaymentVoteSync" }
func (SyncStatusCount) TypeTag() string        { return "mnsync/SyncStatusCount" }

func (GetSporksRequest) ValidateBasic() error { return nil }

func (m PaymentVoteSyncRequest) ValidateBasic() error {
	if m.Limit == 0 {
		return errors.New("payment vote sync request with zero limit")
	}
	return nil
}

func (m SyncStatusCount) ValidateBasic() error {
	if m.Count < 0 {
		return fmt.Errorf("negative inventory count %d", m.Count)
	}
	switch m.ItemID {
	case StageSporks, StageList, StagePayments, StageGovernance:
		return nil
	default:
		return fmt.Errorf("unknown sync item id %d", m.ItemID)
	}
}

var (
	_ p2p.Message = GetSporksRequest{}
	_ p2p.Message = PaymentVoteSyncRequest{}
	_ p2p.Message = SyncStatusCount{}
)

func init() {
	jsontypes.MustRegister(GetSporksRequest{})
	jsontypes.MustRegister(PaymentVoteSyncRequest{})
	jsontypes.MustRegister(SyncStatusCount{})
}
