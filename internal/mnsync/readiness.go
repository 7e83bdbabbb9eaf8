package mnsync

import (
	"time"

	"github.com/dashpay/mnsync/config"
	"github.com/dashpay/mnsync/internal/p2p"
	"github.com/dashpay/mnsync/libs/log"
)

// staleGateInterval is the wall-clock gap after which the process is assumed
// to have been asleep and the whole sync progression is reinitialized.
const staleGateInterval = time.Hour

// BlockInfo is a height/time pair describing a block pointer.
type BlockInfo struct {
	Height int64
	Time   time.Time
}

// ChainView exposes the locally cached chain-tip state the readiness gate
// needs. Implementations must not block.
type ChainView interface {
	// TipInfo returns the active chain tip. ok is false when the tip is not
	// available yet.
	TipInfo() (info BlockInfo, ok bool)

	// BestHeaderInfo returns the best known header. ok is false when no
	// header is known yet.
	BestHeaderInfo() (info BlockInfo, ok bool)

	// IsInitialImport reports whether the node is importing or reindexing
	// blocks.
	IsInitialImport() bool

	// EstimatedCheckpointHeight returns the height estimated from the
	// hardcoded checkpoints, or 0 when none are configured.
	EstimatedCheckpointHeight() int64
}

// readinessGate decides whether local chain state is close enough to network
// consensus for the stage-dependent sync requests to proceed. The verdict is
// sticky: once synced, it stays synced until a stall or an external reset.
//
// Like the rest of the sync state it assumes a single active writer; see the
// package doc.
type readinessGate struct {
	logger  log.Logger
	cfg     *config.SyncConfig
	chain   ChainView
	peers   *p2p.PeerSet
	metrics *Metrics
	now     func() time.Time

	// isFinished reports whether the overall stage progression reached
	// StageFinished; onStall reinitializes it after a detected sleep/wake
	// gap.
	isFinished func() bool
	onStall    func()

	synced             bool
	lastEvaluatedAt    time.Time
	skipped            int
	firstBlockAccepted bool
}

func newReadinessGate(
	logger log.Logger,
	cfg *config.SyncConfig,
	chain ChainView,
	peers *p2p.PeerSet,
	metrics *Metrics,
	now func() time.Time,
	isFinished func() bool,
	onStall func(),
) *readinessGate {
	return &readinessGate{
		logger:          logger,
		cfg:             cfg,
		chain:           chain,
		peers:           peers,
		metrics:         metrics,
		now:             now,
		isFinished:      isFinished,
		onStall:         onStall,
		lastEvaluatedAt: now(),
	}
}

// Reset clears the sticky verdict.
func (g *readinessGate) Reset() {
	g.synced = false
}

// Evaluate returns whether the blockchain is considered synced.
// blockJustAccepted must be true when the call is triggered by a newly
// accepted block.
func (g *readinessGate) Evaluate(blockJustAccepted bool) bool {
	now := g.now()

	// If the last evaluation was more than an hour ago the client was
	// likely in sleep mode. Start the whole sync over.
	if now.Sub(g.lastEvaluatedAt) > staleGateInterval {
		g.logger.Info("wall-clock gap since last readiness check, restarting sync",
			"gap", now.Sub(g.lastEvaluatedAt), "was_synced", g.synced)
		g.onStall()
		g.synced = false
	}

	tip, tipOK := g.chain.TipInfo()
	bestHeader, headerOK := g.chain.BestHeaderInfo()
	if !tipOK || !headerOK || g.chain.IsInitialImport() {
		return false
	}

	if blockJustAccepted {
		// this should only be triggered while we are still syncing
		if !g.isFinished() {
			// we are downloading blocks, the chain is not at the tip yet
			g.logger.Debug("block accepted mid-sync, clearing readiness")
			g.firstBlockAccepted = true
			g.synced = false
			g.lastEvaluatedAt = now
			return false
		}
	} else {
		// skip if we already checked less than one tick ago
		if now.Sub(g.lastEvaluatedAt) < g.cfg.TickInterval {
			g.skipped++
			g.metrics.SkippedEvaluations.Add(1)
			return g.synced
		}
	}

	g.logger.Debug("readiness check", "synced", g.synced, "skipped", g.skipped)
	g.lastEvaluatedAt = now
	g.skipped = 0

	if g.synced {
		return true
	}

	if g.cfg.CheckpointsEnabled && tip.Height < g.chain.EstimatedCheckpointHeight() {
		return false
	}

	// We have enough peers and assume most of them are synced: check how
	// many are (almost) at the same height as we are.
	peers := g.peers.List()
	if len(peers) >= g.cfg.EnoughPeers {
		atSameHeight := 0
		for _, peer := range peers {
			if !g.CheckNodeHeight(peer, false) {
				continue
			}
			atSameHeight++
			if atSameHeight >= g.cfg.EnoughPeers {
				g.logger.Info("found enough peers on the same height, blockchain synced",
					"peers", atSameHeight)
				g.metrics.PeersAtSameHeight.Set(float64(atSameHeight))
				g.synced = true
				return true
			}
		}
		g.metrics.PeersAtSameHeight.Set(float64(atSameHeight))
	}

	// wait for at least one new block to be accepted
	if !g.firstBlockAccepted {
		return false
	}

	// same as not being in initial block download: tip close to the best
	// header and recent enough
	maxTipTime := tip.Time
	if bestHeader.Time.After(maxTipTime) {
		maxTipTime = bestHeader.Time
	}
	g.synced = bestHeader.Height-tip.Height < g.cfg.MaxHeaderGap &&
		now.Sub(maxTipTime) < g.cfg.MaxTipAge
	return g.synced
}

// CheckNodeHeight reports whether the peer is usable for the same-height
// quorum. Peers whose common height trails our tip by more than one block
// are stuck; they are excluded and optionally marked for disconnection to
// free the slot. Peers that announced more headers than we have blocks are
// excluded without disconnecting.
func (g *readinessGate) CheckNodeHeight(peer p2p.Peer, disconnectStuck bool) bool {
	stats, ok := peer.HeightStats()
	if !ok || stats.CommonHeight == -1 || stats.SyncHeight == -1 {
		return false // not enough info about this peer
	}

	tip, tipOK := g.chain.TipInfo()
	if !tipOK {
		return false
	}

	// Check blocks and headers, allow a small error margin of 1 block.
	if tip.Height-1 > stats.CommonHeight {
		// This peer is probably stuck, don't sync any additional data from it.
		if disconnectStuck {
			// Disconnect to free this connection slot for another peer.
			peer.MarkForDisconnect()
			g.logger.Info("disconnecting from stuck peer",
				"height", tip.Height, "common_height", stats.CommonHeight, "peer", peer.ID())
		} else {
			g.logger.Debug("skipping stuck peer",
				"height", tip.Height, "common_height", stats.CommonHeight, "peer", peer.ID())
		}
		return false
	}

	if tip.Height < stats.SyncHeight-1 {
		// This peer announced more headers than we have blocks currently.
		g.logger.Debug("skipping peer that announced more headers than we have blocks",
			"height", tip.Height, "sync_height", stats.SyncHeight, "peer", peer.ID())
		return false
	}

	return true
}
