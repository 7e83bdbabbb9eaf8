package mnsync

import (
	"context"
	"fmt"
	"time"

	"github.com/dashpay/mnsync/config"
	"github.com/dashpay/mnsync/internal/netfulfilled"
	"github.com/dashpay/mnsync/internal/p2p"
	"github.com/dashpay/mnsync/libs/log"
	"github.com/dashpay/mnsync/libs/service"
)

var _ service.Service = (*Reactor)(nil)

// tickerInterval is how often the scheduler fires. The driver itself acts
// only once per configured tick interval; the finer ticker keeps the acting
// cadence stable regardless of how the two intervals divide.
const tickerInterval = time.Second

// NodeRegistry is the masternode directory collaborator.
type NodeRegistry interface {
	// Count returns the number of masternodes currently known.
	Count() int

	// RequestUpdate asks the peer for its masternode list. Enqueue only.
	RequestUpdate(p2p.Peer)
}

// PaymentVoteLedger is the masternode payment-vote store collaborator.
type PaymentVoteLedger interface {
	// IsDataSufficient reports whether enough payment blocks and votes are
	// already held locally.
	IsDataSufficient() bool

	// StorageLimit returns the configured vote-count ceiling, used to size
	// full payment-vote requests.
	StorageLimit() uint32

	// MinProtocolVersion returns the minimum peer protocol version that
	// can serve masternode payment data.
	MinProtocolVersion() int32

	// RequestMissingBlocks asks the peer for locally-missing low-data
	// payment blocks. Enqueue only.
	RequestMissingBlocks(p2p.Peer)
}

// SelfRegistrationAgent manages this node's own masternode registration.
type SelfRegistrationAgent interface {
	// MaintainState is invoked once when the sync reaches StageFinished.
	MaintainState()
}

// Reactor drives the masternode data sync. It owns the sync State and the
// blockchain readiness gate, and is their only writer.
type Reactor struct {
	service.BaseService
	logger log.Logger

	cfg        *config.SyncConfig
	network    string
	masternode bool

	chain    ChainView
	peers    *p2p.PeerSet
	ledger   *netfulfilled.RequestLedger
	registry NodeRegistry
	votes    PaymentVoteLedger
	active   SelfRegistrationAgent

	metrics   *Metrics
	now       func() time.Time
	stageHook func(Stage)

	state *State
	gate  *readinessGate

	tickCount    int64
	ticksPerStep int64
}

// ReactorOption configures a Reactor.
type ReactorOption func(*Reactor)

// WithMetrics attaches metrics to the reactor.
func WithMetrics(m *Metrics) ReactorOption {
	return func(r *Reactor) { r.metrics = m }
}

// WithClock overrides the reactor's time source, for tests.
func WithClock(now func() time.Time) ReactorOption {
	return func(r *Reactor) { r.now = now }
}

// WithStageHook installs a callback invoked on every stage entry. This is
// the extension point reserved for the dormant governance stage.
func WithStageHook(hook func(Stage)) ReactorOption {
	return func(r *Reactor) { r.stageHook = hook }
}

// NewReactor returns a new masternode sync reactor.
func NewReactor(
	logger log.Logger,
	cfg *config.SyncConfig,
	network string,
	masternode bool,
	chain ChainView,
	peers *p2p.PeerSet,
	ledger *netfulfilled.RequestLedger,
	registry NodeRegistry,
	votes PaymentVoteLedger,
	active SelfRegistrationAgent,
	opts ...ReactorOption,
) *Reactor {
	r := &Reactor{
		logger:     logger,
		cfg:        cfg,
		network:    network,
		masternode: masternode,
		chain:      chain,
		peers:      peers,
		ledger:     ledger,
		registry:   registry,
		votes:      votes,
		active:     active,
		metrics:    NopMetrics(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.ticksPerStep = int64(r.cfg.TickInterval / tickerInterval)
	if r.ticksPerStep < 1 {
		r.ticksPerStep = 1
	}

	r.state = NewState(r.now())
	r.gate = newReadinessGate(
		logger, cfg, chain, peers, r.metrics, r.now,
		func() bool { return r.state.Stage() == StageFinished },
		func() { r.state.Reset(r.now()) },
	)

	r.BaseService = *service.NewBaseService(logger, "MnSync", r)
	return r
}

// OnStart starts the tick scheduler.
func (r *Reactor) OnStart(ctx context.Context) error {
	go r.tickRoutine(ctx)
	return nil
}

// OnStop implements service.Service.
func (r *Reactor) OnStop() {}

func (r *Reactor) tickRoutine(ctx context.Context) {
	ticker := time.NewTicker(tickerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Tick()
		}
	}
}

// Tick is the external entry point, safe to invoke at any frequency: the
// driver acts at most once per configured tick interval.
func (r *Reactor) Tick() {
	n := r.tickCount
	r.tickCount++
	if n%r.ticksPerStep != 0 {
		return
	}
	r.processTick()
}

// processTick runs one pass of the stage driver.
func (r *Reactor) processTick() {
	now := r.now()

	if _, ok := r.chain.TipInfo(); !ok {
		return
	}

	// the actual count of masternodes we currently have
	mnCount := r.registry.Count()

	if r.IsSynced() {
		// Resync if we lost all masternodes from sleep/wake or failed to
		// sync originally.
		if mnCount == 0 {
			r.logger.Error("not enough data, restarting sync")
			r.Reset()
		} else {
			// periodic governance-vote refresh would go here once the
			// governance stage is restored
			return
		}
	}

	// try syncing again after the cooldown
	if r.IsFailed() {
		if now.Sub(r.state.LastFailureAt()) > r.cfg.FailureCooldown {
			r.Reset()
		}
		return
	}

	progress := r.SyncProgress()
	r.metrics.SyncStage.Set(float64(r.state.Stage()))
	r.metrics.SyncProgress.Set(progress)
	r.logger.Debug("sync tick",
		"tick", r.tickCount,
		"stage", r.state.Stage(),
		"attempt", r.state.Attempt(),
		"progress", fmt.Sprintf("%.3f", progress),
		"masternodes", mnCount,
	)

	blockchainSynced := r.gate.Evaluate(false)

	// On real networks, wait until we are almost at a recent block before
	// syncing anything beyond sporks. Refresh the stage timestamps so the
	// wait is not mistaken for a timeout.
	if r.network != config.NetworkRegtest && !blockchainSynced && r.state.Stage() > StageSporks {
		r.state.RefreshTimestamps(now)
		return
	}

	if r.state.Stage() == StageInitial ||
		(r.state.Stage() == StageSporks && blockchainSynced) {
		r.switchToNextStage(now)
	}

	peers, ok := r.peers.TryList()
	if !ok {
		// the connection table is contended, try again next tick
		return
	}

	for _, peer := range peers {
		// Don't sync from outbound masternode connections, they are
		// temporary and unreliable. An inbound connection this early while
		// we run as a masternode is most likely another masternode's
		// quorum connection, skip it too.
		if peer.IsMasternodeConn() || (r.masternode && peer.IsInbound()) {
			continue
		}

		if r.network == config.NetworkRegtest {
			r.quickTick(peer)
			return // one peer per tick is enough in quick mode
		}

		if done := r.normalTick(peer, now); done {
			return
		}
	}
}

// quickTick is the regtest-only fast path: a fixed attempt schedule with no
// ledger or timeout bookkeeping.
func (r *Reactor) quickTick(peer p2p.Peer) {
	switch attempt := r.state.Attempt(); {
	case attempt <= 2:
		peer.TrySend(GetSporksRequest{})
	case attempt < 4:
		r.registry.RequestUpdate(peer)
	case attempt < 6:
		peer.TrySend(PaymentVoteSyncRequest{Limit: uint32(r.registry.Count())})
		r.sendGovernanceSyncRequest(peer)
	default:
		r.state.finish()
	}
	r.state.attempt++
}

// normalTick handles a single peer on testnet/mainnet. It reports true when
// the tick is exhausted: a stage-specific request was issued, or a timeout
// was handled. Spork requests do not exhaust the tick; every peer not yet
// asked gets one.
func (r *Reactor) normalTick(peer p2p.Peer, now time.Time) bool {
	addr := peer.RemoteAddr()

	if r.ledger.HasFulfilled(addr, netfulfilled.TagFullSync) {
		// We already fully synced from this node recently, disconnect to
		// free this connection slot for another peer.
		peer.MarkForDisconnect()
		r.logger.Debug("disconnecting from recently synced peer", "peer", peer.ID())
		return false
	}

	// Always ask for sporks first, from every peer, only once.
	if !r.ledger.HasFulfilled(addr, netfulfilled.TagSporkSync) {
		r.ledger.AddFulfilled(addr, netfulfilled.TagSporkSync)
		peer.TrySend(GetSporksRequest{})
		r.metrics.RequestsSent.With("kind", "sporks").Add(1)
		r.logger.Debug("requesting sporks", "peer", peer.ID(), "stage", r.state.Stage())
		return false // move to the next peer without waiting for the next tick
	}

	switch r.state.Stage() {
	case StageList:
		// check for timeout first
		if now.Sub(r.state.lastListAt) > r.cfg.TimeoutSeconds {
			r.handleStageTimeout(now)
			return true
		}

		// only request once from each peer
		if r.ledger.HasFulfilled(addr, netfulfilled.TagNodeListSync) {
			return false
		}
		r.ledger.AddFulfilled(addr, netfulfilled.TagNodeListSync)

		if peer.ProtocolVersion() < r.votes.MinProtocolVersion() {
			return false
		}
		r.state.attempt++

		r.registry.RequestUpdate(peer)
		r.metrics.RequestsSent.With("kind", "node-list").Add(1)
		r.logger.Debug("requesting masternode list", "peer", peer.ID())

		// each peer gets one request per tick interval for the data we need
		return true

	case StagePayments:
		// This might take longer than the timeout due to new blocks, but it
		// should time out eventually.
		if now.Sub(r.state.lastPaymentVoteAt) > r.cfg.TimeoutSeconds {
			r.handleStageTimeout(now)
			return true
		}

		// If the ledger already holds enough blocks and votes, move on. Try
		// to fetch data from at least two peers though.
		if r.state.Attempt() > 1 && r.votes.IsDataSufficient() {
			r.logger.Info("found enough payment vote data", "stage", r.state.Stage())
			r.switchToNextStage(now)
			return true
		}

		// only request once from each peer
		if r.ledger.HasFulfilled(addr, netfulfilled.TagPaymentVoteSync) {
			return false
		}
		r.ledger.AddFulfilled(addr, netfulfilled.TagPaymentVoteSync)

		if peer.ProtocolVersion() < r.votes.MinProtocolVersion() {
			return false
		}
		r.state.attempt++

		// ask the node for all payment votes it has, then for the missing
		// pieces only (old nodes will not be asked)
		peer.TrySend(PaymentVoteSyncRequest{Limit: r.votes.StorageLimit()})
		r.votes.RequestMissingBlocks(peer)
		r.metrics.RequestsSent.With("kind", "payment-votes").Add(1)
		r.logger.Debug("requesting payment votes", "peer", peer.ID())

		return true
	}

	return false
}

// handleStageTimeout applies the asymmetric timeout rule: with zero attempts
// no peer ever served this stage and the sync hard-fails; with prior
// progress the stage is skipped.
func (r *Reactor) handleStageTimeout(now time.Time) {
	stage := r.state.Stage()
	r.metrics.StageTimeouts.Add(1)
	if r.state.Attempt() == 0 {
		// there is no way we can continue without this data, fail and retry
		// after the cooldown
		r.logger.Error("failed to sync, no data received before timeout", "stage", stage)
		r.metrics.StageFailures.Add(1)
		r.state.Fail(now)
		return
	}
	r.logger.Info("stage timed out with partial data, skipping ahead", "stage", stage)
	r.switchToNextStage(now)
}

// switchToNextStage advances the progression and runs the stage-entry side
// effects.
func (r *Reactor) switchToNextStage(now time.Time) {
	if r.state.Stage() == StageInitial {
		// starting a fresh cycle: forget one-time request markers for all
		// currently connected peers
		r.clearFulfilledRequests()
	}

	next := r.state.Advance(now)
	r.metrics.SyncStage.Set(float64(next))
	r.logger.Info("switching to next sync stage", "stage", next)

	if next == StageFinished {
		r.logger.Info("sync has finished")

		// try to activate our own masternode if possible
		r.active.MaintainState()

		if peers, ok := r.peers.TryList(); ok {
			for _, peer := range peers {
				r.ledger.AddFulfilled(peer.RemoteAddr(), netfulfilled.TagFullSync)
			}
		}
	}

	if r.stageHook != nil {
		r.stageHook(next)
	}
}

// clearFulfilledRequests drops every one-time request marker for the
// currently connected peers. Skipped entirely when the connection table is
// contended.
func (r *Reactor) clearFulfilledRequests() {
	peers, ok := r.peers.TryList()
	if !ok {
		return
	}
	for _, peer := range peers {
		addr := peer.RemoteAddr()
		r.ledger.RemoveFulfilled(addr, netfulfilled.TagSporkSync)
		r.ledger.RemoveFulfilled(addr, netfulfilled.TagNodeListSync)
		r.ledger.RemoveFulfilled(addr, netfulfilled.TagPaymentVoteSync)
		r.ledger.RemoveFulfilled(addr, netfulfilled.TagFullSync)
	}
}

// sendGovernanceSyncRequest is the dormant governance stage's request hook.
func (r *Reactor) sendGovernanceSyncRequest(p2p.Peer) {}

// Receive consumes an inbound protocol message from a peer. The message set
// is closed; anything else is a peer error.
func (r *Reactor) Receive(peer p2p.Peer, msg p2p.Message) error {
	if err := msg.ValidateBasic(); err != nil {
		return fmt.Errorf("invalid message from %v: %w", peer.ID(), err)
	}

	switch m := msg.(type) {
	case SyncStatusCount:
		// do not care about stats if the sync process finished or failed
		if r.IsSynced() || r.IsFailed() {
			return nil
		}
		r.logger.Info("got inventory count",
			"item", m.ItemID, "count", m.Count, "peer", peer.ID())
		return nil

	case GetSporksRequest, PaymentVoteSyncRequest:
		// requests are served by the spork and payment-vote subsystems, not
		// by the sync reactor
		return fmt.Errorf("unexpected request %T from %v", msg, peer.ID())

	default:
		return fmt.Errorf("received unknown message type %T from %v", msg, peer.ID())
	}
}

// BlockAccepted informs the readiness gate that a block was just accepted
// locally.
func (r *Reactor) BlockAccepted() {
	r.gate.Evaluate(true)
}

// BlockchainSynced reports the readiness gate's current verdict.
func (r *Reactor) BlockchainSynced() bool {
	return r.gate.Evaluate(false)
}

// Reset reinitializes the sync progression and the readiness verdict.
func (r *Reactor) Reset() {
	r.state.Reset(r.now())
	r.gate.Reset()
}

// IsSynced reports whether the sync progression has finished.
func (r *Reactor) IsSynced() bool { return r.state.Stage() == StageFinished }

// IsFailed reports whether the sync progression has failed.
func (r *Reactor) IsFailed() bool { return r.state.Stage() == StageFailed }

// CurrentStage returns the current sync stage.
func (r *Reactor) CurrentStage() Stage { return r.state.Stage() }

// StageName returns the canonical name of the current stage.
func (r *Reactor) StageName() string { return r.state.Stage().Name() }

// SyncStatus returns the human-readable status line for the current stage.
func (r *Reactor) SyncStatus() string { return r.state.Stage().StatusMessage() }

// SyncProgress returns a diagnostic progress fraction. It has no control
// effect on the sync.
func (r *Reactor) SyncProgress() float64 {
	return float64(int64(r.state.Attempt())+(int64(r.state.Stage())-1)*8) / 32
}
