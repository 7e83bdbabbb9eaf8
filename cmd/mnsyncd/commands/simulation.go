package commands

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dashpay/mnsync/internal/mnsync"
	"github.com/dashpay/mnsync/internal/p2p"
	"github.com/dashpay/mnsync/libs/log"
)

// The start command has no wallet node to feed it real chain state, so it
// runs against a simulated network: blocks arrive at a fixed rate, peers
// connect over time and track the simulated tip, and the collaborator
// subsystems respond as a healthy network would. This keeps the whole stage
// progression observable end to end.
const (
	simBlockInterval   = 5 * time.Second
	simPeerInterval    = 2 * time.Second
	simPeerTarget      = 8
	simMasternodeCount = 25
	simProtocolVersion = 70208
	simVoteLimit       = 4000
)

type simulation struct {
	logger   log.Logger
	chain    *simChain
	registry *simRegistry
	votes    *simVotes
	active   *simActive
}

func newSimulation(logger log.Logger) *simulation {
	now := time.Now()
	return &simulation{
		logger:   logger,
		chain:    &simChain{height: 1, time: now},
		registry: &simRegistry{logger: logger},
		votes:    &simVotes{logger: logger},
		active:   &simActive{logger: logger},
	}
}

// produceBlocks advances the simulated chain tip until the context ends.
func (s *simulation) produceBlocks(ctx context.Context, reactor *mnsync.Reactor) error {
	ticker := time.NewTicker(simBlockInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			height := s.chain.advance(time.Now())
			s.logger.Debug("simulated block accepted", "height", height)
			reactor.BlockAccepted()
		}
	}
}

// connectPeers fills the connection table with simulated peers.
func (s *simulation) connectPeers(ctx context.Context, peers *p2p.PeerSet) error {
	ticker := time.NewTicker(simPeerInterval)
	defer ticker.Stop()

	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if peers.Size() >= simPeerTarget {
				continue
			}
			peer := &simPeer{
				id:     p2p.NodeID(fmt.Sprintf("sim-peer-%d", i)),
				addr:   fmt.Sprintf("127.0.0.1:%d", 20000+i),
				chain:  s.chain,
				logger: s.logger,
			}
			peers.Add(peer)
			s.logger.Info("simulated peer connected", "peer", peer.id)
		}
	}
}

// simChain is a thread-safe fake chain view: the tip and the best header
// are always the same block.
type simChain struct {
	mtx    sync.Mutex
	height int64
	time   time.Time
}

func (c *simChain) advance(now time.Time) int64 {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.height++
	c.time = now
	return c.height
}

func (c *simChain) info() mnsync.BlockInfo {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return mnsync.BlockInfo{Height: c.height, Time: c.time}
}

func (c *simChain) TipInfo() (mnsync.BlockInfo, bool)        { return c.info(), true }
func (c *simChain) BestHeaderInfo() (mnsync.BlockInfo, bool) { return c.info(), true }
func (c *simChain) IsInitialImport() bool                    { return false }
func (c *simChain) EstimatedCheckpointHeight() int64         { return 0 }

// simRegistry pretends every asked peer immediately serves the full
// masternode list.
type simRegistry struct {
	logger log.Logger
	count  int32 // atomic
}

func (r *simRegistry) Count() int {
	return int(atomic.LoadInt32(&r.count))
}

func (r *simRegistry) RequestUpdate(peer p2p.Peer) {
	r.logger.Info("requested masternode list from simulated peer", "peer", peer.ID())
	atomic.StoreInt32(&r.count, simMasternodeCount)
}

// simVotes reports its data sufficient after two peers were asked.
type simVotes struct {
	logger   log.Logger
	requests int32 // atomic
}

func (v *simVotes) IsDataSufficient() bool {
	return atomic.LoadInt32(&v.requests) >= 2
}

func (v *simVotes) StorageLimit() uint32      { return simVoteLimit }
func (v *simVotes) MinProtocolVersion() int32 { return simProtocolVersion }

func (v *simVotes) RequestMissingBlocks(peer p2p.Peer) {
	v.logger.Info("requested payment blocks from simulated peer", "peer", peer.ID())
	atomic.AddInt32(&v.requests, 1)
}

type simActive struct {
	logger log.Logger
}

func (a *simActive) MaintainState() {
	a.logger.Info("masternode registration state is up to date")
}

// simPeer tracks the simulated chain tip exactly.
type simPeer struct {
	id     p2p.NodeID
	addr   string
	chain  *simChain
	logger log.Logger
}

var _ p2p.Peer = (*simPeer)(nil)

func (p *simPeer) ID() p2p.NodeID         { return p.id }
func (p *simPeer) RemoteAddr() string     { return p.addr }
func (p *simPeer) ProtocolVersion() int32 { return simProtocolVersion }
func (p *simPeer) IsInbound() bool        { return false }
func (p *simPeer) IsMasternodeConn() bool { return false }

func (p *simPeer) HeightStats() (p2p.HeightStats, bool) {
	h := p.chain.info().Height
	return p2p.HeightStats{CommonHeight: h, SyncHeight: h}, true
}

func (p *simPeer) TrySend(msg p2p.Message) bool {
	p.logger.Debug("sent request to simulated peer", "type", msg.TypeTag(), "peer", p.id)
	return true
}

func (p *simPeer) MarkForDisconnect() {
	p.logger.Debug("simulated peer marked for disconnect", "peer", p.id)
}
