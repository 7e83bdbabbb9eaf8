package mnsync

import (
	"testing"
	"time"

	dbm "github.com/tendermint/tm-db"

	"github.com/stretchr/testify/require"

	"github.com/dashpay/mnsync/config"
	"github.com/dashpay/mnsync/internal/netfulfilled"
	"github.com/dashpay/mnsync/internal/p2p"
	"github.com/dashpay/mnsync/libs/log"
)

type mockPeer struct {
	id      p2p.NodeID
	addr    string
	version int32
	inbound bool
	mnConn  bool

	stats   p2p.HeightStats
	statsOK bool

	sent         []p2p.Message
	disconnected bool
}

var _ p2p.Peer = (*mockPeer)(nil)

func (p *mockPeer) ID() p2p.NodeID                       { return p.id }
func (p *mockPeer) RemoteAddr() string                   { return p.addr }
func (p *mockPeer) ProtocolVersion() int32               { return p.version }
func (p *mockPeer) IsInbound() bool                      { return p.inbound }
func (p *mockPeer) IsMasternodeConn() bool               { return p.mnConn }
func (p *mockPeer) HeightStats() (p2p.HeightStats, bool) { return p.stats, p.statsOK }
func (p *mockPeer) MarkForDisconnect()                   { p.disconnected = true }
func (p *mockPeer) TrySend(msg p2p.Message) bool {
	p.sent = append(p.sent, msg)
	return true
}

func (p *mockPeer) sentOfType(tag string) int {
	n := 0
	for _, msg := range p.sent {
		if msg.TypeTag() == tag {
			n++
		}
	}
	return n
}

type mockChain struct {
	tip       BlockInfo
	header    BlockInfo
	tipOK     bool
	headerOK  bool
	importing bool
	chkHeight int64
}

func (c *mockChain) TipInfo() (BlockInfo, bool)        { return c.tip, c.tipOK }
func (c *mockChain) BestHeaderInfo() (BlockInfo, bool) { return c.header, c.headerOK }
func (c *mockChain) IsInitialImport() bool             { return c.importing }
func (c *mockChain) EstimatedCheckpointHeight() int64  { return c.chkHeight }

type mockRegistry struct {
	count      int
	countCalls int
	updates    []p2p.Peer
}

func (m *mockRegistry) Count() int {
	m.countCalls++
	return m.count
}

func (m *mockRegistry) RequestUpdate(peer p2p.Peer) {
	m.updates = append(m.updates, peer)
}

type mockVotes struct {
	sufficient bool
	limit      uint32
	minProto   int32
	missing    []p2p.Peer
}

func (m *mockVotes) IsDataSufficient() bool    { return m.sufficient }
func (m *mockVotes) StorageLimit() uint32      { return m.limit }
func (m *mockVotes) MinProtocolVersion() int32 { return m.minProto }
func (m *mockVotes) RequestMissingBlocks(peer p2p.Peer) {
	m.missing = append(m.missing, peer)
}

type mockActive struct {
	calls int
}

func (m *mockActive) MaintainState() { m.calls++ }

// fixture wires a reactor against in-memory collaborators and a manual
// clock.
type fixture struct {
	t        *testing.T
	now      time.Time
	cfg      *config.SyncConfig
	chain    *mockChain
	peers    *p2p.PeerSet
	ledger   *netfulfilled.RequestLedger
	registry *mockRegistry
	votes    *mockVotes
	active   *mockActive
	reactor  *Reactor
}

func newFixture(t *testing.T, network string) *fixture {
	t.Helper()

	f := &fixture{
		t:   t,
		now: time.Date(2022, 5, 1, 12, 0, 0, 0, time.UTC),
		cfg: config.DefaultSyncConfig(),
		chain: &mockChain{
			tip:      BlockInfo{Height: 1000},
			header:   BlockInfo{Height: 1000},
			tipOK:    true,
			headerOK: true,
		},
		peers:    p2p.NewPeerSet(),
		registry: &mockRegistry{count: 25},
		votes:    &mockVotes{limit: 4000, minProto: 70208},
		active:   &mockActive{},
	}
	f.cfg.CheckpointsEnabled = false
	f.chain.tip.Time = f.now
	f.chain.header.Time = f.now

	clock := func() time.Time { return f.now }

	ledger, err := netfulfilled.NewRequestLedger(dbm.NewMemDB(), netfulfilled.WithClock(clock))
	require.NoError(t, err)
	f.ledger = ledger

	f.reactor = NewReactor(
		log.NewTestingLogger(t),
		f.cfg,
		network,
		false,
		f.chain,
		f.peers,
		f.ledger,
		f.registry,
		f.votes,
		f.active,
		WithClock(clock),
	)
	return f
}

// elapse moves the manual clock forward.
func (f *fixture) elapse(d time.Duration) {
	f.now = f.now.Add(d)
}

// addPeer registers a healthy outbound peer at our height.
func (f *fixture) addPeer(id string) *mockPeer {
	peer := &mockPeer{
		id:      p2p.NodeID(id),
		addr:    "10.1.1." + id + ":9999",
		version: 70208,
		stats:   p2p.HeightStats{CommonHeight: 1000, SyncHeight: 1000},
		statsOK: true,
	}
	require.True(f.t, f.peers.Add(peer))
	return peer
}
