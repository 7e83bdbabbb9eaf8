package p2p

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPeer struct {
	id NodeID
}

func (p stubPeer) ID() NodeID                       { return p.id }
func (p stubPeer) RemoteAddr() string               { return "127.0.0.1:" + string(p.id) }
func (p stubPeer) ProtocolVersion() int32           { return 0 }
func (p stubPeer) IsInbound() bool                  { return false }
func (p stubPeer) IsMasternodeConn() bool           { return false }
func (p stubPeer) HeightStats() (HeightStats, bool) { return HeightStats{}, false }
func (p stubPeer) TrySend(Message) bool             { return true }
func (p stubPeer) MarkForDisconnect()               {}

func TestPeerSetAddRemove(t *testing.T) {
	ps := NewPeerSet()

	for i := 0; i < 5; i++ {
		require.True(t, ps.Add(stubPeer{id: NodeID(fmt.Sprintf("peer-%d", i))}))
	}
	require.Equal(t, 5, ps.Size())

	// duplicate IDs are rejected
	require.False(t, ps.Add(stubPeer{id: "peer-0"}))
	require.Equal(t, 5, ps.Size())

	// removing from the middle keeps the rest reachable
	ps.Remove("peer-2")
	require.Equal(t, 4, ps.Size())
	require.False(t, ps.Has("peer-2"))
	require.True(t, ps.Has("peer-4"))

	// removing an absent peer is a no-op
	ps.Remove("peer-2")
	require.Equal(t, 4, ps.Size())
}

func TestPeerSetListIsSnapshot(t *testing.T) {
	ps := NewPeerSet()
	require.True(t, ps.Add(stubPeer{id: "a"}))
	require.True(t, ps.Add(stubPeer{id: "b"}))

	snapshot := ps.List()
	ps.Remove("a")

	// the snapshot is unaffected by subsequent mutation
	assert.Len(t, snapshot, 2)
	assert.Equal(t, 1, ps.Size())
}

func TestPeerSetTryList(t *testing.T) {
	ps := NewPeerSet()
	require.True(t, ps.Add(stubPeer{id: "a"}))

	peers, ok := ps.TryList()
	require.True(t, ok)
	require.Len(t, peers, 1)

	// simulate transport-side contention: the snapshot must be refused
	// rather than block.
	ps.mtx.Lock()
	_, ok = ps.TryList()
	ps.mtx.Unlock()
	require.False(t, ok)

	_, ok = ps.TryList()
	require.True(t, ok)
}
