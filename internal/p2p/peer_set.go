package p2p

import (
	"sync"
)

// PeerSet is a table of connected peers, mutated by transport-layer
// goroutines and snapshotted by the sync reactor. Iteration over a snapshot
// is safe and does not hold the set's lock.
type PeerSet struct {
	mtx    sync.Mutex
	lookup map[NodeID]int
	list   []Peer
}

// NewPeerSet creates a new empty PeerSet.
func NewPeerSet() *PeerSet {
	return &PeerSet{
		lookup: make(map[NodeID]int),
		list:   make([]Peer, 0, 64),
	}
}

// Add adds the peer to the set. It reports false if a peer with the same ID
// is already present.
func (ps *PeerSet) Add(peer Peer) bool {
	ps.mtx.Lock()
	defer ps.mtx.Unlock()

	if _, ok := ps.lookup[peer.ID()]; ok {
		return false
	}
	ps.lookup[peer.ID()] = len(ps.list)
	ps.list = append(ps.list, peer)
	return true
}

// Remove removes the peer with the given ID, if present.
func (ps *PeerSet) Remove(id NodeID) {
	ps.mtx.Lock()
	defer ps.mtx.Unlock()

	index, ok := ps.lookup[id]
	if !ok {
		return
	}

	// Move the last element into the vacated slot; order is not significant.
	last := len(ps.list) - 1
	if index != last {
		moved := ps.list[last]
		ps.list[index] = moved
		ps.lookup[moved.ID()] = index
	}
	ps.list[last] = nil
	ps.list = ps.list[:last]
	delete(ps.lookup, id)
}

// Has reports whether a peer with the given ID is in the set.
func (ps *PeerSet) Has(id NodeID) bool {
	ps.mtx.Lock()
	defer ps.mtx.Unlock()
	_, ok := ps.lookup[id]
	return ok
}

// Size returns the number of peers in the set.
func (ps *PeerSet) Size() int {
	ps.mtx.Lock()
	defer ps.mtx.Unlock()
	return len(ps.list)
}

// List returns a point-in-time copy of the peer list.
func (ps *PeerSet) List() []Peer {
	ps.mtx.Lock()
	defer ps.mtx.Unlock()
	return ps.copyList()
}

// TryList returns a point-in-time copy of the peer list without blocking.
// It reports false when the lock is contended, in which case the caller is
// expected to skip its whole pass and retry on the next tick.
func (ps *PeerSet) TryList() ([]Peer, bool) {
	if !ps.mtx.TryLock() {
		return nil, false
	}
	defer ps.mtx.Unlock()
	return ps.copyList(), true
}

func (ps *PeerSet) copyList() []Peer {
	peers := make([]Peer, len(ps.list))
	copy(peers, ps.list)
	return peers
}
