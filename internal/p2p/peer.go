package p2p

// NodeID is the unique identifier of a connected peer.
type NodeID string

// HeightStats describes a peer's block download state as tracked by the
// transport layer: the highest block both sides are known to agree on and
// the highest header the peer has announced. A value of -1 means unknown.
type HeightStats struct {
	CommonHeight int64
	SyncHeight   int64
}

// Message is implemented by every protocol message this module can enqueue
// on a peer connection.
type Message interface {
	// TypeTag uniquely identifies the concrete message variant on the wire.
	TypeTag() string

	// ValidateBasic performs stateless validity checks.
	ValidateBasic() error
}

// Peer is a handle to a live peer connection owned by the transport layer.
//
// All methods must be safe for concurrent use. TrySend must only enqueue the
// message for delivery and never block on network I/O.
type Peer interface {
	ID() NodeID

	// RemoteAddr returns the peer's network address, used as the key for
	// the fulfilled-request ledger so that reconnects from the same address
	// are recognized.
	RemoteAddr() string

	// ProtocolVersion is the protocol version the peer advertised during
	// the handshake.
	ProtocolVersion() int32

	IsInbound() bool

	// IsMasternodeConn reports whether this connection was opened
	// specifically for masternode quorum traffic. Such connections are
	// temporary and unreliable for bulk sync.
	IsMasternodeConn() bool

	// HeightStats returns the peer's height report. ok is false when the
	// transport has no usable stats for this peer yet.
	HeightStats() (stats HeightStats, ok bool)

	// TrySend enqueues msg on the peer's send queue. It returns false if
	// the queue is full; it never blocks.
	TrySend(msg Message) bool

	// MarkForDisconnect asks the transport to drop this connection to free
	// the slot for another peer.
	MarkForDisconnect()
}
