/*
Package mnsync implements the bootstrap synchronization of masternode
network data: sporks (network-wide feature flags), the masternode list,
and masternode payment votes. It layers a coarse, staged sync protocol on
top of an assumed-synced chain tip.

The Reactor drives the whole process from a fixed-cadence tick. Each tick
it consults the blockchain readiness gate, takes a non-blocking snapshot
of the connected peers, and issues at most one stage-specific request
across the peer set (spork requests are the exception and go to every
peer not yet asked). Stage timeouts are asymmetric: a timeout before any
peer served data is a hard failure with a cooldown, a later timeout just
skips ahead to the next stage.

The reactor is the single writer of the sync state; collaborators
(masternode registry, payment-vote ledger, self-registration agent,
transport) are injected and never called for blocking I/O.
*/
package mnsync
