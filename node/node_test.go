package node

import (
	"context"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/require"

	"github.com/dashpay/mnsync/config"
	"github.com/dashpay/mnsync/internal/mnsync"
	"github.com/dashpay/mnsync/internal/p2p"
	"github.com/dashpay/mnsync/libs/log"
)

type stubChain struct{}

func (stubChain) TipInfo() (mnsync.BlockInfo, bool) {
	return mnsync.BlockInfo{Height: 1, Time: time.Now()}, true
}

func (stubChain) BestHeaderInfo() (mnsync.BlockInfo, bool) {
	return mnsync.BlockInfo{Height: 1, Time: time.Now()}, true
}

func (stubChain) IsInitialImport() bool            { return false }
func (stubChain) EstimatedCheckpointHeight() int64 { return 0 }

type stubRegistry struct{}

func (stubRegistry) Count() int             { return 10 }
func (stubRegistry) RequestUpdate(p2p.Peer) {}

type stubVotes struct{}

func (stubVotes) IsDataSufficient() bool        { return false }
func (stubVotes) StorageLimit() uint32          { return 4000 }
func (stubVotes) MinProtocolVersion() int32     { return 70208 }
func (stubVotes) RequestMissingBlocks(p2p.Peer) {}

type stubActive struct{}

func (stubActive) MaintainState() {}

func testCollaborators() Collaborators {
	return Collaborators{
		Chain:    stubChain{},
		Registry: stubRegistry{},
		Votes:    stubVotes{},
		Active:   stubActive{},
	}
}

func TestNodeStartStop(t *testing.T) {
	defer leaktest.CheckTimeout(t, time.Second)()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n, err := New(config.TestConfig(), log.NewTestingLogger(t), testCollaborators(), nil)
	require.NoError(t, err)

	require.NoError(t, n.Start(ctx))
	require.True(t, n.IsRunning())
	require.NotNil(t, n.PeerSet())
	require.NotNil(t, n.Reactor())

	require.NoError(t, n.Stop())
	n.Wait()
	require.False(t, n.IsRunning())
}

func TestNodeRejectsMissingCollaborators(t *testing.T) {
	collab := testCollaborators()
	collab.Votes = nil

	_, err := New(config.TestConfig(), log.NewTestingLogger(t), collab, nil)
	require.Error(t, err)
}

func TestNodeRejectsInvalidConfig(t *testing.T) {
	cfg := config.TestConfig()
	cfg.Network = "simnet"

	_, err := New(cfg, log.NewTestingLogger(t), testCollaborators(), nil)
	require.Error(t, err)
}
