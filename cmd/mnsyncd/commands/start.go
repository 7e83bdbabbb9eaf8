package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dashpay/mnsync/config"
	tmos "github.com/dashpay/mnsync/libs/os"
	"github.com/dashpay/mnsync/node"
)

// StartCmd runs the sync daemon against a simulated network.
var StartCmd = &cobra.Command{
	Use:     "start",
	Aliases: []string{"node", "run"},
	Short:   "Run the sync daemon against a simulated network",
	RunE:    startNode,
}

func init() {
	StartCmd.Flags().String("moniker", conf.Moniker, "node name")
	StartCmd.Flags().String("network", conf.Network, "network: mainnet | testnet | regtest")
	StartCmd.Flags().Bool("masternode", conf.Masternode, "run in the masternode role")
	StartCmd.Flags().String("db-backend", conf.DBBackend, "database backend: goleveldb | badgerdb | memdb")
	StartCmd.Flags().String("db-dir", conf.DBPath, "database directory")
	StartCmd.Flags().Bool("instrumentation.prometheus", conf.Instrumentation.Prometheus,
		"serve prometheus metrics under /metrics")
}

func startNode(cmd *cobra.Command, args []string) error {
	sim := newSimulation(logger.With("module", "sim"))

	n, err := node.New(conf, logger, node.Collaborators{
		Chain:    sim.chain,
		Registry: sim.registry,
		Votes:    sim.votes,
		Active:   sim.active,
	}, config.DefaultDBProvider)
	if err != nil {
		return fmt.Errorf("failed to create node: %w", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if err := n.Start(ctx); err != nil {
		return fmt.Errorf("failed to start node: %w", err)
	}
	logger.Info("started node", "moniker", conf.Moniker, "network", conf.Network)

	// Stop upon receiving SIGTERM or CTRL-C.
	tmos.TrapSignal(logger, func() {
		cancel()
		if n.IsRunning() {
			if err := n.Stop(); err != nil {
				logger.Error("unable to stop the node", "error", err)
			}
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sim.produceBlocks(gctx, n.Reactor()) })
	g.Go(func() error { return sim.connectPeers(gctx, n.PeerSet()) })
	return g.Wait()
}
