package node

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dbm "github.com/tendermint/tm-db"

	"github.com/dashpay/mnsync/config"
	"github.com/dashpay/mnsync/internal/mnsync"
	"github.com/dashpay/mnsync/internal/netfulfilled"
	"github.com/dashpay/mnsync/internal/p2p"
	"github.com/dashpay/mnsync/libs/log"
	"github.com/dashpay/mnsync/libs/service"
)

// Collaborators bundles the domain subsystems the sync reactor drives. The
// embedding process supplies real implementations; the simulation harness
// supplies in-memory ones.
type Collaborators struct {
	Chain    mnsync.ChainView
	Registry mnsync.NodeRegistry
	Votes    mnsync.PaymentVoteLedger
	Active   mnsync.SelfRegistrationAgent
}

func (c Collaborators) validate() error {
	if c.Chain == nil {
		return errors.New("no chain view")
	}
	if c.Registry == nil {
		return errors.New("no masternode registry")
	}
	if c.Votes == nil {
		return errors.New("no payment vote ledger")
	}
	if c.Active == nil {
		return errors.New("no self registration agent")
	}
	return nil
}

// Node wires the sync reactor to its storage, peer table and metrics.
type Node struct {
	service.BaseService
	logger log.Logger

	config *config.Config

	db      dbm.DB
	ledger  *netfulfilled.RequestLedger
	peers   *p2p.PeerSet
	reactor *mnsync.Reactor

	prometheusSrv *http.Server
}

// New constructs a Node from the given configuration and collaborators.
func New(
	cfg *config.Config,
	logger log.Logger,
	collab Collaborators,
	dbProvider config.DBProvider,
) (*Node, error) {
	if err := cfg.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := collab.validate(); err != nil {
		return nil, err
	}
	if dbProvider == nil {
		dbProvider = config.DefaultDBProvider
	}

	db, err := dbProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening request ledger database: %w", err)
	}

	ledger, err := netfulfilled.NewRequestLedger(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("loading request ledger: %w", err)
	}

	metrics := mnsync.NopMetrics()
	if cfg.Instrumentation.Prometheus {
		metrics = mnsync.PrometheusMetrics(cfg.Instrumentation.Namespace,
			"network", cfg.Network, "moniker", cfg.Moniker)
	}

	peers := p2p.NewPeerSet()
	n := &Node{
		logger: logger,
		config: cfg,
		db:     db,
		ledger: ledger,
		peers:  peers,
		reactor: mnsync.NewReactor(
			logger.With("module", "mnsync"),
			cfg.Sync,
			cfg.Network,
			cfg.Masternode,
			collab.Chain,
			peers,
			ledger,
			collab.Registry,
			collab.Votes,
			collab.Active,
			mnsync.WithMetrics(metrics),
		),
	}
	n.BaseService = *service.NewBaseService(logger, "Node", n)
	return n, nil
}

// OnStart starts the sync reactor and, when configured, the Prometheus
// metrics endpoint.
func (n *Node) OnStart(ctx context.Context) error {
	if n.config.Instrumentation.Prometheus &&
		n.config.Instrumentation.PrometheusListenAddr != "" {
		n.prometheusSrv = n.startPrometheusServer(n.config.Instrumentation.PrometheusListenAddr)
	}

	return n.reactor.Start(ctx)
}

// OnStop implements service.Service.
func (n *Node) OnStop() {
	if err := n.reactor.Stop(); err != nil && !errors.Is(err, service.ErrAlreadyStopped) {
		n.logger.Error("error stopping sync reactor", "err", err)
	}

	if n.prometheusSrv != nil {
		if err := n.prometheusSrv.Close(); err != nil {
			n.logger.Error("prometheus http server close error", "err", err)
		}
	}

	if err := n.db.Close(); err != nil {
		n.logger.Error("error closing request ledger database", "err", err)
	}
}

// startPrometheusServer starts a Prometheus HTTP server, listening for
// metrics collectors on addr.
func (n *Node) startPrometheusServer(addr string) *http.Server {
	srv := &http.Server{
		Addr: addr,
		Handler: promhttp.InstrumentMetricHandler(
			prometheus.DefaultRegisterer, promhttp.HandlerFor(
				prometheus.DefaultGatherer,
				promhttp.HandlerOpts{MaxRequestsInFlight: n.config.Instrumentation.MaxOpenConnections},
			),
		),
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			n.logger.Error("prometheus http server error", "err", err, "addr", addr)
		}
	}()
	return srv
}

// PeerSet returns the connection table the transport layer feeds.
func (n *Node) PeerSet() *p2p.PeerSet { return n.peers }

// Reactor returns the masternode sync reactor.
func (n *Node) Reactor() *mnsync.Reactor { return n.reactor }
