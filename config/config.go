package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

const (
	// LogFormatPlain defines a logging format used for human-readable
	// text-based logging that is not structured.
	LogFormatPlain = "plain"

	// LogFormatJSON defines a logging format for structured JSON-based
	// logging.
	LogFormatJSON = "json"

	// Network identifiers. Regtest enables the quick sync mode that
	// bypasses the request ledger and timeout logic.
	NetworkMainnet = "mainnet"
	NetworkTestnet = "testnet"
	NetworkRegtest = "regtest"
)

// NOTE: Most of the structs & relevant comments + the default configuration
// options were used to manually generate the config.toml. Please reflect any
// changes made here in the defaultConfigTemplate constant in config/toml.go.
var (
	DefaultMnsyncDir = ".mnsync"

	defaultConfigDir = "config"
	defaultDataDir   = "data"

	defaultConfigFileName = "config.toml"

	defaultConfigFilePath = filepath.Join(defaultConfigDir, defaultConfigFileName)
)

// Config defines the top-level configuration for the mnsync node.
type Config struct {
	// Top level options use an anonymous struct
	BaseConfig `mapstructure:",squash"`

	// Options for services
	Sync            *SyncConfig            `mapstructure:"sync"`
	Instrumentation *InstrumentationConfig `mapstructure:"instrumentation"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseConfig:      DefaultBaseConfig(),
		Sync:            DefaultSyncConfig(),
		Instrumentation: DefaultInstrumentationConfig(),
	}
}

// TestConfig returns a configuration that can be used for testing.
func TestConfig() *Config {
	return &Config{
		BaseConfig:      TestBaseConfig(),
		Sync:            TestSyncConfig(),
		Instrumentation: DefaultInstrumentationConfig(),
	}
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *Config) ValidateBasic() error {
	if err := cfg.BaseConfig.ValidateBasic(); err != nil {
		return err
	}
	if err := cfg.Sync.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [sync] section: %w", err)
	}
	if err := cfg.Instrumentation.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [instrumentation] section: %w", err)
	}
	return nil
}

// SetRoot sets the RootDir for all config structs.
func (cfg *Config) SetRoot(root string) *Config {
	cfg.BaseConfig.RootDir = root
	return cfg
}

//-----------------------------------------------------------------------------
// BaseConfig

// BaseConfig defines the base configuration.
type BaseConfig struct {
	// The root directory for all data.
	RootDir string `mapstructure:"home"`

	// A custom human readable name for this node
	Moniker string `mapstructure:"moniker"`

	// The network this node operates on: mainnet, testnet or regtest.
	Network string `mapstructure:"network"`

	// Whether this node operates in the masternode role. Inbound
	// connections made this early are then assumed to be masternode quorum
	// traffic and excluded from bulk sync.
	Masternode bool `mapstructure:"masternode"`

	// Database backend: goleveldb | badgerdb | memdb
	DBBackend string `mapstructure:"db-backend"`

	// Database directory
	DBPath string `mapstructure:"db-dir"`

	// Output level for logging
	LogLevel string `mapstructure:"log-level"`

	// Output format: 'plain' (colored text) or 'json'
	LogFormat string `mapstructure:"log-format"`
}

// DefaultBaseConfig returns a default base configuration.
func DefaultBaseConfig() BaseConfig {
	return BaseConfig{
		Moniker:   "anonymous",
		Network:   NetworkMainnet,
		DBBackend: "goleveldb",
		DBPath:    defaultDataDir,
		LogLevel:  "info",
		LogFormat: LogFormatPlain,
	}
}

// TestBaseConfig returns a base configuration for testing.
func TestBaseConfig() BaseConfig {
	cfg := DefaultBaseConfig()
	cfg.Network = NetworkRegtest
	cfg.DBBackend = "memdb"
	return cfg
}

// DBDir returns the full path to the database directory.
func (cfg BaseConfig) DBDir() string {
	return rootify(cfg.DBPath, cfg.RootDir)
}

// ValidateBasic performs basic validation and returns an error if any check
// fails.
func (cfg BaseConfig) ValidateBasic() error {
	switch cfg.Network {
	case NetworkMainnet, NetworkTestnet, NetworkRegtest:
	default:
		return fmt.Errorf("unknown network %q", cfg.Network)
	}
	switch cfg.LogFormat {
	case LogFormatPlain, LogFormatJSON:
	default:
		return errors.New("unknown log format (must be 'plain' or 'json')")
	}
	return nil
}

//-----------------------------------------------------------------------------
// SyncConfig

// SyncConfig defines the configuration of the masternode sync process.
type SyncConfig struct {
	// How often the sync driver acts, regardless of how often it is
	// invoked.
	TickInterval time.Duration `mapstructure:"tick-interval"`

	// How long a stage may go without fresh data before it times out.
	TimeoutSeconds time.Duration `mapstructure:"stage-timeout"`

	// How long to wait after a failed sync before starting over.
	FailureCooldown time.Duration `mapstructure:"failure-cooldown"`

	// The number of peers at our height required to consider the
	// blockchain synced via the quorum path.
	EnoughPeers int `mapstructure:"enough-peers"`

	// The maximum gap between our tip and the best known header for the
	// fallback readiness heuristic.
	MaxHeaderGap int64 `mapstructure:"max-header-gap"`

	// The maximum age of the best block/header time for the fallback
	// readiness heuristic.
	MaxTipAge time.Duration `mapstructure:"max-tip-age"`

	// Whether readiness is gated on the configured checkpoint height.
	CheckpointsEnabled bool `mapstructure:"checkpoints-enabled"`
}

// DefaultSyncConfig returns a default sync configuration.
func DefaultSyncConfig() *SyncConfig {
	return &SyncConfig{
		TickInterval:       6 * time.Second,
		TimeoutSeconds:     30 * time.Second,
		FailureCooldown:    60 * time.Second,
		EnoughPeers:        6,
		MaxHeaderGap:       144,
		MaxTipAge:          24 * time.Hour,
		CheckpointsEnabled: true,
	}
}

// TestSyncConfig returns a sync configuration for testing.
func TestSyncConfig() *SyncConfig {
	cfg := DefaultSyncConfig()
	cfg.TickInterval = 10 * time.Millisecond
	cfg.TimeoutSeconds = 100 * time.Millisecond
	cfg.FailureCooldown = 200 * time.Millisecond
	cfg.EnoughPeers = 2
	cfg.CheckpointsEnabled = false
	return cfg
}

// ValidateBasic performs basic validation and returns an error if any check
// fails.
func (cfg *SyncConfig) ValidateBasic() error {
	if cfg.TickInterval <= 0 {
		return errors.New("tick-interval must be positive")
	}
	if cfg.TimeoutSeconds <= 0 {
		return errors.New("stage-timeout must be positive")
	}
	if cfg.FailureCooldown <= 0 {
		return errors.New("failure-cooldown must be positive")
	}
	if cfg.EnoughPeers <= 0 {
		return errors.New("enough-peers must be positive")
	}
	if cfg.MaxHeaderGap <= 0 {
		return errors.New("max-header-gap must be positive")
	}
	if cfg.MaxTipAge <= 0 {
		return errors.New("max-tip-age must be positive")
	}
	return nil
}

//-----------------------------------------------------------------------------
// InstrumentationConfig

// InstrumentationConfig defines the configuration for metrics reporting.
type InstrumentationConfig struct {
	// When true, Prometheus metrics are served under /metrics on
	// PrometheusListenAddr.
	Prometheus bool `mapstructure:"prometheus"`

	// Address to listen for Prometheus collector(s) connections.
	PrometheusListenAddr string `mapstructure:"prometheus-listen-addr"`

	// Maximum number of simultaneous connections.
	// If you want to accept a larger number than the default, make sure
	// you increase your OS limits.
	// 0 - unlimited.
	MaxOpenConnections int `mapstructure:"max-open-connections"`

	// Instrumentation namespace.
	Namespace string `mapstructure:"namespace"`
}

// DefaultInstrumentationConfig returns a default configuration for metrics
// reporting.
func DefaultInstrumentationConfig() *InstrumentationConfig {
	return &InstrumentationConfig{
		Prometheus:           false,
		PrometheusListenAddr: ":26660",
		MaxOpenConnections:   3,
		Namespace:            "mnsync",
	}
}

// ValidateBasic performs basic validation and returns an error if any check
// fails.
func (cfg *InstrumentationConfig) ValidateBasic() error {
	if cfg.MaxOpenConnections < 0 {
		return errors.New("max-open-connections can't be negative")
	}
	if cfg.Prometheus && cfg.PrometheusListenAddr == "" {
		return errors.New("prometheus-listen-addr is required when prometheus is enabled")
	}
	return nil
}

//-----------------------------------------------------------------------------
// Utils

// helper function to make config creation independent of root dir
func rootify(path, root string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
