package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	tmos "github.com/dashpay/mnsync/libs/os"
)

// defaultDirPerm is the default permissions used when creating directories.
const defaultDirPerm = 0700

var configTemplate *template.Template

func init() {
	var err error
	tmpl := template.New("configFileTemplate")
	if configTemplate, err = tmpl.Parse(defaultConfigTemplate); err != nil {
		panic(err)
	}
}

/****** these are for production settings ***********/

// EnsureRoot creates the root, config, and data directories if they don't
// exist.
func EnsureRoot(rootDir string) error {
	if err := tmos.EnsureDir(rootDir, defaultDirPerm); err != nil {
		return err
	}
	if err := tmos.EnsureDir(filepath.Join(rootDir, defaultConfigDir), defaultDirPerm); err != nil {
		return err
	}
	return tmos.EnsureDir(filepath.Join(rootDir, defaultDataDir), defaultDirPerm)
}

// WriteConfigFile renders config using the template and writes it to
// <rootDir>/config/config.toml.
func WriteConfigFile(rootDir string, config *Config) error {
	return config.WriteToTemplate(filepath.Join(rootDir, defaultConfigFilePath))
}

// WriteToTemplate writes the config to the exact file specified by the path,
// in the default toml template and does not mangle the path or filename at
// all.
func (cfg *Config) WriteToTemplate(path string) error {
	var buffer bytes.Buffer

	if err := configTemplate.Execute(&buffer, cfg); err != nil {
		return err
	}

	return writeFile(path, buffer.Bytes(), 0644)
}

func writeFile(filePath string, contents []byte, mode os.FileMode) error {
	if err := os.WriteFile(filePath, contents, mode); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// Note: any changes to the comments/variables/mapstructure
// must be reflected in the appropriate struct in config/config.go.
const defaultConfigTemplate = `# This is a TOML config file.
# For more information, see https://github.com/toml-lang/toml

# NOTE: Any path below can be absolute (e.g. "/var/mnsync/data") or
# relative to the home directory (e.g. "data"). The home directory is
# "$HOME/.mnsync" by default, but could be changed via $MNSYNCHOME env variable
# or --home cmd flag.

#######################################################################
###                   Main Base Config Options                      ###
#######################################################################

# A custom human readable name for this node
moniker = "{{ .BaseConfig.Moniker }}"

# The network this node operates on: mainnet, testnet or regtest.
# Regtest enables the quick sync mode used for local testing.
network = "{{ .BaseConfig.Network }}"

# Whether this node operates in the masternode role.
masternode = {{ .BaseConfig.Masternode }}

# Database backend: goleveldb | badgerdb | memdb
db-backend = "{{ .BaseConfig.DBBackend }}"

# Database directory
db-dir = "{{ js .BaseConfig.DBPath }}"

# Output level for logging, including package level options
log-level = "{{ .BaseConfig.LogLevel }}"

# Output format: 'plain' (colored text) or 'json'
log-format = "{{ .BaseConfig.LogFormat }}"

#######################################################################
###                 Masternode Sync Configuration                   ###
#######################################################################
[sync]

# How often the sync driver acts, regardless of how often it is invoked.
tick-interval = "{{ .Sync.TickInterval }}"

# How long a stage may go without fresh data before it times out.
stage-timeout = "{{ .Sync.TimeoutSeconds }}"

# How long to wait after a failed sync before starting over.
failure-cooldown = "{{ .Sync.FailureCooldown }}"

# The number of peers at our height required to consider the blockchain
# synced via the quorum path.
enough-peers = {{ .Sync.EnoughPeers }}

# The maximum gap between our tip and the best known header for the
# fallback readiness heuristic.
max-header-gap = {{ .Sync.MaxHeaderGap }}

# The maximum age of the best block/header time for the fallback
# readiness heuristic.
max-tip-age = "{{ .Sync.MaxTipAge }}"

# Whether readiness is gated on the configured checkpoint height.
checkpoints-enabled = {{ .Sync.CheckpointsEnabled }}

#######################################################
###       Instrumentation Configuration Options     ###
#######################################################
[instrumentation]

# When true, Prometheus metrics are served under /metrics on
# prometheus-listen-addr.
# Check out the documentation for the list of available metrics.
prometheus = {{ .Instrumentation.Prometheus }}

# Address to listen for Prometheus collector(s) connections
prometheus-listen-addr = "{{ .Instrumentation.PrometheusListenAddr }}"

# Maximum number of simultaneous connections.
# If you want to accept a larger number than the default, make sure
# you increase your OS limits.
# 0 - unlimited.
max-open-connections = {{ .Instrumentation.MaxOpenConnections }}

# Instrumentation namespace
namespace = "{{ .Instrumentation.Namespace }}"
`
