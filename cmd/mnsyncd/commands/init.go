package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dashpay/mnsync/config"
	tmos "github.com/dashpay/mnsync/libs/os"
)

// InitFilesCmd initializes the home directory and writes a default config
// file.
var InitFilesCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the home directory with a default config file",
	RunE:  initFiles,
}

func init() {
	InitFilesCmd.Flags().String("network", conf.Network,
		"network to configure: mainnet | testnet | regtest")
	InitFilesCmd.Flags().Bool("masternode", conf.Masternode,
		"configure the node for the masternode role")
}

func initFiles(cmd *cobra.Command, args []string) error {
	if err := config.EnsureRoot(conf.RootDir); err != nil {
		return err
	}

	configFilePath := filepath.Join(conf.RootDir, "config", "config.toml")
	if tmos.FileExists(configFilePath) {
		logger.Info("found existing config file", "path", configFilePath)
		return nil
	}

	if err := config.WriteConfigFile(conf.RootDir, conf); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	logger.Info("generated config file", "path", configFilePath, "network", conf.Network)
	return nil
}
