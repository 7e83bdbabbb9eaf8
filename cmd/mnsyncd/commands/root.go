package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dashpay/mnsync/config"
	"github.com/dashpay/mnsync/libs/cli"
	"github.com/dashpay/mnsync/libs/log"
)

var (
	conf   = config.DefaultConfig()
	logger = log.MustNewDefaultLogger(log.LogFormatPlain, log.LogLevelInfo, os.Stderr)
)

// ParseConfig unmarshals the viper state into the config, sets the root
// directory and validates the result.
func ParseConfig() (*config.Config, error) {
	if err := viper.Unmarshal(conf); err != nil {
		return nil, err
	}

	conf.SetRoot(conf.RootDir)

	if err := conf.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("error in config file: %w", err)
	}
	return conf, nil
}

// RootCmd is the root command for the masternode sync daemon.
var RootCmd = &cobra.Command{
	Use:   "mnsyncd",
	Short: "Masternode data synchronization daemon",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == VersionCmd.Name() {
			return nil
		}

		if err := cli.BindFlagsLoadViper(cmd, args); err != nil {
			return err
		}

		if _, err := ParseConfig(); err != nil {
			return err
		}

		logger = log.MustNewDefaultLogger(conf.LogFormat, conf.LogLevel, os.Stderr)
		return nil
	},
}

func init() {
	RootCmd.PersistentFlags().StringP(cli.HomeFlag, "", os.ExpandEnv(filepath.Join("$HOME", config.DefaultMnsyncDir)),
		"directory for config and data")
	RootCmd.PersistentFlags().String("log-level", conf.LogLevel, "log level")
	cobra.OnInitialize(func() { cli.InitEnv("MNSYNC") })
}
