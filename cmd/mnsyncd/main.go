package main

import (
	"os"

	"github.com/dashpay/mnsync/cmd/mnsyncd/commands"
)

func main() {
	rootCmd := commands.RootCmd
	rootCmd.AddCommand(
		commands.InitFilesCmd,
		commands.StartCmd,
		commands.VersionCmd,
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(2)
	}
}
