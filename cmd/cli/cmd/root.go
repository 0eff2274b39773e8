/*
Copyright © 2024 Nokia
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "datactl",
	Short: "client for the local-socket RPC dispatcher",
}

var (
	addr   string
	format string
)

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen
// once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&addr, "address", "a", "/var/run/clixon-engine.sock", "dispatcher socket address")
	rootCmd.PersistentFlags().StringVar(&format, "format", "xml", "print format, 'xml' or 'json'")
}
