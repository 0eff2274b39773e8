/*
Copyright © 2024 Nokia
*/
package cmd

import (
	"github.com/beevik/etree"
	"github.com/spf13/cobra"
)

// commitCmd represents the commit command.
var commitCmd = &cobra.Command{
	Use:          "commit",
	Short:        "commit candidate into running",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		reply, err := sendRPC(cmd.Context(), addr, etree.NewElement("commit"))
		if err != nil {
			return err
		}
		return printReply(reply)
	},
}

func init() {
	rootCmd.AddCommand(commitCmd)
}
