/*
Copyright © 2024 Nokia
*/
package cmd

import (
	"github.com/beevik/etree"
	"github.com/spf13/cobra"
)

// discardCmd represents the discard-changes command.
var discardCmd = &cobra.Command{
	Use:          "discard",
	Short:        "discard-changes: reset candidate from running",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		reply, err := sendRPC(cmd.Context(), addr, etree.NewElement("discard-changes"))
		if err != nil {
			return err
		}
		return printReply(reply)
	},
}

func init() {
	rootCmd.AddCommand(discardCmd)
}
