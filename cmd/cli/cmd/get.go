/*
Copyright © 2024 Nokia
*/
package cmd

import (
	"github.com/beevik/etree"
	"github.com/spf13/cobra"
)

var (
	getSource string
	getXPath  string
)

// getCmd represents the get-config command.
var getCmd = &cobra.Command{
	Use:          "get",
	Short:        "get-config from a datastore",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		verb := etree.NewElement("get-config")
		verb.CreateAttr("source", getSource)
		if getXPath != "" {
			verb.CreateElement("filter").SetText(getXPath)
		}

		reply, err := sendRPC(cmd.Context(), addr, verb)
		if err != nil {
			return err
		}
		return printReply(reply)
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
	getCmd.Flags().StringVarP(&getSource, "source", "s", "running", "datastore to read")
	getCmd.Flags().StringVarP(&getXPath, "xpath", "x", "", "restrict the result to a subtree path")
}
