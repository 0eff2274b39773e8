/*
Copyright © 2024 Nokia
*/
package cmd

import (
	"github.com/beevik/etree"
	"github.com/spf13/cobra"
)

var (
	copySource string
	copyTarget string
)

// copyCmd represents the copy-config command.
var copyCmd = &cobra.Command{
	Use:          "copy",
	Short:        "copy-config from source to target",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		verb := etree.NewElement("copy-config")
		verb.CreateAttr("source", copySource)
		verb.CreateAttr("target", copyTarget)
		reply, err := sendRPC(cmd.Context(), addr, verb)
		if err != nil {
			return err
		}
		return printReply(reply)
	},
}

func init() {
	rootCmd.AddCommand(copyCmd)
	copyCmd.Flags().StringVar(&copySource, "source", "running", "datastore to copy from")
	copyCmd.Flags().StringVar(&copyTarget, "target", "candidate", "datastore to copy into")
}
