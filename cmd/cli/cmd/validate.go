/*
Copyright © 2024 Nokia
*/
package cmd

import (
	"github.com/beevik/etree"
	"github.com/spf13/cobra"
)

var validateSource string

// validateCmd represents the validate command.
var validateCmd = &cobra.Command{
	Use:          "validate",
	Short:        "validate a datastore without committing it",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		verb := etree.NewElement("validate")
		verb.CreateAttr("source", validateSource)
		reply, err := sendRPC(cmd.Context(), addr, verb)
		if err != nil {
			return err
		}
		return printReply(reply)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVarP(&validateSource, "source", "s", "candidate", "datastore to validate")
}
