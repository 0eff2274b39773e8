/*
Copyright © 2024 Nokia
*/
package cmd

import (
	"github.com/beevik/etree"
	"github.com/spf13/cobra"
)

var deleteTarget string

// deleteCmd represents the delete-config command.
var deleteCmd = &cobra.Command{
	Use:          "delete",
	Short:        "delete-config: remove a non-running datastore",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		verb := etree.NewElement("delete-config")
		verb.CreateAttr("target", deleteTarget)
		reply, err := sendRPC(cmd.Context(), addr, verb)
		if err != nil {
			return err
		}
		return printReply(reply)
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
	deleteCmd.Flags().StringVarP(&deleteTarget, "target", "t", "", "datastore to delete (must not be running)")
}
