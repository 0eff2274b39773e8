/*
Copyright © 2024 Nokia
*/
package cmd

import (
	"github.com/beevik/etree"
	"github.com/spf13/cobra"
)

var lockTarget string

// lockCmd represents the lock command.
var lockCmd = &cobra.Command{
	Use:          "lock",
	Short:        "acquire an advisory lock on a datastore",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		verb := etree.NewElement("lock")
		verb.CreateAttr("target", lockTarget)
		reply, err := sendRPC(cmd.Context(), addr, verb)
		if err != nil {
			return err
		}
		return printReply(reply)
	},
}

// unlockCmd represents the unlock command.
var unlockCmd = &cobra.Command{
	Use:          "unlock",
	Short:        "release an advisory lock on a datastore",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		verb := etree.NewElement("unlock")
		verb.CreateAttr("target", lockTarget)
		reply, err := sendRPC(cmd.Context(), addr, verb)
		if err != nil {
			return err
		}
		return printReply(reply)
	},
}

func init() {
	rootCmd.AddCommand(lockCmd)
	rootCmd.AddCommand(unlockCmd)
	lockCmd.Flags().StringVarP(&lockTarget, "target", "t", "candidate", "datastore to lock")
	unlockCmd.Flags().StringVarP(&lockTarget, "target", "t", "candidate", "datastore to unlock")
}
