/*
Copyright © 2024 Nokia
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/beevik/etree"
	"github.com/spf13/cobra"
)

var (
	editTarget string
	editOp     string
	editFile   string
)

// editCmd represents the edit-config command.
var editCmd = &cobra.Command{
	Use:          "edit",
	Short:        "edit-config against a datastore",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if editFile == "" {
			return fmt.Errorf("--file is required")
		}
		b, err := os.ReadFile(editFile)
		if err != nil {
			return err
		}
		configDoc := etree.NewDocument()
		if err := configDoc.ReadFromBytes(b); err != nil {
			return fmt.Errorf("parse %s: %w", editFile, err)
		}

		verb := etree.NewElement("edit-config")
		verb.CreateAttr("target", editTarget)
		verb.CreateAttr("default-operation", editOp)
		config := verb.CreateElement("config")
		for _, c := range configDoc.Root().ChildElements() {
			config.AddChild(c.Copy())
		}

		reply, err := sendRPC(cmd.Context(), addr, verb)
		if err != nil {
			return err
		}
		return printReply(reply)
	},
}

func init() {
	rootCmd.AddCommand(editCmd)
	editCmd.Flags().StringVarP(&editTarget, "target", "t", "candidate", "datastore to edit")
	editCmd.Flags().StringVarP(&editOp, "operation", "o", "merge", "default operation: merge|replace|create|delete|remove|none")
	editCmd.Flags().StringVarP(&editFile, "file", "f", "", "XML file holding the <config> content")
}
