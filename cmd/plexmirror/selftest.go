package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vmunix/plexmirror/internal/engine"
)

var selfTestCmd = &cobra.Command{
	Use:   "self-test",
	Short: "Run the built-in engine checks against an in-memory server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := engine.SelfTest(); err != nil {
			return err
		}
		fmt.Println("Self tests passed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(selfTestCmd)
}
