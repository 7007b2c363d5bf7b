package main

import (
	"github.com/spf13/cobra"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List available providers",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		for _, t := range builtinRegistry().Types() {
			cmd.Printf("%-8s %s\n", t.Name, t.Description)
		}
	},
}

func init() {
	rootCmd.AddCommand(providersCmd)
}
