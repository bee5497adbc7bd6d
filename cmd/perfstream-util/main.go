package main

import (
	"fmt"

	"github.com/martin2250/perfstream/cmd/perfstream-util/fetch"
	"github.com/martin2250/perfstream/cmd/perfstream-util/send"
	"github.com/martin2250/perfstream/perfset"
	"github.com/martin2250/perfstream/source/registry"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "perfstream-util",
	Short: "perfstream utility",
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the available source and set types",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "sources:")
		for _, name := range registry.ListAvailableSources() {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", name)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "sets:")
		for _, name := range perfset.ListAvailableSets() {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", name)
		}
	},
}

func init() {
	rootCmd.InitDefaultHelpCmd()

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(fetch.NewCommand())
	rootCmd.AddCommand(send.NewCommand())
}

func main() {
	rootCmd.Execute()
}
