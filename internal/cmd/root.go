package cmd

import (
	"github.com/spf13/cobra"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "accord",
	Short: "Email negotiation agent",
	Long: `Accord negotiates over email on behalf of its owner: scheduling,
venue selection, and collaborative drafting against deadlines.

It polls a mailbox, interprets replies from counterpart agents and
humans, votes according to the owner's preferences, and batches its
answers into one message per negotiation round.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default $ACCORD_CONFIG_PATH)")
}
