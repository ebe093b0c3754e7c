package cmd

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var respondCmd = &cobra.Command{
	Use:   "respond <session-id> <guidance...>",
	Short: "Steer a session with the owner's guidance",
	Long: `Respond feeds the owner's free-text guidance to the decision model,
which votes under the agent's address. If that completes the current
round, the reply goes out immediately.

Examples:
  accord respond meeting-4f2a91bb "prefer Thursday, no early mornings"`,
	Args: cobra.MinimumNArgs(2),
	RunE: runRespond,
}

func init() {
	rootCmd.AddCommand(respondCmd)
}

func runRespond(cmd *cobra.Command, args []string) error {
	app, err := buildApp(os.Stderr)
	if err != nil {
		return err
	}
	defer app.Close()

	events, err := app.engine.Respond(cmd.Context(), args[0], strings.Join(args[1:], " "))
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	for _, evt := range events {
		if err := enc.Encode(evt); err != nil {
			return err
		}
	}
	return nil
}
