package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Run one mail poll cycle and print the resulting events",
	Long: `Poll fetches pending mail once, advances every negotiation it
touches, and prints the resulting events as JSON lines. Intended for
cron-style deployments and debugging; the serve command runs the same
cycle on a schedule.`,
	RunE: runPoll,
}

func init() {
	rootCmd.AddCommand(pollCmd)
}

func runPoll(cmd *cobra.Command, args []string) error {
	app, err := buildApp(os.Stderr)
	if err != nil {
		return err
	}
	defer app.Close()

	events, err := app.engine.PollOnce(cmd.Context())
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
