package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rpggio/accord/internal/domain/protocol"
	"github.com/rpggio/accord/internal/domain/room"
	"github.com/rpggio/accord/internal/repository"
)

var statusCmd = &cobra.Command{
	Use:   "status [id]",
	Short: "Show negotiation status",
	Long: `Status without arguments lists sessions and rooms. With an ID it
prints the full state of that session or room as JSON.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

var statusAll bool

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&statusAll, "all", "a", false, "Include resolved sessions and closed rooms")
}

func runStatus(cmd *cobra.Command, args []string) error {
	app, err := buildApp(os.Stderr)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := cmd.Context()

	if len(args) == 1 {
		if sess, err := app.sessions.Get(ctx, args[0]); err == nil {
			return printJSON(sess)
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		rm, err := app.rooms.Get(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(rm)
	}

	sessions, err := app.sessions.List(ctx)
	if err != nil {
		return err
	}
	rooms, err := app.rooms.List(ctx)
	if err != nil {
		return err
	}

	fmt.Println("Sessions:")
	shown := 0
	for _, sess := range sessions {
		if !statusAll && sess.Terminal() {
			continue
		}
		fmt.Printf("  %-24s %-10s round %d/%d  %s\n", sess.ID, sess.Status, sess.CurrentRound, protocol.MaxRounds, sess.Topic)
		shown++
	}
	if shown == 0 {
		fmt.Println("  (none)")
	}

	fmt.Println("Rooms:")
	shown = 0
	for _, rm := range rooms {
		if !statusAll && rm.Status != room.StatusOpen {
			continue
		}
		fmt.Printf("  %-24s %-10s due %s  %s\n", rm.ID, rm.Status, rm.Deadline.Format(time.RFC3339), rm.Topic)
		shown++
	}
	if shown == 0 {
		fmt.Println("  (none)")
	}
	return nil
}
