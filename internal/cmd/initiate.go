package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rpggio/accord/internal/domain/room"
	"github.com/rpggio/accord/internal/domain/session"
)

var initiateCmd = &cobra.Command{
	Use:   "initiate",
	Short: "Start a negotiation",
}

var initiateSessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Start a voting session over named items",
	Long: `Initiate a session: emails a proposal to the participants and tracks
per-item voting toward consensus.

Examples:
  accord initiate session --topic "Team sync" \
    --participants alice@example.com,bob@example.com \
    --item "day=Tuesday|Thursday" --item "time=10:00|14:00"`,
	RunE: runInitiateSession,
}

var initiateRoomCmd = &cobra.Command{
	Use:   "room",
	Short: "Open a deadline-bounded room over shared artifacts",
	Long: `Initiate a room: emails an invitation with a draft artifact that
participants amend and accept. When the deadline passes the room locks
and minutes go out, agreed or not.

Examples:
  accord initiate room --topic "Offsite agenda" \
    --participants alice@example.com,bob@example.com \
    --deadline 2026-09-15T17:00:00Z --draft-file agenda.md`,
	RunE: runInitiateRoom,
}

var (
	initID           string
	initTopic        string
	initParticipants []string
	initItems        []string
	initDeadline     string
	initPolicy       string
	initDraft        string
	initDraftFile    string
)

func init() {
	rootCmd.AddCommand(initiateCmd)
	initiateCmd.AddCommand(initiateSessionCmd)
	initiateCmd.AddCommand(initiateRoomCmd)

	for _, c := range []*cobra.Command{initiateSessionCmd, initiateRoomCmd} {
		c.Flags().StringVar(&initID, "id", "", "Identifier (generated if omitted)")
		c.Flags().StringVar(&initTopic, "topic", "", "What is being negotiated")
		c.Flags().StringSliceVar(&initParticipants, "participants", nil, "Participant email addresses")
	}
	initiateSessionCmd.Flags().StringArrayVar(&initItems, "item", nil, `Negotiable item as "name=option|option" (repeatable)`)
	initiateRoomCmd.Flags().StringVar(&initDeadline, "deadline", "", "RFC 3339 deadline, e.g. 2026-09-15T17:00:00Z")
	initiateRoomCmd.Flags().StringVar(&initPolicy, "policy", "", "Resolution policy: majority, unanimous, or initiator_decides")
	initiateRoomCmd.Flags().StringVar(&initDraft, "draft", "", "Initial draft artifact content")
	initiateRoomCmd.Flags().StringVar(&initDraftFile, "draft-file", "", "Read the initial draft from a file")
}

func runInitiateSession(cmd *cobra.Command, args []string) error {
	items, err := parseItems(initItems)
	if err != nil {
		return err
	}

	app, err := buildApp(os.Stderr)
	if err != nil {
		return err
	}
	defer app.Close()

	sess, err := app.engine.InitiateSession(cmd.Context(), session.InitiateRequest{
		ID:           initID,
		Topic:        initTopic,
		Participants: initParticipants,
		Items:        items,
	})
	if err != nil {
		return err
	}
	return printJSON(sess)
}

func runInitiateRoom(cmd *cobra.Command, args []string) error {
	deadline, err := time.Parse(time.RFC3339, initDeadline)
	if err != nil {
		return fmt.Errorf("parse deadline: %w", err)
	}
	draft := initDraft
	if initDraftFile != "" {
		data, err := os.ReadFile(initDraftFile)
		if err != nil {
			return fmt.Errorf("read draft file: %w", err)
		}
		draft = string(data)
	}

	app, err := buildApp(os.Stderr)
	if err != nil {
		return err
	}
	defer app.Close()

	rm, err := app.engine.InitiateRoom(cmd.Context(), room.InitiateRequest{
		ID:           initID,
		Topic:        initTopic,
		Deadline:     deadline,
		Participants: initParticipants,
		Policy:       room.Policy(initPolicy),
		Draft:        draft,
	})
	if err != nil {
		return err
	}
	return printJSON(rm)
}

// parseItems turns "day=Tuesday|Thursday" flags into the items map.
func parseItems(flags []string) (map[string][]string, error) {
	if len(flags) == 0 {
		return nil, fmt.Errorf("at least one --item is required")
	}
	items := make(map[string][]string, len(flags))
	for _, flag := range flags {
		name, opts, ok := strings.Cut(flag, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --item %q: expected name=option|option", flag)
		}
		var options []string
		for _, opt := range strings.Split(opts, "|") {
			if opt = strings.TrimSpace(opt); opt != "" {
				options = append(options, opt)
			}
		}
		items[name] = options
	}
	return items, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
