package mcp

import (
	"context"
	"fmt"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/accord/internal/domain/room"
	"github.com/rpggio/accord/internal/domain/session"
	"github.com/rpggio/accord/internal/engine"
)

type initiateSessionInput struct {
	ID           string              `json:"id,omitempty" jsonschema:"Session identifier (optional, generated if omitted)"`
	Topic        string              `json:"topic" jsonschema:"What is being negotiated, e.g. 'Team sync scheduling'"`
	Participants []string            `json:"participants" jsonschema:"Email addresses of the other parties"`
	Items        map[string][]string `json:"items" jsonschema:"Negotiable items mapped to their initial options, e.g. {\"day\": [\"Tuesday\", \"Thursday\"]}"`
}

type sessionOutput struct {
	Session *session.Session `json:"session"`
}

type sessionIDInput struct {
	ID string `json:"id" jsonschema:"Session ID"`
}

type listSessionsInput struct {
	ActiveOnly bool `json:"active_only,omitempty" jsonschema:"Only return sessions still negotiating"`
}

type listSessionsOutput struct {
	Sessions []*session.Session `json:"sessions"`
}

type respondInput struct {
	SessionID string `json:"session_id" jsonschema:"Session to respond in"`
	Text      string `json:"text" jsonschema:"Free-text guidance from the owner, e.g. 'prefer Thursday, mornings only'"`
}

type initiateRoomInput struct {
	ID           string   `json:"id,omitempty" jsonschema:"Room identifier (optional, generated if omitted)"`
	Topic        string   `json:"topic" jsonschema:"What the room is negotiating"`
	Deadline     string   `json:"deadline" jsonschema:"RFC 3339 timestamp after which the room locks"`
	Participants []string `json:"participants" jsonschema:"Email addresses of the other parties"`
	Policy       string   `json:"policy,omitempty" jsonschema:"Resolution policy: majority, unanimous, or initiator_decides (default majority)"`
	Draft        string   `json:"draft,omitempty" jsonschema:"Initial draft artifact content"`
}

type roomOutput struct {
	Room *room.Room `json:"room"`
}

type roomIDInput struct {
	ID string `json:"id" jsonschema:"Room ID"`
}

type listRoomsInput struct {
	OpenOnly bool `json:"open_only,omitempty" jsonschema:"Only return rooms still open"`
}

type listRoomsOutput struct {
	Rooms []*room.Room `json:"rooms"`
}

type pollInput struct{}

type eventsOutput struct {
	Events []engine.Event `json:"events"`
}

// registerTools registers all negotiation tools on the server.
func registerTools(server *sdkmcp.Server, svc Services) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "initiate_session",
		Description: "Start a negotiation session: emails a proposal to the participants and tracks voting toward consensus",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in initiateSessionInput) (*sdkmcp.CallToolResult, sessionOutput, error) {
		sess, err := svc.Negotiator.InitiateSession(ctx, session.InitiateRequest{
			ID:           in.ID,
			Topic:        in.Topic,
			Participants: in.Participants,
			Items:        in.Items,
		})
		if err != nil {
			return nil, sessionOutput{}, toolError(err)
		}
		return nil, sessionOutput{Session: sess}, nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_session",
		Description: "Get the full state of a negotiation session: proposals, votes, round, and history",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in sessionIDInput) (*sdkmcp.CallToolResult, sessionOutput, error) {
		sess, err := svc.Sessions.Get(ctx, in.ID)
		if err != nil {
			return nil, sessionOutput{}, toolError(err)
		}
		return nil, sessionOutput{Session: sess}, nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_sessions",
		Description: "List negotiation sessions, optionally only those still active",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in listSessionsInput) (*sdkmcp.CallToolResult, listSessionsOutput, error) {
		var (
			sessions []*session.Session
			err      error
		)
		if in.ActiveOnly {
			sessions, err = svc.Sessions.ListActive(ctx)
		} else {
			sessions, err = svc.Sessions.List(ctx)
		}
		if err != nil {
			return nil, listSessionsOutput{}, toolError(err)
		}
		return nil, listSessionsOutput{Sessions: sessions}, nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "respond",
		Description: "Inject the owner's guidance into a session, voting on their behalf and sending a reply if the round completes",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in respondInput) (*sdkmcp.CallToolResult, eventsOutput, error) {
		events, err := svc.Negotiator.Respond(ctx, in.SessionID, in.Text)
		if err != nil {
			return nil, eventsOutput{}, toolError(err)
		}
		return nil, eventsOutput{Events: events}, nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "initiate_room",
		Description: "Open a deadline-bounded negotiation room: emails an invitation with a draft artifact that participants amend and accept",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in initiateRoomInput) (*sdkmcp.CallToolResult, roomOutput, error) {
		deadline, err := time.Parse(time.RFC3339, in.Deadline)
		if err != nil {
			return nil, roomOutput{}, fmt.Errorf("parse deadline: %w", err)
		}
		rm, err := svc.Negotiator.InitiateRoom(ctx, room.InitiateRequest{
			ID:           in.ID,
			Topic:        in.Topic,
			Deadline:     deadline,
			Participants: in.Participants,
			Policy:       room.Policy(in.Policy),
			Draft:        in.Draft,
		})
		if err != nil {
			return nil, roomOutput{}, toolError(err)
		}
		return nil, roomOutput{Room: rm}, nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_room",
		Description: "Get the full state of a room: artifacts, transcript, acceptances, and status",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in roomIDInput) (*sdkmcp.CallToolResult, roomOutput, error) {
		rm, err := svc.Rooms.Get(ctx, in.ID)
		if err != nil {
			return nil, roomOutput{}, toolError(err)
		}
		return nil, roomOutput{Room: rm}, nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_rooms",
		Description: "List negotiation rooms, optionally only those still open",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in listRoomsInput) (*sdkmcp.CallToolResult, listRoomsOutput, error) {
		var (
			rooms []*room.Room
			err   error
		)
		if in.OpenOnly {
			rooms, err = svc.Rooms.ListOpen(ctx)
		} else {
			rooms, err = svc.Rooms.List(ctx)
		}
		if err != nil {
			return nil, listRoomsOutput{}, toolError(err)
		}
		return nil, listRoomsOutput{Rooms: rooms}, nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "poll_now",
		Description: "Run one mail poll cycle immediately instead of waiting for the next scheduled poll; returns the events it produced",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, _ pollInput) (*sdkmcp.CallToolResult, eventsOutput, error) {
		events, err := svc.Negotiator.PollOnce(ctx)
		if err != nil {
			return nil, eventsOutput{}, toolError(err)
		}
		return nil, eventsOutput{Events: events}, nil
	})
}

// toolError wraps known domain errors with codes and hints; unknown errors
// pass through unchanged.
func toolError(err error) error {
	if apiErr := MapError(err); apiErr != nil {
		return apiErr
	}
	return err
}
