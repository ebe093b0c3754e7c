package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `accord negotiates over email on behalf of its owner. Work is organized as Sessions and Rooms.

Core concepts (keep this mental model small):
- Session: per-item voting toward consensus. Each item has options; consensus means every participant voted for the same option.
- Room: a deadline-bounded negotiation over shared artifacts (drafts). The deadline always wins: when it passes, the room locks and minutes are produced even if not everyone accepted.
- Round: replies are batched. The agent sends at most one protocol message per session per round, after everyone it is waiting on has replied.
- Minutes: the summary artifact a finalized room mails to all participants. Recipients may CONFIRM or REJECT it.

Rules of engagement (default workflow):
1) Orient: list_sessions(active_only=true) and list_rooms(open_only=true).
2) Start negotiations: initiate_session for structured voting, initiate_room for collaborative drafting against a deadline.
3) Steer: respond(session_id, text) injects the owner's guidance; the agent votes accordingly.
4) Progress happens on poll: the agent fetches mail on a schedule. poll_now forces a cycle when you want immediate movement.
5) Inspect: get_session / get_room return full state including history and transcript.

Docs (progressive disclosure):
- accord://docs/index (what to read when)
- accord://docs/concepts (glossary + invariants)
- accord://docs/mail-protocol (wire conventions for interoperating agents)
- accord://docs/workflows/negotiating
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "accord://docs/index",
		Name:        "docs_index",
		Title:       "accord docs index",
		Description: "Entry point for agent-facing docs: what exists and what to read.",
		Content: `# accord: Agent Docs Index

This server negotiates over email. Keep your baseline context small and load deeper docs only when needed.

## Quick start (no deep docs)

1. ` + "`list_sessions`" + ` / ` + "`list_rooms`" + ` to see what is in flight.
2. ` + "`initiate_session`" + ` to start structured voting, ` + "`initiate_room`" + ` for deadline-bounded drafting.
3. ` + "`respond`" + ` to steer a session with the owner's preferences.
4. ` + "`poll_now`" + ` to force a mail cycle instead of waiting for the schedule.

## Docs (read on demand)

- ` + "`accord://docs/concepts`" + ` — glossary + invariants (rounds, consensus, deadlines).
- ` + "`accord://docs/mail-protocol`" + ` — subject tags, attachments, and message IDs on the wire.
- ` + "`accord://docs/workflows/negotiating`" + ` — the normal initiate/steer/poll loop.

## Intentional limitations

- The agent never sends mid-round; replies go out only when a round completes. Use ` + "`get_session`" + ` to see who is still awaited.
- Negotiations that reach round 5 without consensus escalate to the owner instead of looping forever.
`,
	},
	{
		URI:         "accord://docs/concepts",
		Name:        "docs_concepts",
		Title:       "Concepts and invariants",
		Description: "Mental model + invariant rules: rounds, consensus, deadlines, and escalation.",
		Content: `# Concepts and invariants

## Glossary

- **Session**: a negotiation over named items (e.g. ` + "`day`" + `, ` + "`time`" + `). Each item carries options and one vote per participant.
- **Consensus**: every participant voted, and for the same option, on every item. Consensus triggers a confirmation message and closes the session.
- **Counter-proposal**: a vote for an option nobody listed. It is appended to the item's options rather than rejected.
- **Room**: negotiation over shared text artifacts with a hard deadline. Participants PROPOSE, AMEND, ACCEPT, or REJECT.
- **Minutes**: the artifact a room produces when it finalizes; mailed to everyone for CONFIRM/REJECT.
- **Round**: a reply-batching window. Round 1 waits for everyone except the initiator (the proposal itself was their move); later rounds wait for everyone.

## Rounds (why they exist)

Email is slow and bursty. Rounds prevent reply storms: the agent accumulates inbound replies and answers **once per round**, after everyone it is waiting on has spoken. A participant who replies twice in the same round is counted once.

## Deadline beats agreement

A room's deadline is authoritative. When it passes, the room locks and minutes go out, accepted or not. All-accepted closes a room early, but only a passed deadline can close one over objections.

## Escalation

Sessions cap at 5 rounds. A session still unresolved at the cap escalates: the owner gets a summary email and the session stops negotiating. Oracle failures degrade the same way rather than guessing.
`,
	},
	{
		URI:         "accord://docs/mail-protocol",
		Name:        "docs_mail_protocol",
		Title:       "Mail wire conventions",
		Description: "Subject tags, protocol attachments, and message IDs used to interoperate with other agents.",
		Content: `# Mail wire conventions

Counterpart agents (and patient humans) interoperate via plain email:

- **Subject tags** correlate threads: ` + "`[AIMP:<session-id>]`" + ` for sessions, ` + "`[AIMP:Room:<room-id>]`" + ` for rooms. The tag survives ` + "`Re:`" + ` prefixes.
- **Protocol attachment**: agent-to-agent messages carry a ` + "`protocol.json`" + ` attachment with the sender's full view of the negotiation state. The body stays human-readable.
- **Message IDs** encode entity and version: ` + "`<aimp-{id}-v{version}-{timestamp}@domain>`" + `.
- **Free-text replies** (no attachment) are interpreted by the decision model, so humans can negotiate by just writing back.
- Auto-replies and bounces (mailer-daemon, out-of-office) are filtered before processing.

Inbound mail is stored before it is interpreted; a crash mid-cycle replays unprocessed messages on the next poll.
`,
	},
	{
		URI:         "accord://docs/workflows/negotiating",
		Name:        "docs_workflow_negotiating",
		Title:       "Workflow: negotiating",
		Description: "Playbook for the normal initiate, steer, and poll loop.",
		Content: `# Workflow: negotiating

## 1) Initiate

- Structured decision (pick a day, pick a venue): ` + "`initiate_session`" + ` with items and options. The agent emails the proposal; participants vote by replying.
- Shared document (agenda, statement of work): ` + "`initiate_room`" + ` with a draft and a deadline.

## 2) Steer

` + "`respond(session_id, text)`" + ` feeds the owner's guidance to the decision model, which votes under the agent's address. Plain language works: "prefer Thursday, no early mornings".

## 3) Let it run

Progress is poll-driven. Each cycle the agent fetches mail, applies replies, and answers any round that completed. ` + "`poll_now`" + ` forces a cycle.

## 4) Watch for terminal events

- ` + "`consensus`" + ` — session resolved; a confirmation went to all participants and the owner.
- ` + "`escalation`" + ` — the agent gave up (round cap or oracle failure); the owner must take over by email.
- ` + "`room_finalized`" + ` — minutes went out; watch for ` + "`room_veto`" + ` if a participant rejects them.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		doc := doc

		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
