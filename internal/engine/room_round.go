package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rpggio/accord/internal/domain/inbox"
	"github.com/rpggio/accord/internal/domain/protocol"
	"github.com/rpggio/accord/internal/domain/room"
	"github.com/rpggio/accord/internal/mail"
	"github.com/rpggio/accord/internal/oracle"
	"github.com/rpggio/accord/internal/repository"
)

// processRoom drains the pending backlog for one room. Open rooms collect
// moves and close on deadline or unanimous acceptance; finalized rooms only
// accept minutes confirmations and vetoes.
func (e *Engine) processRoom(ctx context.Context, id string) ([]Event, error) {
	pending, err := e.inbox.LoadPendingFor(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load pending for %s: %w", id, err)
	}
	if len(pending) == 0 {
		return nil, nil
	}

	rm, err := e.rooms.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		e.logger.Warn("mail for unknown room", "room_id", id)
		if err := e.markProcessed(ctx, pending); err != nil {
			return nil, err
		}
		return []Event{{Type: EventIgnored, RoomID: id, Detail: "unknown room"}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load room %s: %w", id, err)
	}

	switch rm.Status {
	case room.StatusFinalized:
		return e.processVetoes(ctx, rm, pending)
	case room.StatusLocked:
		if err := e.markProcessed(ctx, pending); err != nil {
			return nil, err
		}
		return []Event{{Type: EventIgnored, RoomID: id, Detail: "room locked"}}, nil
	}

	var events []Event
	for _, msg := range pending {
		move, err := e.roomMove(ctx, rm, msg)
		if err != nil {
			return events, err
		}
		e.applyRoomMove(rm, msg.Sender, move)
		rm.RecordRoundReply(msg.Sender)
	}

	if trigger, ok := rm.CloseTrigger(e.now()); ok {
		closeEvents, err := e.closeRoom(ctx, rm, trigger)
		if err != nil {
			return events, err
		}
		events = append(events, closeEvents...)
		if err := e.markProcessed(ctx, pending); err != nil {
			return events, err
		}
		return events, nil
	}

	if rm.IsRoundComplete() {
		roundEvents, err := e.closeRoomRound(ctx, rm)
		if err != nil {
			return events, err
		}
		events = append(events, roundEvents...)
	}

	if err := e.rooms.Save(ctx, rm); err != nil {
		return events, err
	}
	if err := e.markProcessed(ctx, pending); err != nil {
		return events, err
	}
	return events, nil
}

// closeRoomRound makes the agent's own move for a completed round, advances,
// and sends the single aggregated status update.
func (e *Engine) closeRoomRound(ctx context.Context, rm *room.Room) ([]Event, error) {
	self := e.transport.Address()
	decision, err := e.oracle.DecideRoom(ctx, rm)
	if err != nil {
		return nil, fmt.Errorf("oracle decide for room %s: %w", rm.ID, err)
	}
	e.applyRoomMove(rm, self, decision)

	if trigger, ok := rm.CloseTrigger(e.now()); ok {
		return e.closeRoom(ctx, rm, trigger)
	}

	if err := rm.AdvanceRound(); err != nil {
		return nil, err
	}
	// The outbound update below is the agent's own move in the new round.
	rm.RecordRoundReply(self)
	payload, err := rm.ToJSON()
	if err != nil {
		return nil, err
	}
	out := mail.Outbound{
		Recipients:  counterparties(rm.Participants, self),
		Correlation: rm.ID,
		Kind:        mail.KindRoom,
		Version:     len(rm.Transcript),
		Body:        describeRoomProgress(rm),
		Payload:     payload,
	}
	if err := e.transport.SendProtocol(ctx, out); err != nil {
		return nil, fmt.Errorf("send room update for %s: %w", rm.ID, err)
	}
	e.logger.Info("room round advanced", "room_id", rm.ID, "round", rm.CurrentRound)
	return []Event{{Type: EventReplySent, RoomID: rm.ID, Round: rm.CurrentRound}}, nil
}

// closeRoom locks the open phase, produces minutes, and notifies everyone.
// The minutes go out with veto instructions; participants may still CONFIRM
// or REJECT them.
func (e *Engine) closeRoom(ctx context.Context, rm *room.Room, trigger string) ([]Event, error) {
	self := e.transport.Address()
	if err := rm.Lock(trigger); err != nil {
		return nil, err
	}
	events := []Event{{Type: EventRoomLocked, RoomID: rm.ID, Trigger: trigger}}

	minutes, err := e.oracle.Minutes(ctx, rm)
	if err != nil {
		e.logger.Warn("minutes generation failed, using fallback", "room_id", rm.ID, "error", err)
		minutes = fmt.Sprintf("Negotiation %q closed (%s). See artifacts for the final state.", rm.Topic, trigger)
	}
	if err := rm.Finalize(minutes, self); err != nil {
		return events, err
	}

	payload, err := rm.ToJSON()
	if err != nil {
		return events, err
	}
	body := fmt.Sprintf("The negotiation %q has closed (%s).\n\n%s\n\n"+
		"Reply CONFIRM to accept these minutes, or REJECT <reason> to contest them.\n",
		rm.Topic, trigger, minutes)
	out := mail.Outbound{
		Recipients:  counterparties(rm.Participants, self),
		Correlation: rm.ID,
		Kind:        mail.KindRoom,
		Version:     len(rm.Transcript),
		Body:        body,
		Payload:     payload,
	}
	if err := e.transport.SendProtocol(ctx, out); err != nil {
		return events, fmt.Errorf("send minutes for %s: %w", rm.ID, err)
	}
	e.notifyOwner(ctx, "Room closed: "+rm.Topic, body)

	if err := e.rooms.Save(ctx, rm); err != nil {
		return events, err
	}
	e.logger.Info("room finalized", "room_id", rm.ID, "trigger", trigger)
	events = append(events, Event{Type: EventRoomFinalized, RoomID: rm.ID, Trigger: trigger})
	return events, nil
}

// processVetoes handles CONFIRM/REJECT replies to the minutes of a
// finalized room. A rejection goes straight to the initiator for a final
// decision; the room itself stays finalized.
func (e *Engine) processVetoes(ctx context.Context, rm *room.Room, pending []*inbox.PendingMessage) ([]Event, error) {
	var events []Event
	for _, msg := range pending {
		move, err := e.roomMove(ctx, rm, msg)
		if err != nil {
			return events, err
		}
		switch move.Action {
		case protocol.RoomConfirm, protocol.RoomAccept:
			rm.RecordAcceptance(msg.Sender)
			rm.AddTranscript(msg.Sender, protocol.RoomConfirm, "confirmed the minutes")
		case protocol.RoomReject:
			rm.AddTranscript(msg.Sender, protocol.RoomReject, "rejected the minutes: "+move.Reason)
			e.notifyOwner(ctx, "Minutes rejected: "+rm.Topic,
				fmt.Sprintf("%s rejected the minutes of %s.\nReason: %s\nThe initiator decides how to proceed.",
					msg.Sender, rm.ID, move.Reason))
			events = append(events, Event{Type: EventRoomVeto, RoomID: rm.ID, Detail: msg.Sender + ": " + move.Reason})
		default:
			e.logger.Info("ignoring post-finalization move", "room_id", rm.ID, "action", move.Action)
		}
	}
	if err := e.rooms.Save(ctx, rm); err != nil {
		return events, err
	}
	if err := e.markProcessed(ctx, pending); err != nil {
		return events, err
	}
	return events, nil
}

// roomMove extracts the structured move from a message: an explicit payload
// wins, then a leading action keyword, then the policy oracle.
func (e *Engine) roomMove(ctx context.Context, rm *room.Room, msg *inbox.PendingMessage) (oracle.RoomDecision, error) {
	if msg.Payload != nil {
		var move oracle.RoomDecision
		if err := json.Unmarshal(msg.Payload, &move); err == nil {
			move.Action = protocol.RoomAction(strings.ToUpper(string(move.Action)))
			if move.Action.Valid() {
				return move, nil
			}
		}
	}
	if action, rest, ok := leadingAction(msg.Body); ok {
		return oracle.RoomDecision{Action: action, Content: rest, Reason: rest}, nil
	}
	move, err := e.oracle.ParseRoomReply(ctx, rm, msg.Sender, msg.Body)
	if err != nil {
		return oracle.RoomDecision{}, fmt.Errorf("parse room reply for %s: %w", rm.ID, err)
	}
	return move, nil
}

func (e *Engine) applyRoomMove(rm *room.Room, sender string, move oracle.RoomDecision) {
	switch move.Action {
	case protocol.RoomAccept, protocol.RoomConfirm:
		rm.RecordAcceptance(sender)
		rm.AddTranscript(sender, protocol.RoomAccept, "accepted the current proposal")
	case protocol.RoomAmend, protocol.RoomPropose:
		name := move.Artifact
		if name == "" {
			name = "draft"
		}
		if move.Content != "" {
			if err := rm.UpsertArtifact(name, move.Content, sender, "text/plain"); err != nil {
				e.logger.Warn("artifact update rejected", "room_id", rm.ID, "sender", sender, "error", err)
				return
			}
		}
		rm.AddTranscript(sender, move.Action, summarize(move.Content, move.Reason))
	case protocol.RoomReject:
		rm.AddTranscript(sender, protocol.RoomReject, "objected: "+move.Reason)
	default:
		e.logger.Info("ignoring unknown room move", "room_id", rm.ID, "sender", sender, "action", move.Action)
	}
}

// leadingAction matches an explicit action keyword at the start of a reply
// body, the convention compliant humans and simple agents use.
func leadingAction(body string) (protocol.RoomAction, string, bool) {
	trimmed := strings.TrimSpace(body)
	word, rest, _ := strings.Cut(trimmed, " ")
	action := protocol.RoomAction(strings.ToUpper(strings.Trim(word, ":.,")))
	if action.Valid() {
		return action, strings.TrimSpace(rest), true
	}
	return "", "", false
}

func summarize(content, reason string) string {
	if reason != "" {
		return reason
	}
	if len(content) > 120 {
		return content[:120] + "…"
	}
	return content
}

func describeRoomProgress(rm *room.Room) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Room %s (round %d): %d of %d participants have accepted.\n",
		rm.Topic, rm.CurrentRound, len(rm.AcceptedBy), len(rm.Participants))
	fmt.Fprintf(&b, "Deadline: %s\n", rm.Deadline.Format("2006-01-02 15:04 MST"))
	b.WriteString("Reply ACCEPT to agree, or AMEND / PROPOSE with your changes.\n")
	return b.String()
}
