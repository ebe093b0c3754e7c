package engine

import (
	"context"
	"fmt"

	"github.com/rpggio/accord/internal/domain/protocol"
	"github.com/rpggio/accord/internal/domain/room"
	"github.com/rpggio/accord/internal/domain/session"
	"github.com/rpggio/accord/internal/mail"
)

// InitiateSession opens a negotiation and sends the round-0 proposal to
// every counterparty. The agent's own address is the initiator.
func (e *Engine) InitiateSession(ctx context.Context, req session.InitiateRequest) (*session.Session, error) {
	self := e.transport.Address()
	if req.Initiator == "" {
		req.Initiator = self
	}
	sess, err := e.sessions.Initiate(ctx, req)
	if err != nil {
		return nil, err
	}

	payload, err := sess.ToJSON()
	if err != nil {
		return nil, err
	}
	body := fmt.Sprintf("You are invited to negotiate %q.\n\n%s\n"+
		"Reply with your preferred options, or in plain words.\n",
		sess.Topic, describeProposals(sess))
	out := mail.Outbound{
		Recipients:  counterparties(sess.Participants, self),
		Correlation: sess.ID,
		Kind:        mail.KindSession,
		Version:     sess.Version,
		Body:        body,
		Payload:     payload,
	}
	if err := e.transport.SendProtocol(ctx, out); err != nil {
		return nil, fmt.Errorf("send opening proposal for %s: %w", sess.ID, err)
	}
	return sess, nil
}

// InitiateRoom opens a room and sends the call for participation.
func (e *Engine) InitiateRoom(ctx context.Context, req room.InitiateRequest) (*room.Room, error) {
	self := e.transport.Address()
	if req.Initiator == "" {
		req.Initiator = self
	}
	rm, err := e.rooms.Initiate(ctx, req)
	if err != nil {
		return nil, err
	}

	payload, err := rm.ToJSON()
	if err != nil {
		return nil, err
	}
	body := fmt.Sprintf("You are invited to negotiate %q before %s.\n\n%s",
		rm.Topic, rm.Deadline.Format("2006-01-02 15:04 MST"), describeRoomProgress(rm))
	out := mail.Outbound{
		Recipients:  counterparties(rm.Participants, self),
		Correlation: rm.ID,
		Kind:        mail.KindRoom,
		Version:     len(rm.Transcript),
		Body:        body,
		Payload:     payload,
	}
	if err := e.transport.SendProtocol(ctx, out); err != nil {
		return nil, fmt.Errorf("send room invitation for %s: %w", rm.ID, err)
	}
	return rm, nil
}

// Respond injects the owner's free-text answer into a negotiation, voting
// on the owner's behalf under the agent's own address. When the injection
// completes the current round, the round closes in the same call.
func (e *Engine) Respond(ctx context.Context, sessionID, text string) ([]Event, error) {
	sess, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Terminal() {
		return nil, fmt.Errorf("%w: session %s already %s", session.ErrValidation, sess.ID, sess.Status)
	}

	self := e.transport.Address()
	decision, err := e.oracle.ParseReply(ctx, sess, self, text)
	if err != nil {
		return nil, fmt.Errorf("parse owner reply: %w", err)
	}

	var events []Event
	if decision.Action == protocol.SessionEscalate {
		evt, err := e.escalateSession(ctx, sess, "owner requested a human handoff: "+decision.Reason)
		if err != nil {
			return nil, err
		}
		events = append(events, *evt)
	} else {
		e.applyDecisionVotes(sess, self, decision)
		sess.RecordRoundReply(self)
		if sess.IsRoundComplete() {
			closeEvents, err := e.closeSessionRound(ctx, sess)
			if err != nil {
				return nil, err
			}
			events = append(events, closeEvents...)
		}
	}

	if err := e.sessions.Save(ctx, sess); err != nil {
		return events, err
	}
	return events, nil
}
