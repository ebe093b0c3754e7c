package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rpggio/accord/internal/domain/inbox"
	"github.com/rpggio/accord/internal/domain/protocol"
	"github.com/rpggio/accord/internal/domain/session"
	"github.com/rpggio/accord/internal/mail"
	"github.com/rpggio/accord/internal/oracle"
	"github.com/rpggio/accord/internal/repository"
)

// processSession drains the pending backlog for one negotiation, registers
// round replies, and closes the round when it completes. Messages are marked
// processed whether or not the round closed; an open round's replies stay in
// the entity's round state, not in the inbox.
func (e *Engine) processSession(ctx context.Context, id string) ([]Event, error) {
	pending, err := e.inbox.LoadPendingFor(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load pending for %s: %w", id, err)
	}
	if len(pending) == 0 {
		return nil, nil
	}

	sess, err := e.sessions.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		e.logger.Warn("mail for unknown session", "session_id", id)
		if err := e.markProcessed(ctx, pending); err != nil {
			return nil, err
		}
		return []Event{{Type: EventIgnored, SessionID: id, Detail: "unknown session"}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	if sess.Terminal() {
		if err := e.markProcessed(ctx, pending); err != nil {
			return nil, err
		}
		return []Event{{Type: EventIgnored, SessionID: id, Detail: "session already " + string(sess.Status)}}, nil
	}

	var events []Event
	for _, msg := range pending {
		evt, err := e.applySessionReply(ctx, sess, msg)
		if err != nil {
			return events, err
		}
		if evt != nil {
			events = append(events, *evt)
		}
		sess.RecordRoundReply(msg.Sender)
		if sess.Terminal() {
			break
		}
	}

	if !sess.Terminal() && sess.IsRoundComplete() {
		closeEvents, err := e.closeSessionRound(ctx, sess)
		if err != nil {
			return events, err
		}
		events = append(events, closeEvents...)
	}

	if err := e.sessions.Save(ctx, sess); err != nil {
		return events, err
	}
	if err := e.markProcessed(ctx, pending); err != nil {
		return events, err
	}
	return events, nil
}

// applySessionReply folds one pending message into the negotiation state.
// Protocol payloads carry the counterparty's own copy of the session; their
// votes are lifted from it. Free-text replies go through the policy oracle.
func (e *Engine) applySessionReply(ctx context.Context, sess *session.Session, msg *inbox.PendingMessage) (*Event, error) {
	if msg.Payload != nil {
		e.applyProtocolVotes(sess, msg.Sender, msg.Payload)
		return nil, nil
	}

	decision, err := e.oracle.ParseReply(ctx, sess, msg.Sender, msg.Body)
	if err != nil {
		return nil, fmt.Errorf("parse reply for %s: %w", sess.ID, err)
	}
	if decision.Action == protocol.SessionEscalate {
		return e.escalateSession(ctx, sess, fmt.Sprintf("reply from %s needs a human: %s", msg.Sender, decision.Reason))
	}
	e.applyDecisionVotes(sess, msg.Sender, decision)
	return nil, nil
}

// applyProtocolVotes lifts the sender's votes out of their protocol.json
// copy of the session. Unknown items are skipped rather than rejected; a
// counterparty may be running a newer negotiation shape.
func (e *Engine) applyProtocolVotes(sess *session.Session, sender string, payload []byte) {
	theirs, err := session.FromJSON(payload)
	if err != nil {
		e.logger.Warn("malformed protocol payload", "session_id", sess.ID, "sender", sender, "error", err)
		return
	}
	if !sess.IsParticipant(sender) {
		e.logger.Info("vote from non-participant ignored", "session_id", sess.ID, "sender", sender)
		return
	}
	for _, item := range sortedItems(theirs.Proposals) {
		if _, ok := sess.Proposals[item]; !ok {
			continue
		}
		vote := theirs.Proposals[item].Votes[sender]
		if vote == nil {
			continue
		}
		if err := sess.ApplyVote(sender, item, *vote); err != nil {
			e.logger.Warn("vote rejected", "session_id", sess.ID, "sender", sender, "item", item, "error", err)
		}
	}
}

func (e *Engine) applyDecisionVotes(sess *session.Session, voter string, decision oracle.Decision) {
	if !sess.IsParticipant(voter) {
		e.logger.Info("vote from non-participant ignored", "session_id", sess.ID, "sender", voter)
		return
	}
	for _, item := range sortedStringMap(decision.NewOptions) {
		if err := sess.AddOptions(voter, item, decision.NewOptions[item]); err != nil {
			e.logger.Warn("options rejected", "session_id", sess.ID, "item", item, "error", err)
		}
	}
	for _, item := range sortedVotes(decision.Votes) {
		if err := sess.ApplyVote(voter, item, decision.Votes[item]); err != nil {
			e.logger.Warn("vote rejected", "session_id", sess.ID, "sender", voter, "item", item, "error", err)
		}
	}
}

// closeSessionRound produces the single aggregated outbound action for a
// completed round: a confirmation, an escalation, or the next proposal.
func (e *Engine) closeSessionRound(ctx context.Context, sess *session.Session) ([]Event, error) {
	self := e.transport.Address()

	if sess.IsFullyResolved() {
		return e.confirmSession(ctx, sess)
	}
	if sess.IsStalled() {
		evt, err := e.escalateSession(ctx, sess,
			fmt.Sprintf("no consensus after %d rounds", sess.CurrentRound))
		if err != nil {
			return nil, err
		}
		return []Event{*evt}, nil
	}

	decision, err := e.oracle.Decide(ctx, sess)
	if err != nil {
		return nil, fmt.Errorf("oracle decide for %s: %w", sess.ID, err)
	}
	if decision.Action == protocol.SessionEscalate {
		evt, err := e.escalateSession(ctx, sess, decision.Reason)
		if err != nil {
			return nil, err
		}
		return []Event{*evt}, nil
	}
	e.applyDecisionVotes(sess, self, decision)

	if sess.IsFullyResolved() {
		return e.confirmSession(ctx, sess)
	}

	if err := sess.AdvanceRound(); err != nil {
		return nil, err
	}
	// The outbound update below is the agent's own move in the new round.
	sess.RecordRoundReply(self)
	payload, err := sess.ToJSON()
	if err != nil {
		return nil, err
	}
	out := mail.Outbound{
		Recipients:  counterparties(sess.Participants, self),
		Correlation: sess.ID,
		Kind:        mail.KindSession,
		Version:     sess.Version,
		Body:        describeProposals(sess),
		Payload:     payload,
	}
	if err := e.transport.SendProtocol(ctx, out); err != nil {
		return nil, fmt.Errorf("send round update for %s: %w", sess.ID, err)
	}
	e.logger.Info("round advanced",
		"session_id", sess.ID,
		"round", sess.CurrentRound,
		"version", sess.Version)
	return []Event{{Type: EventReplySent, SessionID: sess.ID, Round: sess.CurrentRound}}, nil
}

func (e *Engine) confirmSession(ctx context.Context, sess *session.Session) ([]Event, error) {
	self := e.transport.Address()
	resolution := sess.CheckConsensus()
	if err := sess.Confirm(self); err != nil {
		return nil, err
	}
	payload, err := sess.ToJSON()
	if err != nil {
		return nil, err
	}
	body := "Agreement reached on " + sess.Topic + ":\n" + describeResolution(resolution)
	out := mail.Outbound{
		Recipients:  counterparties(sess.Participants, self),
		Correlation: sess.ID,
		Kind:        mail.KindSession,
		Version:     sess.Version,
		Body:        body,
		Payload:     payload,
	}
	if err := e.transport.SendProtocol(ctx, out); err != nil {
		return nil, fmt.Errorf("send confirmation for %s: %w", sess.ID, err)
	}
	e.notifyOwner(ctx, "Confirmed: "+sess.Topic, body)
	e.logger.Info("session confirmed", "session_id", sess.ID, "resolution", resolution)
	return []Event{{Type: EventConsensus, SessionID: sess.ID, Resolution: resolution}}, nil
}

func (e *Engine) escalateSession(ctx context.Context, sess *session.Session, reason string) (*Event, error) {
	if err := sess.Escalate(e.transport.Address(), reason); err != nil {
		return nil, err
	}
	e.notifyOwner(ctx, "Escalated: "+sess.Topic,
		fmt.Sprintf("Negotiation %s needs your decision.\nReason: %s\n\n%s",
			sess.ID, reason, describeProposals(sess)))
	e.logger.Warn("session escalated", "session_id", sess.ID, "reason", reason)
	return &Event{Type: EventEscalation, SessionID: sess.ID, Detail: reason}, nil
}

func counterparties(participants []string, self string) []string {
	var out []string
	for _, p := range participants {
		if p != self {
			out = append(out, p)
		}
	}
	return out
}

func describeProposals(sess *session.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Negotiating %s (round %d)\n", sess.Topic, sess.CurrentRound)
	for _, name := range sortedItems(sess.Proposals) {
		item := sess.Proposals[name]
		fmt.Fprintf(&b, "- %s: %s\n", name, strings.Join(item.Options, " | "))
	}
	return b.String()
}

func describeResolution(resolution map[string]string) string {
	var b strings.Builder
	for _, item := range sortedVotes(resolution) {
		fmt.Fprintf(&b, "- %s: %s\n", item, resolution[item])
	}
	return b.String()
}

func sortedItems(m map[string]session.ProposalItem) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedVotes(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedStringMap(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
