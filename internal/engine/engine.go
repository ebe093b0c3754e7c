// Package engine is the orchestration loop. One poll cycle runs: fetch from
// the transport, durably store every candidate message, acknowledge the
// batch back to the transport, register round replies, close completed
// rounds through the consensus rules, sweep room deadlines, and only then
// mark messages processed. A persistence failure aborts the cycle before
// the acknowledgement, so the transport redelivers the same messages; a
// crash after storing leaves unprocessed rows that the next cycle picks up
// on its own.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/rpggio/accord/internal/directory"
	"github.com/rpggio/accord/internal/domain/inbox"
	"github.com/rpggio/accord/internal/domain/room"
	"github.com/rpggio/accord/internal/domain/session"
	"github.com/rpggio/accord/internal/mail"
	"github.com/rpggio/accord/internal/oracle"
	"github.com/rpggio/accord/internal/repository"
)

// Config wires the engine's collaborators.
type Config struct {
	Sessions  *session.Service
	Rooms     *room.Service
	Inbox     *inbox.Service
	Contacts  *directory.Service
	Transport mail.Transport
	Oracle    oracle.Oracle
	// OwnerAddress receives escalations and confirmations.
	OwnerAddress string
	Logger       *slog.Logger
	// Now is the clock; tests override it to steer deadlines.
	Now func() time.Time
}

// Engine drives negotiations forward one poll cycle at a time. It is not
// safe for concurrent PollOnce calls against the same store; run exactly one
// loop per deployment.
type Engine struct {
	sessions  *session.Service
	rooms     *room.Service
	inbox     *inbox.Service
	contacts  *directory.Service
	transport mail.Transport
	oracle    oracle.Oracle
	owner     string
	logger    *slog.Logger
	now       func() time.Time
}

// New creates an engine.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Engine{
		sessions:  cfg.Sessions,
		rooms:     cfg.Rooms,
		inbox:     cfg.Inbox,
		contacts:  cfg.Contacts,
		transport: cfg.Transport,
		oracle:    cfg.Oracle,
		owner:     cfg.OwnerAddress,
		logger:    logger,
		now:       now,
	}
}

// Run polls until the context is cancelled.
func (e *Engine) Run(ctx context.Context, interval time.Duration, sink func(Event)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		events, err := e.PollOnce(ctx)
		if err != nil {
			e.logger.Error("poll cycle failed", "error", err)
		}
		for _, evt := range events {
			if sink != nil {
				sink(evt)
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// PollOnce executes one full cycle and returns its events. A transport or
// persistence failure aborts the cycle with an error; nothing fetched in the
// aborted cycle is marked processed, so the next cycle re-reads it.
func (e *Engine) PollOnce(ctx context.Context) ([]Event, error) {
	msgs, err := e.transport.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch inbound: %w", err)
	}

	var events []Event

	// Store-first: every candidate message is durable before any
	// interpretation happens. A save failure aborts the cycle with the
	// batch unacknowledged, so the transport redelivers it.
	type uncorrelated struct {
		rowID string
		msg   mail.Inbound
	}
	touched := make(map[string]mail.Kind)
	var untagged []uncorrelated
	for _, m := range msgs {
		rowID, err := e.inbox.SavePending(ctx, m.MessageID, m.Sender, m.Subject, m.Body, m.Payload, m.Correlation)
		if err != nil {
			return events, fmt.Errorf("store-first persistence: %w", err)
		}
		if m.Correlation != "" {
			touched[m.Correlation] = m.Kind
		} else {
			untagged = append(untagged, uncorrelated{rowID: rowID, msg: m})
		}
	}

	// The whole batch is durable; acknowledge it. An ack failure is not
	// fatal: redelivered messages land on their existing rows.
	if len(msgs) > 0 {
		if err := e.transport.Ack(ctx, msgs); err != nil {
			e.logger.Warn("transport ack failed", "error", err)
		}
	}

	for _, u := range untagged {
		evts, err := e.handleUncorrelated(ctx, u.msg)
		if err != nil {
			return events, err
		}
		events = append(events, evts...)
		if err := e.inbox.MarkProcessed(ctx, u.rowID); err != nil {
			return events, err
		}
	}

	// Pick up negotiations a previous cycle stored mail for but never
	// finished processing, alongside those touched by fresh mail.
	stranded, err := e.inbox.UnprocessedCorrelations(ctx)
	if err != nil {
		return events, fmt.Errorf("list unprocessed correlations: %w", err)
	}
	for _, correlation := range stranded {
		if _, ok := touched[correlation]; ok {
			continue
		}
		kind, err := e.correlationKind(ctx, correlation)
		if err != nil {
			return events, err
		}
		touched[correlation] = kind
	}

	// Process each touched negotiation's pending backlog in arrival order.
	for _, correlation := range sortedKeys(touched) {
		var evts []Event
		var err error
		if touched[correlation] == mail.KindRoom {
			evts, err = e.processRoom(ctx, correlation)
		} else {
			evts, err = e.processSession(ctx, correlation)
		}
		if err != nil {
			return events, err
		}
		events = append(events, evts...)
	}

	// Deadlines expire with or without mail.
	sweepEvents, err := e.sweepDeadlines(ctx)
	if err != nil {
		return events, err
	}
	events = append(events, sweepEvents...)

	return events, nil
}

// correlationKind resolves which protocol family a replayed correlation
// belongs to. The subject tag that said so was consumed in the cycle that
// stored the message, so look the id up; an id that matches neither family
// is treated as a session and discarded by the unknown-session path.
func (e *Engine) correlationKind(ctx context.Context, correlation string) (mail.Kind, error) {
	if _, err := e.rooms.Get(ctx, correlation); err == nil {
		return mail.KindRoom, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return "", fmt.Errorf("resolve correlation %s: %w", correlation, err)
	}
	return mail.KindSession, nil
}

// handleUncorrelated deals with a stored message that carries no protocol
// tag: unknown senders get one throttled courtesy reply, known contacts are
// surfaced to the owner.
func (e *Engine) handleUncorrelated(ctx context.Context, m mail.Inbound) ([]Event, error) {
	contact, err := e.contacts.Identify(ctx, m.Sender)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("identify sender: %w", err)
	}
	if contact == nil {
		if e.contacts.ShouldBounce(m.Sender, e.now()) {
			body := "Hello,\n\nThis mailbox is operated by a scheduling agent and only handles " +
				"negotiation mail for known contacts. Your message was not processed.\n"
			if err := e.transport.SendHuman(ctx, []string{m.Sender}, "Re: "+m.Subject, body); err != nil {
				e.logger.Warn("courtesy bounce failed", "sender", m.Sender, "error", err)
			}
		}
		return []Event{{Type: EventIgnored, Detail: "unknown sender " + m.Sender}}, nil
	}
	if e.owner != "" {
		subject := fmt.Sprintf("[agent] untagged mail from %s", contact.Name)
		if err := e.transport.SendHuman(ctx, []string{e.owner}, subject, m.Body); err != nil {
			e.logger.Warn("owner forward failed", "error", err)
		}
	}
	return []Event{{Type: EventIgnored, Detail: "untagged mail from contact " + m.Sender}}, nil
}

func (e *Engine) sweepDeadlines(ctx context.Context) ([]Event, error) {
	open, err := e.rooms.ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("list open rooms: %w", err)
	}
	var events []Event
	for _, rm := range open {
		if trigger, ok := rm.CloseTrigger(e.now()); ok {
			evts, err := e.closeRoom(ctx, rm, trigger)
			if err != nil {
				return events, err
			}
			events = append(events, evts...)
		}
	}
	return events, nil
}

func (e *Engine) markProcessed(ctx context.Context, msgs []*inbox.PendingMessage) error {
	for _, m := range msgs {
		if err := e.inbox.MarkProcessed(ctx, m.ID); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) notifyOwner(ctx context.Context, subject, body string) {
	if e.owner == "" {
		return
	}
	if err := e.transport.SendHuman(ctx, []string{e.owner}, subject, body); err != nil {
		e.logger.Warn("owner notification failed", "error", err)
	}
}

func sortedKeys(m map[string]mail.Kind) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
