package mail

import (
	"context"
	"sync"
)

// MemTransport is an in-memory Transport for tests and local dry runs.
// Queue messages with Deliver; every send is recorded for inspection.
// Like the email transport, fetched messages stay queued until Ack.
type MemTransport struct {
	mu      sync.Mutex
	addr    string
	nextUID uint32
	queue   []Inbound
	Sent    []Outbound
	Notices []Notice

	// FetchErr, when set, is returned by the next Fetch.
	FetchErr error
}

// Notice is one recorded SendHuman call.
type Notice struct {
	To      []string
	Subject string
	Body    string
}

// NewMemTransport creates an in-memory transport with the given own address.
func NewMemTransport(addr string) *MemTransport {
	return &MemTransport{addr: addr}
}

// Address returns the configured own address.
func (t *MemTransport) Address() string {
	return t.addr
}

// Deliver queues an inbound message for the next Fetch. Auto-replies are
// accepted here and discarded at fetch time, mirroring the email transport.
func (t *MemTransport) Deliver(in Inbound) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextUID++
	in.UID = t.nextUID
	t.queue = append(t.queue, in)
}

// Fetch returns the queued messages without removing them; only Ack does.
// Autoresponder and bounce mail is dropped here, never returned.
func (t *MemTransport) Fetch(ctx context.Context) ([]Inbound, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.FetchErr != nil {
		err := t.FetchErr
		t.FetchErr = nil
		return nil, err
	}
	kept := t.queue[:0]
	var msgs []Inbound
	for _, in := range t.queue {
		if IsAutoReply(in.Sender, in.Subject) {
			continue
		}
		kept = append(kept, in)
		msgs = append(msgs, in)
	}
	t.queue = kept
	return msgs, nil
}

// Ack removes the given messages from the queue.
func (t *MemTransport) Ack(ctx context.Context, msgs []Inbound) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	acked := make(map[uint32]bool, len(msgs))
	for _, m := range msgs {
		acked[m.UID] = true
	}
	kept := t.queue[:0]
	for _, in := range t.queue {
		if !acked[in.UID] {
			kept = append(kept, in)
		}
	}
	t.queue = kept
	return nil
}

// SendProtocol records the outbound message.
func (t *MemTransport) SendProtocol(ctx context.Context, out Outbound) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Sent = append(t.Sent, out)
	return nil
}

// SendHuman records the notification.
func (t *MemTransport) SendHuman(ctx context.Context, to []string, subject, body string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Notices = append(t.Notices, Notice{To: to, Subject: subject, Body: body})
	return nil
}
