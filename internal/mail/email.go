package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// EmailConfig carries the account settings for the email transport.
type EmailConfig struct {
	Address      string
	IMAPHost     string
	IMAPPort     int
	SMTPHost     string
	SMTPPort     int
	Username     string
	Password     string
	SMTPStartTLS bool
}

// EmailTransport implements Transport over IMAP and SMTP. Each fetch opens a
// fresh IMAP connection; a poll cycle is infrequent enough that holding a
// long-lived connection only buys reconnect bugs.
type EmailTransport struct {
	cfg    EmailConfig
	logger *slog.Logger
}

// NewEmailTransport creates an email transport.
func NewEmailTransport(cfg EmailConfig, logger *slog.Logger) *EmailTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmailTransport{cfg: cfg, logger: logger}
}

// Address returns the agent's own address.
func (t *EmailTransport) Address() string {
	return t.cfg.Address
}

// Fetch returns every unseen message in the inbox, decoded. Fetching does
// NOT flag anything seen: the seen flag is the ack, applied only once the
// engine confirms durable storage, so a crashed cycle re-reads the same
// mail. Autoresponders and bounces are the one exception; they are flagged
// and dropped here because no negotiation ever consumes them.
func (t *EmailTransport) Fetch(ctx context.Context) ([]Inbound, error) {
	c, err := t.dial()
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("imap search: %w", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)
	section := &imap.BodySectionName{}
	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqset, []imap.FetchItem{imap.FetchUid, section.FetchItem()}, messages)
	}()

	var inbound []Inbound
	var autoReplies []uint32
	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		in, err := parseMessage(body)
		if err != nil {
			t.logger.Warn("skipping unparseable message", "error", err)
			continue
		}
		in.UID = msg.Uid
		if IsAutoReply(in.Sender, in.Subject) {
			t.logger.Debug("discarding auto-reply", "sender", in.Sender, "subject", in.Subject)
			autoReplies = append(autoReplies, msg.Uid)
			continue
		}
		inbound = append(inbound, in)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("imap fetch: %w", err)
	}

	if len(autoReplies) > 0 {
		if err := flagSeen(c, autoReplies); err != nil {
			t.logger.Warn("failed to flag auto-replies seen", "error", err)
		}
	}

	t.logger.Debug("fetched inbound mail", "count", len(inbound))
	return inbound, nil
}

// Ack flags the given messages seen so later fetches skip them. Called only
// after every message in the batch is durably stored.
func (t *EmailTransport) Ack(ctx context.Context, msgs []Inbound) error {
	var uids []uint32
	for _, m := range msgs {
		if m.UID != 0 {
			uids = append(uids, m.UID)
		}
	}
	if len(uids) == 0 {
		return nil
	}

	c, err := t.dial()
	if err != nil {
		return err
	}
	defer c.Logout()

	if err := flagSeen(c, uids); err != nil {
		return fmt.Errorf("imap ack: %w", err)
	}
	return nil
}

func (t *EmailTransport) dial() (*client.Client, error) {
	c, err := client.DialTLS(fmt.Sprintf("%s:%d", t.cfg.IMAPHost, t.cfg.IMAPPort), nil)
	if err != nil {
		return nil, fmt.Errorf("imap dial: %w", err)
	}
	if err := c.Login(t.cfg.Username, t.cfg.Password); err != nil {
		c.Logout()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	if _, err := c.Select("INBOX", false); err != nil {
		c.Logout()
		return nil, fmt.Errorf("imap select: %w", err)
	}
	return c, nil
}

func flagSeen(c *client.Client, uids []uint32) error {
	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)
	flagOp := imap.FormatFlagsOp(imap.AddFlags, true)
	return c.UidStore(seqset, flagOp, []interface{}{imap.SeenFlag}, nil)
}

// SendProtocol delivers a tagged protocol message with its payload attached.
func (t *EmailTransport) SendProtocol(ctx context.Context, out Outbound) error {
	msgID := protocolMessageID(out.Correlation, out.Version, t.domain())
	raw := buildMessage(t.cfg.Address, out.Recipients, out.Subject(), out.Body, out.Payload, msgID)
	return t.send(out.Recipients, raw)
}

// SendHuman delivers a plain notification.
func (t *EmailTransport) SendHuman(ctx context.Context, to []string, subject, body string) error {
	msgID := protocolMessageID("notice", 0, t.domain())
	raw := buildMessage(t.cfg.Address, to, subject, body, nil, msgID)
	return t.send(to, raw)
}

func (t *EmailTransport) send(to []string, raw []byte) error {
	addr := fmt.Sprintf("%s:%d", t.cfg.SMTPHost, t.cfg.SMTPPort)
	auth := smtp.PlainAuth("", t.cfg.Username, t.cfg.Password, t.cfg.SMTPHost)

	if t.cfg.SMTPStartTLS {
		if err := smtp.SendMail(addr, auth, t.cfg.Address, to, raw); err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	}

	// Implicit TLS (port 465): net/smtp has no helper for it.
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: t.cfg.SMTPHost})
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	c, err := smtp.NewClient(conn, t.cfg.SMTPHost)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp client: %w", err)
	}
	defer c.Close()

	if err := c.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := c.Mail(t.cfg.Address); err != nil {
		return fmt.Errorf("smtp mail: %w", err)
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", rcpt, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close: %w", err)
	}
	return c.Quit()
}

func (t *EmailTransport) domain() string {
	if _, domain, ok := strings.Cut(t.cfg.Address, "@"); ok {
		return domain
	}
	return "localhost"
}
