package mail

import "strings"

// Local parts that never carry a real counterparty reply.
var autoReplyLocals = map[string]struct{}{
	"mailer-daemon": {},
	"postmaster":    {},
	"no-reply":      {},
	"noreply":       {},
	"donotreply":    {},
	"bounce":        {},
}

// Subject openers produced by autoresponders and delivery agents.
var autoReplySubjects = []string{
	"auto:",
	"automatic reply",
	"autoreply",
	"out of office",
	"delivery status notification",
	"undeliverable",
	"mail delivery failed",
}

// IsAutoReply reports whether a message is an autoresponder or bounce that
// must never be counted as a round reply.
func IsAutoReply(sender, subject string) bool {
	local := strings.ToLower(sender)
	if at := strings.Index(local, "@"); at >= 0 {
		local = local[:at]
	}
	if _, ok := autoReplyLocals[local]; ok {
		return true
	}
	subj := strings.ToLower(strings.TrimSpace(subject))
	for _, prefix := range autoReplySubjects {
		if strings.HasPrefix(subj, prefix) {
			return true
		}
	}
	return false
}
