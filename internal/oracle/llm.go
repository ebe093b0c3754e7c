package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rpggio/accord/internal/domain/protocol"
	"github.com/rpggio/accord/internal/domain/room"
	"github.com/rpggio/accord/internal/domain/session"
)

const defaultEndpoint = "https://api.openai.com/v1/chat/completions"

// LLMOption configures an LLMOracle.
type LLMOption func(*LLMOracle)

// LLMOracle implements Oracle over an OpenAI-compatible chat-completions
// endpoint. A failed or unparseable completion degrades to an escalate
// decision rather than an error: the negotiation must keep moving toward a
// human even when the model is down.
type LLMOracle struct {
	apiKey      string
	endpoint    string
	model       string
	preferences string
	client      *http.Client
	logger      *slog.Logger
}

// NewLLMOracle creates an LLM-backed oracle.
func NewLLMOracle(apiKey, model string, opts ...LLMOption) *LLMOracle {
	o := &LLMOracle{
		apiKey:   strings.TrimSpace(apiKey),
		endpoint: defaultEndpoint,
		model:    model,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// WithEndpoint overrides the chat-completions endpoint.
func WithEndpoint(endpoint string) LLMOption {
	return func(o *LLMOracle) {
		if trimmed := strings.TrimSpace(endpoint); trimmed != "" {
			o.endpoint = trimmed
		}
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) LLMOption {
	return func(o *LLMOracle) {
		if client != nil {
			o.client = client
		}
	}
}

// WithPreferences supplies the owner's scheduling preferences, included in
// every decision prompt.
func WithPreferences(prefs string) LLMOption {
	return func(o *LLMOracle) {
		o.preferences = prefs
	}
}

// WithLogger overrides the logger.
func WithLogger(logger *slog.Logger) LLMOption {
	return func(o *LLMOracle) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Decide returns the agent's own next scheduling move.
func (o *LLMOracle) Decide(ctx context.Context, sess *session.Session) (Decision, error) {
	prompt := fmt.Sprintf(
		"You are a scheduling agent negotiating %q.\nCurrent state:\n%s\nOwner preferences: %s\n\n"+
			"Reply with JSON only: {\"action\": \"accept\"|\"counter\"|\"escalate\", "+
			"\"votes\": {item: choice}, \"new_options\": {item: [options]}, \"reason\": \"...\"}.\n"+
			"Vote for existing options when acceptable; counter with new options when not; "+
			"escalate only when no acceptable outcome exists.",
		sess.Topic, describeSession(sess), o.preferences)
	return o.sessionCompletion(ctx, sess, prompt)
}

// ParseReply turns a counterparty's free-text reply into votes.
func (o *LLMOracle) ParseReply(ctx context.Context, sess *session.Session, sender, text string) (Decision, error) {
	prompt := fmt.Sprintf(
		"A participant (%s) replied to the negotiation %q in free text:\n---\n%s\n---\n"+
			"Current state:\n%s\n\n"+
			"Extract their intent as JSON only: {\"action\": \"accept\"|\"counter\"|\"escalate\", "+
			"\"votes\": {item: choice}, \"new_options\": {item: [options]}, \"reason\": \"...\"}.",
		sender, sess.Topic, text, describeSession(sess))
	return o.sessionCompletion(ctx, sess, prompt)
}

// DecideRoom returns the agent's own next content move.
func (o *LLMOracle) DecideRoom(ctx context.Context, rm *room.Room) (RoomDecision, error) {
	prompt := fmt.Sprintf(
		"You are negotiating content in room %q (deadline %s).\nArtifacts:\n%s\n\n"+
			"Reply with JSON only: {\"action\": \"ACCEPT\"|\"AMEND\"|\"PROPOSE\"|\"REJECT\", "+
			"\"artifact\": \"name\", \"content\": \"...\", \"reason\": \"...\"}.",
		rm.Topic, rm.Deadline.Format(time.RFC3339), describeRoom(rm))
	return o.roomCompletion(ctx, prompt)
}

// ParseRoomReply turns a free-text room reply into a structured move.
func (o *LLMOracle) ParseRoomReply(ctx context.Context, rm *room.Room, sender, text string) (RoomDecision, error) {
	prompt := fmt.Sprintf(
		"A participant (%s) replied in room %q:\n---\n%s\n---\nArtifacts:\n%s\n\n"+
			"Extract their move as JSON only: {\"action\": \"ACCEPT\"|\"AMEND\"|\"PROPOSE\"|\"REJECT\", "+
			"\"artifact\": \"name\", \"content\": \"...\", \"reason\": \"...\"}.",
		sender, rm.Topic, text, describeRoom(rm))
	return o.roomCompletion(ctx, prompt)
}

// Minutes produces the closing summary for a locked room.
func (o *LLMOracle) Minutes(ctx context.Context, rm *room.Room) (string, error) {
	prompt := fmt.Sprintf(
		"Write concise meeting minutes in markdown for the closed negotiation %q.\n"+
			"Artifacts:\n%s\nTranscript has %d entries; resolution policy: %s.\n"+
			"State the final outcome and any unresolved objections.",
		rm.Topic, describeRoom(rm), len(rm.Transcript), rm.Policy)
	content, err := o.complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	return content, nil
}

func (o *LLMOracle) sessionCompletion(ctx context.Context, sess *session.Session, prompt string) (Decision, error) {
	content, err := o.complete(ctx, prompt)
	if err != nil {
		o.logger.Warn("oracle completion failed, escalating", "session_id", sess.ID, "error", err)
		return Decision{Action: protocol.SessionEscalate, Reason: "policy oracle unavailable: " + err.Error()}, nil
	}
	var d Decision
	if err := json.Unmarshal(extractJSON(content), &d); err != nil {
		o.logger.Warn("oracle returned unparseable decision, escalating", "session_id", sess.ID, "error", err)
		return Decision{Action: protocol.SessionEscalate, Reason: "policy oracle returned malformed decision"}, nil
	}
	if !d.Action.Valid() {
		return Decision{Action: protocol.SessionEscalate, Reason: fmt.Sprintf("unknown action %q", d.Action)}, nil
	}
	return d, nil
}

func (o *LLMOracle) roomCompletion(ctx context.Context, prompt string) (RoomDecision, error) {
	content, err := o.complete(ctx, prompt)
	if err != nil {
		o.logger.Warn("oracle room completion failed", "error", err)
		return RoomDecision{Action: protocol.RoomReject, Reason: "policy oracle unavailable: " + err.Error()}, nil
	}
	var d RoomDecision
	if err := json.Unmarshal(extractJSON(content), &d); err != nil {
		return RoomDecision{Action: protocol.RoomReject, Reason: "policy oracle returned malformed decision"}, nil
	}
	d.Action = protocol.RoomAction(strings.ToUpper(string(d.Action)))
	if !d.Action.Valid() {
		return RoomDecision{Action: protocol.RoomReject, Reason: fmt.Sprintf("unknown action %q", d.Action)}, nil
	}
	return d, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

type apiErrorEnvelope struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (o *LLMOracle) complete(ctx context.Context, prompt string) (string, error) {
	if o.apiKey == "" {
		return "", errors.New("oracle api key is required")
	}
	payload := chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		MaxTokens:   1024,
		Temperature: 0.2,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal oracle request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build oracle request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("content-type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call oracle api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope apiErrorEnvelope
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		if err := json.Unmarshal(data, &envelope); err == nil && envelope.Error.Message != "" {
			return "", fmt.Errorf("oracle api error (%s): %s", envelope.Error.Type, envelope.Error.Message)
		}
		return "", fmt.Errorf("oracle api returned status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode oracle response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("oracle response contained no choices")
	}
	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("oracle response contained no content")
	}
	return content, nil
}

// extractJSON strips markdown code fences and surrounding prose, keeping the
// outermost JSON object.
func extractJSON(content string) []byte {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		if end := strings.LastIndex(content, "```"); end >= 0 {
			content = content[:end]
		}
	}
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		content = content[start : end+1]
	}
	return []byte(strings.TrimSpace(content))
}

func describeSession(sess *session.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "round %d of %d, participants: %s\n",
		sess.CurrentRound, protocol.MaxRounds, strings.Join(sess.Participants, ", "))
	for name, item := range sess.Proposals {
		fmt.Fprintf(&b, "- %s options: %s\n", name, strings.Join(item.Options, " | "))
		for voter, choice := range item.Votes {
			if choice != nil {
				fmt.Fprintf(&b, "  %s voted %s\n", voter, *choice)
			}
		}
	}
	return b.String()
}

func describeRoom(rm *room.Room) string {
	var b strings.Builder
	for name, art := range rm.Artifacts {
		fmt.Fprintf(&b, "- %s (by %s, %s):\n%s\n", name, art.Author, art.Kind, art.Content)
	}
	if b.Len() == 0 {
		b.WriteString("(no artifacts yet)\n")
	}
	fmt.Fprintf(&b, "accepted by %d of %d participants\n", len(rm.AcceptedBy), len(rm.Participants))
	return b.String()
}
