package functional_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpggio/accord/internal/domain/protocol"
	"github.com/rpggio/accord/internal/mail"
	"github.com/rpggio/accord/internal/oracle"
	"github.com/rpggio/accord/internal/testserver"
)

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      any             `json:"id,omitempty"`
}

type rpcError struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

func rpcCall(t *testing.T, ts *testserver.TestServer, method string, params any) rpcResponse {
	t.Helper()

	payload := map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"id":      1,
	}
	if params != nil {
		payload["params"] = params
	}

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, ts.Server.URL+"/mcp", bytes.NewBuffer(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status 200, got %d. Body: %s", resp.StatusCode, string(bodyBytes))
	}

	var result rpcResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result
}

type toolCallResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	IsError bool `json:"isError"`
}

func rawCallTool(t *testing.T, ts *testserver.TestServer, toolName string, args any) toolCallResult {
	t.Helper()

	params := map[string]any{"name": toolName}
	if args != nil {
		params["arguments"] = args
	}
	resp := rpcCall(t, ts, "tools/call", params)
	require.Nil(t, resp.Error, "RPC error: %v", resp.Error)

	var result toolCallResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.NotEmpty(t, result.Content)
	return result
}

// callTool invokes a tool and unwraps the JSON it returned.
func callTool(t *testing.T, ts *testserver.TestServer, toolName string, args any) json.RawMessage {
	t.Helper()
	result := rawCallTool(t, ts, toolName, args)
	require.False(t, result.IsError, "Tool error: %s", result.Content[0].Text)
	return json.RawMessage(result.Content[0].Text)
}

func TestFunctional_ToolsAreListed(t *testing.T) {
	ts := testserver.New(t)

	resp := rpcCall(t, ts, "tools/list", nil)
	require.Nil(t, resp.Error)

	var listed struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &listed))

	var names []string
	for _, tool := range listed.Tools {
		names = append(names, tool.Name)
	}
	for _, want := range []string{
		"initiate_session", "get_session", "list_sessions", "respond",
		"initiate_room", "get_room", "list_rooms", "poll_now",
	} {
		assert.Contains(t, names, want)
	}
}

func TestFunctional_SessionLifecycle(t *testing.T) {
	ts := testserver.New(t)

	created := callTool(t, ts, "initiate_session", map[string]any{
		"topic":        "team sync scheduling",
		"participants": []string{"bob@example.com"},
		"items": map[string][]string{
			"day": {"Tuesday", "Thursday"},
		},
	})
	var out struct {
		Session struct {
			ID           string   `json:"session_id"`
			Participants []string `json:"participants"`
			Status       string   `json:"status"`
		} `json:"session"`
	}
	require.NoError(t, json.Unmarshal(created, &out))
	require.NotEmpty(t, out.Session.ID)
	assert.Contains(t, out.Session.Participants, testserver.AgentAddress)
	assert.Equal(t, "negotiating", out.Session.Status)

	// The opening proposal went out over the transport.
	require.Len(t, ts.Transport.Sent, 1)
	assert.Equal(t, []string{"bob@example.com"}, ts.Transport.Sent[0].Recipients)

	got := callTool(t, ts, "get_session", map[string]any{"id": out.Session.ID})
	require.NoError(t, json.Unmarshal(got, &out))
	assert.Equal(t, "negotiating", out.Session.Status)

	list := callTool(t, ts, "list_sessions", map[string]any{"active_only": true})
	var sessions struct {
		Sessions []json.RawMessage `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(list, &sessions))
	assert.Len(t, sessions.Sessions, 1)
}

func TestFunctional_GetSessionNotFound(t *testing.T) {
	ts := testserver.New(t)

	result := rawCallTool(t, ts, "get_session", map[string]any{"id": "nope"})
	require.True(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "NOT_FOUND")
}

func TestFunctional_RoomLifecycle(t *testing.T) {
	ts := testserver.New(t)

	deadline := ts.Now.Add(24 * time.Hour).Format(time.RFC3339)
	created := callTool(t, ts, "initiate_room", map[string]any{
		"topic":        "offsite agenda",
		"deadline":     deadline,
		"participants": []string{"bob@example.com", "carol@example.com"},
		"draft":        "1. intros\n2. roadmap",
	})
	var out struct {
		Room struct {
			ID     string `json:"room_id"`
			Status string `json:"status"`
		} `json:"room"`
	}
	require.NoError(t, json.Unmarshal(created, &out))
	require.NotEmpty(t, out.Room.ID)
	assert.Equal(t, "open", out.Room.Status)

	got := callTool(t, ts, "get_room", map[string]any{"id": out.Room.ID})
	require.NoError(t, json.Unmarshal(got, &out))
	assert.Equal(t, "open", out.Room.Status)

	list := callTool(t, ts, "list_rooms", map[string]any{"open_only": true})
	var rooms struct {
		Rooms []json.RawMessage `json:"rooms"`
	}
	require.NoError(t, json.Unmarshal(list, &rooms))
	assert.Len(t, rooms.Rooms, 1)
}

func TestFunctional_InitiateRoomRejectsBadDeadline(t *testing.T) {
	ts := testserver.New(t)

	result := rawCallTool(t, ts, "initiate_room", map[string]any{
		"topic":        "offsite agenda",
		"deadline":     "next tuesday",
		"participants": []string{"bob@example.com"},
	})
	require.True(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "parse deadline")
}

func TestFunctional_PollNowDrivesNegotiation(t *testing.T) {
	ts := testserver.New(t)

	created := callTool(t, ts, "initiate_session", map[string]any{
		"topic":        "team lunch",
		"participants": []string{"bob@example.com"},
		"items":        map[string][]string{"day": {"tuesday"}},
	})
	var out struct {
		Session struct {
			ID string `json:"session_id"`
		} `json:"session"`
	}
	require.NoError(t, json.Unmarshal(created, &out))

	// Bob votes by mailing back his copy of the state.
	theirs, err := ts.Sessions.Get(t.Context(), out.Session.ID)
	require.NoError(t, err)
	require.NoError(t, theirs.ApplyVote("bob@example.com", "day", "tuesday"))
	payload, err := theirs.ToJSON()
	require.NoError(t, err)
	ts.Transport.Deliver(mail.Inbound{
		Sender:      "bob@example.com",
		Subject:     mail.SessionTag(out.Session.ID) + " negotiation v2",
		Correlation: out.Session.ID,
		Kind:        mail.KindSession,
		Payload:     payload,
	})
	ts.Oracle.QueueDecision(oracle.Decision{
		Action: protocol.SessionAccept,
		Votes:  map[string]string{"day": "tuesday"},
	})

	polled := callTool(t, ts, "poll_now", nil)
	var events struct {
		Events []struct {
			Type       string            `json:"type"`
			SessionID  string            `json:"session_id"`
			Resolution map[string]string `json:"resolution"`
		} `json:"events"`
	}
	require.NoError(t, json.Unmarshal(polled, &events))
	require.Len(t, events.Events, 1)
	assert.Equal(t, "consensus", events.Events[0].Type)
	assert.Equal(t, map[string]string{"day": "tuesday"}, events.Events[0].Resolution)
}

func TestFunctional_RespondVotesForOwner(t *testing.T) {
	ts := testserver.New(t)

	created := callTool(t, ts, "initiate_session", map[string]any{
		"topic":        "one on one",
		"participants": []string{"bob@example.com"},
		"items":        map[string][]string{"day": {"tuesday", "thursday"}},
	})
	var out struct {
		Session struct {
			ID string `json:"session_id"`
		} `json:"session"`
	}
	require.NoError(t, json.Unmarshal(created, &out))

	ts.Oracle.QueueReply(oracle.Decision{
		Action: protocol.SessionAccept,
		Votes:  map[string]string{"day": "thursday"},
	})
	resp := callTool(t, ts, "respond", map[string]any{
		"session_id": out.Session.ID,
		"text":       "thursday please, mornings only",
	})
	require.NotEmpty(t, resp)
	assert.Equal(t, []string{"thursday please, mornings only"}, ts.Oracle.ParsedReplies)
}

func TestFunctional_DocResources(t *testing.T) {
	ts := testserver.New(t)

	resp := rpcCall(t, ts, "resources/list", nil)
	require.Nil(t, resp.Error)
	var listed struct {
		Resources []struct {
			URI string `json:"uri"`
		} `json:"resources"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &listed))
	var uris []string
	for _, res := range listed.Resources {
		uris = append(uris, res.URI)
	}
	assert.Contains(t, uris, "accord://docs/index")
	assert.Contains(t, uris, "accord://docs/mail-protocol")

	read := rpcCall(t, ts, "resources/read", map[string]any{"uri": "accord://docs/index"})
	require.Nil(t, read.Error)
	var contents struct {
		Contents []struct {
			Text string `json:"text"`
		} `json:"contents"`
	}
	require.NoError(t, json.Unmarshal(read.Result, &contents))
	require.NotEmpty(t, contents.Contents)
	assert.Contains(t, contents.Contents[0].Text, "accord://docs/concepts")
}
