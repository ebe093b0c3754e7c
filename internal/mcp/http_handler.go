package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewHTTPHandler bridges single JSON-RPC POST requests to the SDK server.
// Each request spins up an in-process client over an in-memory transport
// pair, performs the handshake, and issues exactly one call. Production
// deployments use the SDK's streamable HTTP handler instead; this bridge
// exists for the test harness and simple curl-style clients.
func NewHTTPHandler(server *sdkmcp.Server, logger *slog.Logger) http.Handler {
	return &rpcBridge{server: server, logger: logger}
}

type rpcBridge struct {
	server *sdkmcp.Server
	logger *slog.Logger
}

type rpcEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcFault       `json:"error,omitempty"`
	ID      any             `json:"id,omitempty"`
}

type rpcFault struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (b *rpcBridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req rpcEnvelope
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		b.reply(w, rpcEnvelope{Error: &rpcFault{Code: jsonrpc.CodeParseError, Message: "Parse error"}})
		return
	}

	serverEnd, clientEnd := sdkmcp.NewInMemoryTransports()
	srvSession, err := b.server.Connect(r.Context(), serverEnd, nil)
	if err != nil {
		b.fail(w, req.ID, "server connect", err)
		return
	}
	defer srvSession.Close()

	bridgeClient := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "http-bridge", Version: "0.1.0"}, nil)
	session, err := bridgeClient.Connect(r.Context(), clientEnd, nil)
	if err != nil {
		b.fail(w, req.ID, "client connect", err)
		return
	}
	defer session.Close()

	result, err := dispatch(r.Context(), session, req)
	if err != nil {
		var wire *jsonrpc.Error
		if errors.As(err, &wire) {
			b.reply(w, rpcEnvelope{Error: &rpcFault{Code: wire.Code, Message: wire.Message}, ID: req.ID})
			return
		}
		b.fail(w, req.ID, req.Method, err)
		return
	}
	b.reply(w, rpcEnvelope{Result: result, ID: req.ID})
}

// dispatch maps one wire method onto the typed client call. Only the
// methods the bridge's clients actually use are routed.
func dispatch(ctx context.Context, session *sdkmcp.ClientSession, req rpcEnvelope) (any, error) {
	switch req.Method {
	case "initialize":
		// The client session already completed the handshake on connect.
		return session.InitializeResult(), nil
	case "ping":
		return struct{}{}, session.Ping(ctx, nil)
	case "tools/list":
		return session.ListTools(ctx, &sdkmcp.ListToolsParams{})
	case "tools/call":
		var params sdkmcp.CallToolParams
		if err := decodeParams(req.Params, &params); err != nil {
			return nil, err
		}
		return session.CallTool(ctx, &params)
	case "resources/list":
		return session.ListResources(ctx, &sdkmcp.ListResourcesParams{})
	case "resources/read":
		var params sdkmcp.ReadResourceParams
		if err := decodeParams(req.Params, &params); err != nil {
			return nil, err
		}
		return session.ReadResource(ctx, &params)
	case "prompts/list":
		return session.ListPrompts(ctx, &sdkmcp.ListPromptsParams{})
	default:
		return nil, &jsonrpc.Error{
			Code:    jsonrpc.CodeMethodNotFound,
			Message: fmt.Sprintf("method %q not supported", req.Method),
		}
	}
}

func decodeParams(raw json.RawMessage, into any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return &jsonrpc.Error{Code: jsonrpc.CodeInvalidParams, Message: err.Error()}
	}
	return nil
}

func (b *rpcBridge) fail(w http.ResponseWriter, id any, stage string, err error) {
	if b.logger != nil {
		b.logger.Error("rpc bridge failure", "stage", stage, "error", err)
	}
	b.reply(w, rpcEnvelope{
		Error: &rpcFault{Code: jsonrpc.CodeInternalError, Message: "Internal error: " + err.Error()},
		ID:    id,
	})
}

// reply always answers 200: JSON-RPC faults travel in the body, not in the
// HTTP status.
func (b *rpcBridge) reply(w http.ResponseWriter, resp rpcEnvelope) {
	resp.JSONRPC = "2.0"
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
