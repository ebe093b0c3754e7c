package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Payloads carry whole negotiation states; cap what lands in debug logs.
const maxLoggedPayload = 2048

// debugTraffic logs every request/response pair at debug level. Session and
// room JSON can be bulky, so payloads are truncated; the full state is
// always inspectable through get_session / get_room.
func debugTraffic(logger *slog.Logger, direction string) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			if logger == nil || !logger.Enabled(ctx, slog.LevelDebug) {
				return next(ctx, method, req)
			}

			log := logger.With("dir", direction, "method", method, "mcp_session", requestSessionID(req))
			log.Debug("rpc request", "params", payloadForLog(requestParams(req)))

			result, err := next(ctx, method, req)
			switch {
			case strings.HasPrefix(method, "notifications/"):
				// Notifications have no response worth logging.
			case err != nil:
				log.Debug("rpc response", "error", err)
			default:
				log.Debug("rpc response", "result", payloadForLog(result))
			}
			return result, err
		}
	}
}

// requestSessionID digs the MCP session id out of a request without
// trusting the SDK not to panic on partially initialized values.
func requestSessionID(req sdkmcp.Request) (id string) {
	defer func() { recover() }()
	if req == nil {
		return ""
	}
	if session := req.GetSession(); session != nil {
		id = session.ID()
	}
	return id
}

func requestParams(req sdkmcp.Request) (params any) {
	defer func() { recover() }()
	if req == nil {
		return nil
	}
	return req.GetParams()
}

func payloadForLog(payload any) string {
	if payload == nil {
		return "<nil>"
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("%T", payload)
	}
	if len(data) > maxLoggedPayload {
		return string(data[:maxLoggedPayload]) + "...(truncated)"
	}
	return string(data)
}
