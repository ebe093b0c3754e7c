package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/rpggio/accord/internal/engine"
	"github.com/rpggio/accord/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the agent: mail poll loop plus MCP server",
	Long: `Serve runs the negotiation loop and exposes the MCP control surface.

The poll loop fetches mail on the configured interval and advances every
active session and room. The MCP server lets clients initiate
negotiations, steer them, and inspect their state.

Examples:
  # Stdio transport for a local MCP client
  accord serve --transport stdio

  # HTTP transport for remote clients
  accord serve --transport http`,
	RunE: runServe,
}

var serveTransport string

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveTransport, "transport", "t", "stdio", "MCP transport: stdio or http")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveTransport != "stdio" && serveTransport != "http" {
		return fmt.Errorf("unknown transport %q", serveTransport)
	}

	// Stdio mode keeps stdout clean for JSON-RPC.
	logWriter := os.Stdout
	if serveTransport == "stdio" {
		logWriter = os.Stderr
	}
	app, err := buildApp(logWriter)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		app.logger.Info("shutting down")
		cancel()
	}()

	go func() {
		sink := func(evt engine.Event) {
			app.logger.Info("negotiation event", "type", evt.Type, "session_id", evt.SessionID, "room_id", evt.RoomID)
		}
		if err := app.engine.Run(ctx, app.cfg.Poll.Interval, sink); err != nil && ctx.Err() == nil {
			app.logger.Error("poll loop stopped", "error", err)
		}
	}()

	mcpServer := mcp.NewServer(mcp.Config{
		Services: mcp.Services{
			Sessions:   app.sessions,
			Rooms:      app.rooms,
			Negotiator: app.engine,
		},
		AuthToken:     app.cfg.Server.AuthToken,
		TransportMode: serveTransport,
		Logger:        app.logger,
	})

	if serveTransport == "stdio" {
		return runStdio(ctx, app, mcpServer)
	}
	return runHTTP(ctx, app, mcpServer)
}

func runStdio(ctx context.Context, app *app, mcpServer *sdkmcp.Server) error {
	app.logger.Info("starting stdio transport")

	// Run blocks until stdin closes or context is canceled
	if err := mcpServer.Run(ctx, &sdkmcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return fmt.Errorf("stdio server: %w", err)
	}
	return nil
}

func runHTTP(ctx context.Context, app *app, mcpServer *sdkmcp.Server) error {
	mcpHandler := sdkmcp.NewStreamableHTTPHandler(
		func(r *http.Request) *sdkmcp.Server { return mcpServer },
		&sdkmcp.StreamableHTTPOptions{
			Stateless:      false,
			SessionTimeout: 30 * time.Minute,
		},
	)

	router := http.NewServeMux()
	router.Handle("/mcp", mcpHandler)
	router.Handle("/mcp/", mcpHandler)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	addr := fmt.Sprintf("%s:%d", app.cfg.Server.Host, app.cfg.Server.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	errc := make(chan error, 1)
	go func() {
		app.logger.Info("server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		app.logger.Error("shutdown error", "error", err)
	}
	return nil
}
