// Command quizrelay starts the live quiz relay server.
//
// It supports two modes:
//  1. "serve" (default) - runs the HTTP server exposing the REST API, the
//     WebSocket relay, Prometheus metrics and an /mcp HTTP endpoint
//  2. "mcp" - runs an MCP stdio server and spins up an internal HTTP API if
//     none is available
//
// Settings come from the environment (optionally a .env file) and can be
// overridden with flags, including optional ngrok tunneling for easy
// external access during development.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
	"github.com/wricardo/quizrelay/api"
	"github.com/wricardo/quizrelay/game/config"
	"github.com/wricardo/quizrelay/game/relay"
	"github.com/wricardo/quizrelay/game/service"
	"github.com/wricardo/quizrelay/game/session"
	"github.com/wricardo/quizrelay/internal/logger"
	"github.com/wricardo/quizrelay/internal/metrics"
	"github.com/wricardo/quizrelay/transport/mcp"
	"github.com/wricardo/quizrelay/transport/websocket"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Quiz Relay Server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newCommand builds the command tree
func newCommand() *cli.Command {
	return &cli.Command{
		Name:           "quizrelay",
		Usage:          AppName,
		Version:        Version,
		DefaultCommand: "serve",
		Commands: []*cli.Command{
			{
				Name:    "serve",
				Aliases: []string{"server", "http"},
				Usage:   "Run HTTP server with REST API, WebSocket relay, and MCP endpoint",
				Flags: append(commonFlags(),
					&cli.BoolFlag{Name: "ngrok", Usage: "Enable ngrok tunnel"},
					&cli.StringFlag{Name: "ngrok-auth", Usage: "Ngrok auth token (or use NGROK_AUTHTOKEN env var)"},
					&cli.StringFlag{Name: "ngrok-domain", Usage: "Custom ngrok domain (optional)"},
				),
				Action: runServe,
			},
			{
				Name:    "mcp",
				Aliases: []string{"stdio-mcp", "mcp-stdio"},
				Usage:   "Run MCP stdio server backed by the REST API",
				Flags: append(commonFlags(),
					&cli.StringFlag{Name: "api-url", Usage: "REST API base URL (default: probe host:port, else start an internal server)"},
				),
				Action: runMCP,
			},
		},
	}
}

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "env-file", Value: ".env", Usage: "Optional dotenv file"},
		&cli.StringFlag{Name: "host", Usage: "HTTP server host (QUIZ_HOST)"},
		&cli.IntFlag{Name: "port", Usage: "HTTP server port (QUIZ_PORT)"},
		&cli.StringFlag{Name: "log-level", Usage: "Log level: debug, info, warn, error (QUIZ_LOG_LEVEL)"},
		&cli.BoolFlag{Name: "debug", Usage: "Shorthand for --log-level debug"},
	}
}

// loadConfig reads the environment and applies flag overrides
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("env-file"))
	if err != nil {
		return nil, err
	}

	if cmd.IsSet("host") {
		cfg.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Port = int(cmd.Int("port"))
	}
	if cmd.IsSet("log-level") {
		cfg.LogLevel = cmd.String("log-level")
	}
	if cmd.Bool("debug") {
		cfg.LogLevel = "debug"
	}
	if cmd.Bool("ngrok") {
		cfg.Ngrok.Enabled = true
	}
	if cmd.IsSet("ngrok-auth") {
		cfg.Ngrok.AuthToken = cmd.String("ngrok-auth")
	}
	if cmd.IsSet("ngrok-domain") {
		cfg.Ngrok.Domain = cmd.String("ngrok-domain")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// relayServer holds the wired components of one server instance
type relayServer struct {
	registry *session.Registry
	hub      *websocket.Hub
	service  service.SessionService
	api      *api.Server
	metrics  *metrics.Metrics
}

// newRelayServer wires registry, hub, relay and API together
func newRelayServer(cfg *config.Config, log zerolog.Logger) *relayServer {
	m := metrics.NewMetrics()

	registry := session.NewRegistry(log.With().Str("component", "registry").Logger(), session.WithMetrics(m))

	hub := websocket.NewHub(websocket.Options{
		MaxMessageSize: cfg.MaxMessageBytes,
		SendBuffer:     cfg.SendBuffer,
	}, m, log.With().Str("component", "hub").Logger())

	relayLog := log.With().Str("component", "relay").Logger()
	events := relay.NewEventHandler(registry, hub, m, relayLog)
	actions := relay.NewActionRelay(registry, hub, m, relayLog)
	hub.SetListener(relay.NewDispatcher(events, actions, relayLog))

	sessionService := service.NewSessionService(registry, hub, log.With().Str("component", "service").Logger())

	return &relayServer{
		registry: registry,
		hub:      hub,
		service:  sessionService,
		api:      api.NewServer(sessionService, hub, m, log.With().Str("component", "api").Logger()),
		metrics:  m,
	}
}

// mountMCP adds the POST /mcp endpoint backed by client
func (s *relayServer) mountMCP(client *mcp.Client) {
	s.api.Router().Handle("/mcp", mcpHandler(client)).Methods("POST")
}

// mcpHandler serves single JSON-RPC messages over HTTP
func mcpHandler(client *mcp.Client) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := client.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	})
}

// runServe starts the HTTP server with REST API, WebSocket relay, and an
// /mcp proxy endpoint. If ngrok is enabled it also provisions a public
// tunnel.
func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	log.Info().Str("version", Version).Msgf("Starting %s", AppName)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := newRelayServer(cfg, log)
	addr := cfg.Addr()
	srv.mountMCP(mcp.NewClient(fmt.Sprintf("http://%s", addr), Version))

	httpServer := &http.Server{
		Addr:        addr,
		Handler:     srv.api,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()

		log.Info().
			Str("addr", addr).
			Str("api", fmt.Sprintf("http://%s/api", addr)).
			Str("ws", fmt.Sprintf("ws://%s/ws", addr)).
			Str("mcp", fmt.Sprintf("http://%s/mcp", addr)).
			Msg("HTTP server listening")

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	if cfg.Ngrok.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, cfg.Ngrok, srv.api, log)
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down...")
	case runErr = <-errCh:
		log.Error().Err(runErr).Msg("Shutting down after server failure")
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	// Hijacked websocket connections are not closed by Shutdown
	srv.hub.Shutdown()

	cancel()
	wg.Wait()
	log.Info().Msg("Server stopped")
	return runErr
}

// runNgrok serves handler through an ngrok tunnel until ctx is done
func runNgrok(ctx context.Context, cfg config.Ngrok, handler http.Handler, log zerolog.Logger) {
	if cfg.AuthToken == "" {
		log.Warn().Msg("Ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN env var)")
		return
	}

	log.Info().Msg("Starting ngrok tunnel...")

	var tunnel ngrokConfig.Tunnel
	if cfg.Domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(cfg.Domain))
		log.Info().Str("domain", cfg.Domain).Msg("Using custom ngrok domain")
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(cfg.AuthToken))
	if err != nil {
		log.Error().Err(err).Msg("Failed to start ngrok tunnel")
		return
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close ngrok tunnel")
		}
	}()

	ngrokURL := tun.URL()
	log.Info().
		Str("url", ngrokURL).
		Str("api", ngrokURL+"/api").
		Str("mcp", ngrokURL+"/mcp").
		Msg("Ngrok tunnel established")

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		log.Error().Err(err).Msg("Ngrok server error")
	}
	log.Info().Msg("Ngrok tunnel closed")
}

// runMCP runs an MCP stdio server. It reuses an API at --api-url or at the
// configured address when one answers; otherwise it starts an internal HTTP
// API bound to a random loopback port and targets that.
func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// Logs go to stderr, stdout carries the MCP protocol
	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	baseURL := cmd.String("api-url")
	if baseURL == "" {
		external := fmt.Sprintf("http://%s", cfg.Addr())
		if apiAvailable(ctx, external) {
			log.Info().Str("url", external).Msg("External API server found, using it for MCP")
			baseURL = external
		}
	}

	if baseURL == "" {
		log.Info().Msg("No external API server found, starting internal HTTP server")

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}
		baseURL = fmt.Sprintf("http://%s", listener.Addr().String())

		srv := newRelayServer(cfg, log)
		httpServer := &http.Server{Handler: srv.api}
		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("Internal HTTP server error")
			}
		}()
		defer httpServer.Close()

		log.Info().Str("url", baseURL).Msg("Internal HTTP server started for MCP stdio")
	}

	client := mcp.NewClient(baseURL, Version)
	log.Info().Str("api", baseURL).Msg("MCP stdio server ready")

	if err := server.ServeStdio(client.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

// apiAvailable reports whether a relay API answers at baseURL
func apiAvailable(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", baseURL+"/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
