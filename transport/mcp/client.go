package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/wricardo/quizrelay/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string, version string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer(version)
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer(version string) {
	c.mcpServer = server.NewMCPServer(
		"Quiz Relay",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions(`Quiz Relay - MCP Interface

This is a thin client that proxies all requests to the REST API server.

The server coordinates live quiz sessions. A session is identified by a
6-digit pin. The first websocket client to subscribe to a session becomes
its host; everyone after that is a player. Host actions are relayed to all
players, player actions are relayed to the host.

AVAILABLE TOOLS:
- create_session: Create a new session and get its pin
- get_session: Get host, players and channels of a session
- list_sessions: List live sessions
- server_stats: Session and connection counts
- protocol_guide: How clients join and exchange actions`),
	)

	c.registerTools()
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new quiz session and return its pin and channels",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"pin": map[string]interface{}{
					"type":        "string",
					"description": "6-digit session pin",
					"pattern":     `^\d{6}$`,
				},
			},
			Required: []string{"pin"},
		},
	}, c.handleGetSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List live sessions, oldest first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of sessions to return (optional)",
					"minimum":     0,
				},
			},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "server_stats",
		Description: "Get session, participant and connection counts",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleServerStats)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "protocol_guide",
		Description: "Explain the websocket protocol used by hosts and players",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleProtocolGuide)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created session: %s\n\n%s", session.Pin, formatChannels(session.Channels))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pin, _ := arguments(request)["pin"].(string)
	if pin == "" {
		return mcp.NewToolResultError("pin is required"), nil
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", "/api/sessions/"+url.PathEscape(pin), nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := "/api/sessions"
	if limit, ok := arguments(request)["limit"].(float64); ok && limit > 0 {
		path = fmt.Sprintf("%s?limit=%d", path, int(limit))
	}

	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}
	if err := c.apiCall(ctx, "GET", path, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Live Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		host := s.HostID
		if host == "" {
			host = "none"
		}
		fmt.Fprintf(&b, "- %s (Host: %s, Players: %d, Created: %s)\n",
			s.Pin, host, s.PlayerCount, s.CreatedAt.Format("15:04:05"))
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleServerStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var stats service.Stats
	if err := c.apiCall(ctx, "GET", "/api/stats", nil, &stats); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Sessions: %d\nHosts: %d\nParticipants: %d\nConnections: %d\nSubscriptions: %d\n",
		stats.Sessions, stats.Hosts, stats.Participants, stats.Connections, stats.Subscriptions)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleProtocolGuide(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(protocolGuide), nil
}

const protocolGuide = `# Quiz Relay Protocol

## Connecting
Open a websocket to /ws. The first frame carries your connection id:
  {"type":"connected","connectionId":"..."}

## Joining a session
Send {"command":"subscribe","destination":"/topic/host/<pin>"} to host, or
{"command":"subscribe","destination":"/topic/player/<pin>"} to play.
The first subscriber of a session without a host becomes host. Your role
arrives on /user/queue/session:
  {"type":"host-assigned","isHost":true,"clientId":"..."}
  {"type":"player-assigned","isHost":false,"clientId":"..."}

Roster changes are broadcast as participant-joined / participant-left with
playerCount and hostId.

## Sending actions
Send {"command":"send","destination":"/app/action/<pin>","payload":[{"data":{...}}]}.
The payload is a JSON array of messages, each with a "data" object. The
server stamps data.cid with your connection id and relays each message:
host messages go to /topic/player/<pin>, player messages go to
/topic/host/<pin>. Player messages are dropped while the session has no host.

## Leaving
Closing the websocket removes you from the session. The session ends when
its last participant leaves. A host that leaves is not replaced until a new
connection subscribes.`

// Formatting helpers

func formatSessionInfo(session *service.SessionInfo) string {
	host := session.HostID
	if host == "" {
		host = "none (next subscriber becomes host)"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Session: %s\n", session.Pin)
	fmt.Fprintf(&b, "Created: %s\n", session.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Host: %s\n", host)
	fmt.Fprintf(&b, "Players (%d):", session.PlayerCount)
	if len(session.Players) == 0 {
		b.WriteString(" none")
	}
	for _, id := range session.Players {
		fmt.Fprintf(&b, "\n  - %s", id)
	}
	b.WriteString("\n\n")
	b.WriteString(formatChannels(session.Channels))
	return b.String()
}

func formatChannels(ch service.Channels) string {
	return fmt.Sprintf("Channels:\n  Players: %s\n  Host: %s\n  Actions: %s\n  Role notifications: %s\n",
		ch.Players, ch.Host, ch.Action, ch.Private)
}
