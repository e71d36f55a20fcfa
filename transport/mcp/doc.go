// Package mcp provides Model Context Protocol server implementation for the
// quiz relay server.
//
// The mcp package implements:
//   - MCP server for AI agent integration
//   - Tool definitions that proxy to the REST API
//   - Stdio and HTTP transport modes
//
// MCP Tools:
//
// The package exposes the following tools for AI agents:
//   - create_session: Create a session and return its pin
//   - get_session: Get host, players and channels of a session
//   - list_sessions: List live sessions
//   - server_stats: Session and connection counts
//   - protocol_guide: Websocket protocol reference for hosts and players
//
// Transport Modes:
//
// The server supports two transport modes:
//   - Stdio: Direct stdio communication for local MCP clients
//   - HTTP: POST /mcp on the relay server
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080", version)
//	server.ServeStdio(client.GetMCPServer())
//
// The live relay itself is websocket only; MCP tools manage and inspect
// sessions but never join them.
package mcp
