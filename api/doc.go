// Package api provides HTTP REST API handlers for the quiz relay server.
//
// The api package implements:
//   - Session creation and lookup endpoints
//   - Server statistics
//   - Health and Prometheus metrics endpoints
//   - WebSocket upgrade handling
//
// Endpoints:
//
// Session Management:
//   - POST /api/sessions - Create a session and return its pin
//   - GET /api/sessions - List live sessions, oldest first (?limit=n)
//   - GET /api/sessions/{pin} - Get a specific session
//
// Operations:
//   - GET /api/stats - Session, participant and connection counts
//   - GET /healthz - Liveness probe
//   - GET /metrics - Prometheus metrics
//   - GET /ws - WebSocket upgrade for the relay protocol
//
// Request/Response Format:
//
// All endpoints return JSON. A created session looks like:
//
//	{
//	  "pin": "482913",
//	  "hostId": "",
//	  "players": [],
//	  "playerCount": 0,
//	  "createdAt": "2024-01-01T12:00:00Z",
//	  "channels": {
//	    "players": "/topic/player/482913",
//	    "host": "/topic/host/482913",
//	    "action": "/app/action/482913",
//	    "private": "/user/queue/session"
//	  }
//	}
//
// Error Handling:
//
// Errors are returned as {"error": "message"}. A malformed pin yields 400,
// an unknown pin 404 and an exhausted pin space 503.
package api
