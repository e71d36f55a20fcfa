// Package websocket provides the WebSocket pub/sub transport for the quiz
// relay server.
//
// The websocket package implements:
//   - Connection registry with generated connection ids
//   - Destination subscriptions and fan-out publishing
//   - Private delivery to a single connection
//   - Connection lifecycle callbacks for the session layer
//
// Architecture:
//
// A central Hub tracks every connection and the destinations it subscribed
// to. Each client connection is served by two goroutines: readPump decodes
// frames and hands them to the hub, writePump drains the client's outbound
// queue and keeps the connection alive with pings.
//
// Message Protocol:
//
// Frames are JSON objects, one per WebSocket message:
//   - Incoming: {"command":"subscribe","destination":"/topic/player/482913"}
//   - Incoming: {"command":"send","destination":"/app/action/482913","payload":[{"data":{"choice":2}}]}
//   - Outgoing: {"type":"connected","connectionId":"V1StGXR8_Z5jdHi6B-myT"}
//   - Outgoing: {"type":"message","destination":"/topic/host/482913","payload":...}
//   - Outgoing: {"type":"error","message":"malformed frame"}
//
// Usage:
//
//	hub := websocket.NewHub(websocket.Options{}, metrics, logger)
//	hub.SetListener(dispatcher)
//	http.HandleFunc("/ws", hub.ServeWS)
//
// Connection Lifecycle:
//
// 1. Client connects and receives its connection id
// 2. Client subscribes to session channels (Listener.Subscribed)
// 3. Client sends actions (Listener.Received), receives published payloads
// 4. Disconnection removes all subscriptions (Listener.Disconnected)
//
// Concurrency:
//
// Publishing never blocks: every client has a bounded outbound queue and a
// client that falls behind is disconnected. Listener callbacks for one
// connection arrive in order; different connections are handled in parallel.
package websocket
