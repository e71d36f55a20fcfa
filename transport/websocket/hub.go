package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"github.com/wricardo/quizrelay/internal/metrics"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Defaults for Options.
	defaultMaxMessageSize = 64 * 1024
	defaultSendBuffer     = 256
)

// Listener receives connection lifecycle and inbound message callbacks. Calls
// for one connection are sequential; calls for different connections run
// concurrently.
type Listener interface {
	Subscribed(connectionID, destination string)
	Disconnected(connectionID string)
	Received(connectionID, destination string, payload []byte)
}

// Options tunes the hub. Zero values fall back to defaults.
type Options struct {
	MaxMessageSize int64
	SendBuffer     int
	CheckOrigin    func(r *http.Request) bool
}

// Stats is a snapshot of hub occupancy.
type Stats struct {
	Connections   int `json:"connections"`
	Destinations  int `json:"destinations"`
	Subscriptions int `json:"subscriptions"`
}

// Hub maintains the set of active clients and their subscriptions and
// delivers published payloads to them.
type Hub struct {
	mu sync.RWMutex

	// Registered clients by connection ID
	clients map[string]*Client

	// Subscribed clients by destination
	destinations map[string]map[*Client]struct{}

	listener Listener
	upgrader websocket.Upgrader
	opts     Options
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(opts Options, m *metrics.Metrics, logger zerolog.Logger) *Hub {
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = defaultMaxMessageSize
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultSendBuffer
	}
	if opts.CheckOrigin == nil {
		opts.CheckOrigin = func(r *http.Request) bool {
			return true
		}
	}

	return &Hub{
		clients:      make(map[string]*Client),
		destinations: make(map[string]map[*Client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     opts.CheckOrigin,
		},
		opts:    opts,
		metrics: m,
		logger:  logger,
	}
}

// SetListener installs the callback target. It must be called before the hub
// serves connections.
func (h *Hub) SetListener(l Listener) {
	h.listener = l
}

// ServeWS handles WebSocket requests from clients
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	id, err := gonanoid.New()
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to generate connection id")
		conn.Close()
		return
	}

	client := newClient(h, conn, id)
	h.register(client)
	client.enqueue(mustMarshal(ServerFrame{Type: FrameConnected, ConnectionID: id}))

	h.logger.Info().Str("connectionId", id).Str("ip", r.RemoteAddr).Msg("Client connected")

	go client.writePump()
	go client.readPump()
}

// Publish sends payload to every client subscribed to destination
func (h *Hub) Publish(destination string, payload []byte) {
	data, err := json.Marshal(ServerFrame{
		Type:        FrameMessage,
		Destination: destination,
		Payload:     json.RawMessage(payload),
	})
	if err != nil {
		h.logger.Error().Err(err).Str("destination", destination).Msg("Failed to marshal message")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.destinations[destination] {
		if !client.enqueue(data) {
			h.metrics.MessageDropped(metrics.DropSlowConsumer)
		}
	}
}

// SendToConnection delivers payload to one client regardless of its
// subscriptions
func (h *Hub) SendToConnection(connectionID, destination string, payload []byte) {
	data, err := json.Marshal(ServerFrame{
		Type:        FrameMessage,
		Destination: destination,
		Payload:     json.RawMessage(payload),
	})
	if err != nil {
		h.logger.Error().Err(err).Str("destination", destination).Msg("Failed to marshal message")
		return
	}

	h.mu.RLock()
	client, ok := h.clients[connectionID]
	h.mu.RUnlock()

	if !ok {
		h.logger.Debug().Str("connectionId", connectionID).Msg("Private message for unknown connection dropped")
		return
	}
	if !client.enqueue(data) {
		h.metrics.MessageDropped(metrics.DropSlowConsumer)
	}
}

// Stats returns current connection and subscription counts
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := Stats{
		Connections:  len(h.clients),
		Destinations: len(h.destinations),
	}
	for _, clients := range h.destinations {
		stats.Subscriptions += len(clients)
	}
	return stats
}

// Shutdown disconnects every client. Listener.Disconnected has run for each
// of them when Shutdown returns.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.disconnect(c)
		c.close()
	}
	h.logger.Info().Int("clients", len(clients)).Msg("Hub shut down")
}

// register adds a client to the hub
func (h *Hub) register(client *Client) {
	h.mu.Lock()
	h.clients[client.id] = client
	total := len(h.clients)
	h.mu.Unlock()

	h.metrics.ConnectionOpened()
	h.logger.Debug().Str("connectionId", client.id).Int("total", total).Msg("Client registered")
}

// unregister removes a client and all of its subscriptions. It reports
// whether the client was still registered.
func (h *Hub) unregister(client *Client) bool {
	h.mu.Lock()
	if _, ok := h.clients[client.id]; !ok {
		h.mu.Unlock()
		return false
	}
	delete(h.clients, client.id)
	for destination := range client.subscriptions {
		h.removeSubscriber(destination, client)
	}
	client.subscriptions = nil
	remaining := len(h.clients)
	h.mu.Unlock()

	h.metrics.ConnectionClosed()
	h.logger.Debug().Str("connectionId", client.id).Int("remaining", remaining).Msg("Client unregistered")
	return true
}

// subscribe records client as a subscriber of destination. It reports whether
// the subscription is new.
func (h *Hub) subscribe(client *Client, destination string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client.subscriptions == nil {
		return false
	}
	if _, ok := client.subscriptions[destination]; ok {
		return false
	}
	client.subscriptions[destination] = struct{}{}

	if h.destinations[destination] == nil {
		h.destinations[destination] = make(map[*Client]struct{})
	}
	h.destinations[destination][client] = struct{}{}
	return true
}

func (h *Hub) unsubscribe(client *Client, destination string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := client.subscriptions[destination]; !ok {
		return
	}
	delete(client.subscriptions, destination)
	h.removeSubscriber(destination, client)
}

// removeSubscriber must be called with h.mu held.
func (h *Hub) removeSubscriber(destination string, client *Client) {
	clients, ok := h.destinations[destination]
	if !ok {
		return
	}
	delete(clients, client)

	// Clean up empty destinations
	if len(clients) == 0 {
		delete(h.destinations, destination)
	}
}

// dispatch handles one decoded frame from client
func (h *Hub) dispatch(client *Client, frame ClientFrame) {
	switch frame.Command {
	case CommandSubscribe:
		if frame.Destination == "" {
			client.sendError("subscribe requires a destination")
			return
		}
		if !h.subscribe(client, frame.Destination) {
			return
		}
		if h.listener != nil {
			h.listener.Subscribed(client.id, frame.Destination)
		}

	case CommandUnsubscribe:
		h.unsubscribe(client, frame.Destination)

	case CommandSend:
		if frame.Destination == "" {
			client.sendError("send requires a destination")
			return
		}
		if h.listener != nil {
			h.listener.Received(client.id, frame.Destination, frame.Payload)
		}

	default:
		client.sendError("unknown command: " + frame.Command)
	}
}

// disconnect unregisters client and notifies the listener exactly once.
func (h *Hub) disconnect(client *Client) {
	if !h.unregister(client) {
		return
	}
	if h.listener != nil {
		h.listener.Disconnected(client.id)
	}
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
