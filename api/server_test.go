package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wricardo/quizrelay/game/relay"
	"github.com/wricardo/quizrelay/game/service"
	"github.com/wricardo/quizrelay/game/session"
	"github.com/wricardo/quizrelay/internal/metrics"
	"github.com/wricardo/quizrelay/transport/websocket"
)

// MockSessionService implements service.SessionService for testing
type MockSessionService struct {
	CreateSessionFunc func(ctx context.Context) (*service.SessionInfo, error)
	GetSessionFunc    func(ctx context.Context, pin string) (*service.SessionInfo, error)
	ListSessionsFunc  func(ctx context.Context, limit int) ([]*service.SessionInfo, error)
	StatsFunc         func(ctx context.Context) (*service.Stats, error)
}

func (m *MockSessionService) CreateSession(ctx context.Context) (*service.SessionInfo, error) {
	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx)
	}
	return &service.SessionInfo{Info: session.Info{Pin: "123456", Players: []string{}}}, nil
}

func (m *MockSessionService) GetSession(ctx context.Context, pin string) (*service.SessionInfo, error) {
	if m.GetSessionFunc != nil {
		return m.GetSessionFunc(ctx, pin)
	}
	return &service.SessionInfo{Info: session.Info{Pin: pin, Players: []string{}}}, nil
}

func (m *MockSessionService) ListSessions(ctx context.Context, limit int) ([]*service.SessionInfo, error) {
	if m.ListSessionsFunc != nil {
		return m.ListSessionsFunc(ctx, limit)
	}
	return []*service.SessionInfo{}, nil
}

func (m *MockSessionService) Stats(ctx context.Context) (*service.Stats, error) {
	if m.StatsFunc != nil {
		return m.StatsFunc(ctx)
	}
	return &service.Stats{}, nil
}

func doRequest(t *testing.T, handler http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), "body: %s", w.Body.String())
}

func TestNewServer(t *testing.T) {
	server := NewServer(&MockSessionService{}, nil, nil, zerolog.Nop())

	require.NotNil(t, server)
	assert.NotNil(t, server.router)
	assert.Same(t, server.router, server.Router())
}

func TestHandleCreateSession(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		server := NewServer(&MockSessionService{}, nil, nil, zerolog.Nop())

		w := doRequest(t, server, "POST", "/api/sessions")

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		var info service.SessionInfo
		decodeBody(t, w, &info)
		assert.Equal(t, "123456", info.Pin)
	})

	t.Run("pin space exhausted", func(t *testing.T) {
		mock := &MockSessionService{
			CreateSessionFunc: func(ctx context.Context) (*service.SessionInfo, error) {
				return nil, fmt.Errorf("failed to create session: %w", session.ErrPinSpaceExhausted)
			},
		}
		server := NewServer(mock, nil, nil, zerolog.Nop())

		w := doRequest(t, server, "POST", "/api/sessions")

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		var body map[string]string
		decodeBody(t, w, &body)
		assert.Contains(t, body["error"], "no free session pin")
	})
}

func TestHandleListSessions(t *testing.T) {
	var gotLimit int
	mock := &MockSessionService{
		ListSessionsFunc: func(ctx context.Context, limit int) ([]*service.SessionInfo, error) {
			gotLimit = limit
			return []*service.SessionInfo{
				{Info: session.Info{Pin: "111111"}},
				{Info: session.Info{Pin: "222222"}},
			}, nil
		},
	}
	server := NewServer(mock, nil, nil, zerolog.Nop())

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantLimit  int
	}{
		{"no limit", "/api/sessions", http.StatusOK, 0},
		{"with limit", "/api/sessions?limit=5", http.StatusOK, 5},
		{"invalid limit", "/api/sessions?limit=abc", http.StatusBadRequest, -1},
		{"negative limit", "/api/sessions?limit=-2", http.StatusBadRequest, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotLimit = -1
			w := doRequest(t, server, "GET", tt.path)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantLimit, gotLimit)
			if tt.wantStatus == http.StatusOK {
				var body struct {
					Count    int                    `json:"count"`
					Sessions []*service.SessionInfo `json:"sessions"`
				}
				decodeBody(t, w, &body)
				assert.Equal(t, 2, body.Count)
				assert.Equal(t, "222222", body.Sessions[1].Pin)
			}
		})
	}
}

func TestHandleGetSession(t *testing.T) {
	mock := &MockSessionService{
		GetSessionFunc: func(ctx context.Context, pin string) (*service.SessionInfo, error) {
			switch pin {
			case "482913":
				return &service.SessionInfo{Info: session.Info{Pin: pin, HostID: "A", PlayerCount: 1, Players: []string{"B"}}}, nil
			case "bad":
				return nil, fmt.Errorf("%w: %q", service.ErrInvalidPin, pin)
			case "999999":
				return nil, fmt.Errorf("%w: %s", service.ErrSessionNotFound, pin)
			default:
				return nil, errors.New("boom")
			}
		},
	}
	server := NewServer(mock, nil, nil, zerolog.Nop())

	tests := []struct {
		name       string
		pin        string
		wantStatus int
	}{
		{"found", "482913", http.StatusOK},
		{"malformed pin", "bad", http.StatusBadRequest},
		{"unknown pin", "999999", http.StatusNotFound},
		{"internal error", "000000", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, server, "GET", "/api/sessions/"+tt.pin)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}

	w := doRequest(t, server, "GET", "/api/sessions/482913")
	var info service.SessionInfo
	decodeBody(t, w, &info)
	assert.Equal(t, "A", info.HostID)
	assert.Equal(t, []string{"B"}, info.Players)
}

func TestHandleStats(t *testing.T) {
	mock := &MockSessionService{
		StatsFunc: func(ctx context.Context) (*service.Stats, error) {
			return &service.Stats{Sessions: 2, Participants: 5, Hosts: 2, Connections: 6, Subscriptions: 5}, nil
		},
	}
	server := NewServer(mock, nil, nil, zerolog.Nop())

	w := doRequest(t, server, "GET", "/api/stats")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"sessions":2,"participants":5,"hosts":2,"connections":6,"subscriptions":5}`, w.Body.String())
}

func TestHealthAndMetrics(t *testing.T) {
	m := metrics.NewMetrics()
	m.SessionCreated()
	server := NewServer(&MockSessionService{}, nil, m, zerolog.Nop())

	w := doRequest(t, server, "GET", "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())

	w = doRequest(t, server, "GET", "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "quiz_sessions_created_total 1")

	t.Run("metrics disabled", func(t *testing.T) {
		bare := NewServer(&MockSessionService{}, nil, nil, zerolog.Nop())
		assert.Equal(t, http.StatusNotFound, doRequest(t, bare, "GET", "/metrics").Code)
	})
}

func TestHandleWebSocketWithoutHub(t *testing.T) {
	server := NewServer(&MockSessionService{}, nil, nil, zerolog.Nop())
	w := doRequest(t, server, "GET", "/ws")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	server := NewServer(&MockSessionService{}, nil, nil, zerolog.Nop())
	for _, method := range []string{"DELETE", "PUT", "PATCH"} {
		t.Run(method, func(t *testing.T) {
			w := doRequest(t, server, method, "/api/sessions")
			assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
			assert.Equal(t, "GET, POST", w.Header().Get("Allow"))
			assert.JSONEq(t, `{"error":"method not allowed"}`, w.Body.String())
		})
	}
}

// relayStack wires the real registry, hub and relay behind an httptest server
type relayStack struct {
	registry *session.Registry
	hub      *websocket.Hub
	server   *httptest.Server
}

func newRelayStack(t *testing.T, opts ...session.Option) *relayStack {
	t.Helper()
	logger := zerolog.Nop()
	m := metrics.NewMetrics()

	registry := session.NewRegistry(logger, append([]session.Option{session.WithMetrics(m)}, opts...)...)
	hub := websocket.NewHub(websocket.Options{}, m, logger)
	events := relay.NewEventHandler(registry, hub, m, logger)
	actions := relay.NewActionRelay(registry, hub, m, logger)
	hub.SetListener(relay.NewDispatcher(events, actions, logger))

	svc := service.NewSessionService(registry, hub, logger)
	server := httptest.NewServer(NewServer(svc, hub, m, logger))
	t.Cleanup(server.Close)

	return &relayStack{registry: registry, hub: hub, server: server}
}

// wsClient is a test participant connected over a real websocket
type wsClient struct {
	t    *testing.T
	conn *gws.Conn
	id   string
}

func (s *relayStack) connect(t *testing.T) *wsClient {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws"
	conn, _, err := gws.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	c := &wsClient{t: t, conn: conn}
	hello := c.next()
	require.Equal(t, websocket.FrameConnected, hello.Type)
	c.id = hello.ConnectionID
	return c
}

func (c *wsClient) next() websocket.ServerFrame {
	c.t.Helper()
	var frame websocket.ServerFrame
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(c.t, c.conn.ReadJSON(&frame))
	return frame
}

// expect reads frames until one arrives for destination
func (c *wsClient) expect(destination string) json.RawMessage {
	c.t.Helper()
	for i := 0; i < 10; i++ {
		frame := c.next()
		if frame.Destination == destination {
			return frame.Payload
		}
	}
	c.t.Fatalf("no frame for %s", destination)
	return nil
}

func (c *wsClient) send(frame websocket.ClientFrame) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteJSON(frame))
}

func TestRelayOverWebSocket(t *testing.T) {
	stack := newRelayStack(t, session.WithPinGenerator(func() (string, error) { return "482913", nil }))

	resp, err := http.Post(stack.server.URL+"/api/sessions", "application/json", nil)
	require.NoError(t, err)
	var created service.SessionInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "482913", created.Pin)

	host := stack.connect(t)
	host.send(websocket.ClientFrame{Command: websocket.CommandSubscribe, Destination: created.Channels.Host})
	assert.JSONEq(t,
		fmt.Sprintf(`{"type":"host-assigned","isHost":true,"clientId":%q}`, host.id),
		string(host.expect(relay.PrivateQueue)))
	assert.JSONEq(t,
		fmt.Sprintf(`{"type":"participant-joined","playerCount":0,"hostId":%q}`, host.id),
		string(host.expect(created.Channels.Host)))

	player := stack.connect(t)
	player.send(websocket.ClientFrame{Command: websocket.CommandSubscribe, Destination: created.Channels.Players})
	assert.JSONEq(t,
		fmt.Sprintf(`{"type":"player-assigned","isHost":false,"clientId":%q}`, player.id),
		string(player.expect(relay.PrivateQueue)))
	assert.JSONEq(t,
		fmt.Sprintf(`{"type":"participant-joined","playerCount":1,"hostId":%q}`, host.id),
		string(player.expect(created.Channels.Players)))
	assert.JSONEq(t,
		fmt.Sprintf(`{"type":"participant-joined","playerCount":1,"hostId":%q}`, host.id),
		string(host.expect(created.Channels.Host)))

	player.send(websocket.ClientFrame{
		Command:     websocket.CommandSend,
		Destination: created.Channels.Action,
		Payload:     json.RawMessage(`[{"data":{"choice":2}}]`),
	})
	assert.JSONEq(t,
		fmt.Sprintf(`[{"data":{"choice":2,"cid":%q}}]`, player.id),
		string(host.expect(created.Channels.Host)))

	host.send(websocket.ClientFrame{
		Command:     websocket.CommandSend,
		Destination: created.Channels.Action,
		Payload:     json.RawMessage(`"[{\"data\":{\"question\":1}}]"`),
	})
	assert.JSONEq(t,
		fmt.Sprintf(`[{"data":{"question":1,"cid":%q}}]`, host.id),
		string(player.expect(created.Channels.Players)))

	player.conn.Close()
	assert.JSONEq(t,
		fmt.Sprintf(`{"type":"participant-left","playerCount":0,"hostId":%q}`, host.id),
		string(host.expect(created.Channels.Host)))

	w, err := http.Get(stack.server.URL + "/api/sessions/482913")
	require.NoError(t, err)
	var info service.SessionInfo
	require.NoError(t, json.NewDecoder(w.Body).Decode(&info))
	w.Body.Close()
	assert.Equal(t, host.id, info.HostID)
	assert.Zero(t, info.PlayerCount)

	host.conn.Close()
	require.Eventually(t, func() bool { return stack.registry.Count() == 0 }, 2*time.Second, 10*time.Millisecond)

	w, err = http.Get(stack.server.URL + "/api/sessions/482913")
	require.NoError(t, err)
	w.Body.Close()
	assert.Equal(t, http.StatusNotFound, w.StatusCode)
}
