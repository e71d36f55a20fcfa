package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wricardo/quizrelay/game/service"
	"github.com/wricardo/quizrelay/game/session"
	"github.com/wricardo/quizrelay/transport/websocket"
)

// sequentialPins hands out 100001, 100002, ...
func sequentialPins() session.PinGenerator {
	next := 100000
	return func() (string, error) {
		next++
		return fmt.Sprintf("%06d", next), nil
	}
}

// MockConnectionStats implements service.ConnectionStats for testing
type MockConnectionStats struct {
	stats websocket.Stats
}

func (m *MockConnectionStats) Stats() websocket.Stats {
	return m.stats
}

// failingStore implements service.SessionStore with a broken pin source
type failingStore struct{}

func (failingStore) CreateSession() (string, error)                  { return "", session.ErrPinSpaceExhausted }
func (failingStore) GetSession(pin string) (*session.Session, bool) { return nil, false }
func (failingStore) List() []session.Info                           { return nil }
func (failingStore) Count() int                                     { return 0 }

func newTestService(t *testing.T) (service.SessionService, *session.Registry, *MockConnectionStats) {
	t.Helper()
	registry := session.NewRegistry(zerolog.Nop(), session.WithPinGenerator(sequentialPins()))
	conns := &MockConnectionStats{}
	return service.NewSessionService(registry, conns, zerolog.Nop()), registry, conns
}

func TestSessionService_CreateSession(t *testing.T) {
	svc, registry, _ := newTestService(t)
	ctx := context.Background()

	info, err := svc.CreateSession(ctx)
	require.NoError(t, err)

	assert.Equal(t, "100001", info.Pin)
	assert.Empty(t, info.HostID)
	assert.Zero(t, info.PlayerCount)
	assert.Equal(t, service.Channels{
		Players: "/topic/player/100001",
		Host:    "/topic/host/100001",
		Action:  "/app/action/100001",
		Private: "/user/queue/session",
	}, info.Channels)
	assert.Equal(t, 1, registry.Count())

	t.Run("store failure is wrapped", func(t *testing.T) {
		broken := service.NewSessionService(failingStore{}, nil, zerolog.Nop())
		_, err := broken.CreateSession(ctx)
		assert.ErrorIs(t, err, session.ErrPinSpaceExhausted)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := svc.CreateSession(cancelled)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, registry.Count())
	})
}

func TestSessionService_GetSession(t *testing.T) {
	svc, registry, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateSession(ctx)
	require.NoError(t, err)
	require.True(t, registry.TrySetHost(created.Pin, "host-1"))
	require.True(t, registry.AddParticipant(created.Pin, "player-2"))
	require.True(t, registry.AddParticipant(created.Pin, "player-1"))

	tests := []struct {
		name    string
		pin     string
		wantErr error
	}{
		{"existing session", created.Pin, nil},
		{"unknown pin", "999999", service.ErrSessionNotFound},
		{"short pin", "123", service.ErrInvalidPin},
		{"non numeric pin", "12a456", service.ErrInvalidPin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := svc.GetSession(ctx, tt.pin)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				assert.Nil(t, info)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "host-1", info.HostID)
			assert.Equal(t, 2, info.PlayerCount)
			assert.Equal(t, []string{"player-1", "player-2"}, info.Players)
		})
	}
}

func TestSessionService_ListSessions(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.CreateSession(ctx)
		require.NoError(t, err)
	}

	all, err := svc.ListSessions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "100001", all[0].Pin)
	assert.Equal(t, "/topic/player/100003", all[2].Channels.Players)

	limited, err := svc.ListSessions(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestSessionService_Stats(t *testing.T) {
	svc, registry, conns := newTestService(t)
	ctx := context.Background()

	first, err := svc.CreateSession(ctx)
	require.NoError(t, err)
	_, err = svc.CreateSession(ctx)
	require.NoError(t, err)

	registry.TrySetHost(first.Pin, "A")
	registry.AddParticipant(first.Pin, "B")
	registry.AddParticipant(first.Pin, "C")
	conns.stats = websocket.Stats{Connections: 3, Destinations: 2, Subscriptions: 3}

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &service.Stats{
		Sessions:      2,
		Participants:  3,
		Hosts:         1,
		Connections:   3,
		Subscriptions: 3,
	}, stats)

	t.Run("without transport", func(t *testing.T) {
		bare := service.NewSessionService(registry, nil, zerolog.Nop())
		stats, err := bare.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.Sessions)
		assert.Zero(t, stats.Connections)
	})
}
