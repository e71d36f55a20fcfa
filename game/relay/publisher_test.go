package relay

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/wricardo/quizrelay/game/session"
)

type delivery struct {
	// ConnectionID is set for private deliveries only.
	ConnectionID string
	Destination  string
	Payload      string
}

// recordingPublisher captures everything the relay publishes.
type recordingPublisher struct {
	mu         sync.Mutex
	deliveries []delivery
}

func (p *recordingPublisher) Publish(destination string, payload []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deliveries = append(p.deliveries, delivery{Destination: destination, Payload: string(payload)})
}

func (p *recordingPublisher) SendToConnection(connectionID, destination string, payload []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deliveries = append(p.deliveries, delivery{
		ConnectionID: connectionID,
		Destination:  destination,
		Payload:      string(payload),
	})
}

func (p *recordingPublisher) to(destination string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, d := range p.deliveries {
		if d.ConnectionID == "" && d.Destination == destination {
			out = append(out, d.Payload)
		}
	}
	return out
}

func (p *recordingPublisher) private(connID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, d := range p.deliveries {
		if d.ConnectionID == connID {
			out = append(out, d.Payload)
		}
	}
	return out
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deliveries = nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.deliveries)
}

type fixture struct {
	registry *session.Registry
	pub      *recordingPublisher
	events   *EventHandler
	relay    *ActionRelay
	dispatch *Dispatcher
}

func newFixture(opts ...session.Option) *fixture {
	logger := zerolog.Nop()
	registry := session.NewRegistry(logger, opts...)
	pub := &recordingPublisher{}
	events := NewEventHandler(registry, pub, nil, logger)
	actions := NewActionRelay(registry, pub, nil, logger)
	return &fixture{
		registry: registry,
		pub:      pub,
		events:   events,
		relay:    actions,
		dispatch: NewDispatcher(events, actions, logger),
	}
}

func decodeRoster(t *testing.T, payload string) RosterUpdate {
	t.Helper()
	var update RosterUpdate
	require.NoError(t, json.Unmarshal([]byte(payload), &update))
	return update
}
