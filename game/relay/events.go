package relay

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"
	"github.com/wricardo/quizrelay/game/session"
	"github.com/wricardo/quizrelay/internal/metrics"
)

// ErrMissingConnectionID is returned for events without a connection id.
var ErrMissingConnectionID = errors.New("connection id is required")

// Publisher delivers payloads to clients. Delivery is best effort.
type Publisher interface {
	// Publish fans payload out to every subscriber of destination.
	Publish(destination string, payload []byte)
	// SendToConnection delivers payload to a single connection only.
	SendToConnection(connectionID, destination string, payload []byte)
}

// EventHandler reacts to transport subscribe and disconnect events, assigns
// host and player roles and keeps participants informed of the roster.
type EventHandler struct {
	registry  *session.Registry
	publisher Publisher
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// NewEventHandler creates an event handler
func NewEventHandler(registry *session.Registry, publisher Publisher, m *metrics.Metrics, logger zerolog.Logger) *EventHandler {
	return &EventHandler{
		registry:  registry,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// HandleSubscribed assigns a role to connID when destination addresses a
// live session. The first subscriber of a hostless session becomes host;
// everyone else is enrolled as a player.
func (h *EventHandler) HandleSubscribed(connID, destination string) error {
	if connID == "" {
		return ErrMissingConnectionID
	}

	_, pin, ok := ParseDestination(destination)
	if !ok {
		return nil
	}

	logger := h.logger.With().Str("pin", pin).Str("connectionId", connID).Logger()

	sess, ok := h.registry.GetSession(pin)
	if !ok {
		logger.Warn().Str("destination", destination).Msg("Subscription to unknown session ignored")
		return nil
	}

	switch {
	case sess.HostID() == "" && h.registry.TrySetHost(pin, connID):
		logger.Info().Msg("Host assigned")
		h.sendAssignment(connID, TypeHostAssigned, true)

	case sess.HasPlayer(connID):
		logger.Debug().Msg("Player already enrolled")

	case h.registry.AddParticipant(pin, connID):
		logger.Info().Msg("Player joined")
		h.sendAssignment(connID, TypePlayerAssigned, false)

	default:
		// Already the host (redelivered event) or the session just ended.
		logger.Debug().Msg("No role change for subscription")
	}

	// The pin may have been released and reissued to a new session meanwhile.
	if live, ok := h.registry.GetSession(pin); !ok || live != sess {
		return nil
	}
	h.broadcastRoster(pin, sess, TypeParticipantJoined)
	return nil
}

// HandleDisconnected releases every role connID holds and notifies the
// remaining participants of each affected session.
func (h *EventHandler) HandleDisconnected(connID string) error {
	if connID == "" {
		return ErrMissingConnectionID
	}

	for {
		pin, ok := h.registry.RemoveParticipant(connID)
		if !ok {
			return nil
		}

		logger := h.logger.With().Str("pin", pin).Str("connectionId", connID).Logger()

		sess, live := h.registry.GetSession(pin)
		if !live {
			logger.Info().Msg("Last participant left, session closed")
			h.publishRoster(pin, RosterUpdate{Type: TypeParticipantLeft})
			continue
		}

		logger.Info().Msg("Participant left")
		h.broadcastRoster(pin, sess, TypeParticipantLeft)
	}
}

func (h *EventHandler) sendAssignment(connID, kind string, isHost bool) {
	payload, err := json.Marshal(Assignment{Type: kind, IsHost: isHost, ClientID: connID})
	if err != nil {
		h.logger.Error().Err(err).Str("type", kind).Msg("Failed to marshal assignment")
		return
	}
	h.publisher.SendToConnection(connID, PrivateQueue, payload)
	h.metrics.NotificationSent(kind)
}

func (h *EventHandler) broadcastRoster(pin string, sess *session.Session, kind string) {
	hostID, playerCount := sess.Roster()
	h.publishRoster(pin, RosterUpdate{Type: kind, PlayerCount: playerCount, HostID: hostID})
}

func (h *EventHandler) publishRoster(pin string, update RosterUpdate) {
	payload, err := json.Marshal(update)
	if err != nil {
		h.logger.Error().Err(err).Str("type", update.Type).Msg("Failed to marshal roster update")
		return
	}

	h.publisher.Publish(PlayersChannel(pin), payload)
	if update.HostID != "" {
		h.publisher.Publish(HostChannel(pin), payload)
	}
	h.metrics.NotificationSent(update.Type)
}
