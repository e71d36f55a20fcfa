package relay

import (
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"github.com/wricardo/quizrelay/game/session"
	"github.com/wricardo/quizrelay/internal/metrics"
)

// senderField is injected into each message's data object.
const senderField = "data.cid"

// ActionRelay forwards game actions between a session's host and players,
// tagging each message with the sender's connection id.
type ActionRelay struct {
	registry  *session.Registry
	publisher Publisher
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// NewActionRelay creates an action relay
func NewActionRelay(registry *session.Registry, publisher Publisher, m *metrics.Metrics, logger zerolog.Logger) *ActionRelay {
	return &ActionRelay{
		registry:  registry,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// Relay publishes each message of the JSON array payload to the opposite
// role's channel: host messages go to the players channel, everything else
// to the host channel. It returns the number of messages published.
//
// Nothing is reported back to the sender. Malformed batches, unknown
// sessions and hostless sessions are logged and dropped; a message without a
// data object is skipped without affecting the rest of the batch.
func (a *ActionRelay) Relay(pin, connID string, payload []byte) int {
	logger := a.logger.With().Str("pin", pin).Str("connectionId", connID).Logger()

	if !gjson.ValidBytes(payload) {
		logger.Warn().Msg("Dropping action: payload is not valid JSON")
		a.metrics.MessageDropped(metrics.DropMalformed)
		return 0
	}
	batch := gjson.ParseBytes(payload)
	if !batch.IsArray() {
		logger.Warn().Msg("Dropping action: payload is not a JSON array")
		a.metrics.MessageDropped(metrics.DropMalformed)
		return 0
	}
	messages := batch.Array()
	if len(messages) == 0 {
		logger.Warn().Msg("Dropping action: empty batch")
		a.metrics.MessageDropped(metrics.DropMalformed)
		return 0
	}

	sender, ok := a.registry.Sender(pin, connID)
	if !ok {
		logger.Warn().Msg("Dropping action for unknown session")
		a.metrics.MessageDropped(metrics.DropUnknownSession)
		return 0
	}

	destination := PlayersChannel(pin)
	if !sender.IsHost() {
		if sender.HostID == "" {
			logger.Warn().Int("messages", len(messages)).Msg("Dropping action: session has no host")
			a.metrics.MessageDropped(metrics.DropNoHost)
			return 0
		}
		destination = HostChannel(pin)
	}

	relayed := 0
	for i, msg := range messages {
		if !msg.Get("data").IsObject() {
			logger.Warn().Int("index", i).Msg("Skipping message without data object")
			a.metrics.MessageDropped(metrics.DropMissingData)
			continue
		}

		enriched, err := sjson.SetBytes([]byte(msg.Raw), senderField, connID)
		if err != nil {
			logger.Error().Err(err).Int("index", i).Msg("Failed to tag message with sender")
			a.metrics.MessageDropped(metrics.DropMalformed)
			continue
		}

		out := make([]byte, 0, len(enriched)+2)
		out = append(out, '[')
		out = append(out, enriched...)
		out = append(out, ']')

		a.publisher.Publish(destination, out)
		a.metrics.MessageRelayed(sender.Role.String())
		relayed++
	}

	logger.Debug().
		Str("sender", sender.Role.String()).
		Str("destination", destination).
		Int("relayed", relayed).
		Int("received", len(messages)).
		Msg("Relayed action batch")
	return relayed
}
