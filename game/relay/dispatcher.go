package relay

import (
	"github.com/rs/zerolog"
)

// Dispatcher routes transport callbacks to the event handler and the action
// relay. It is safe for concurrent use by many connection goroutines.
type Dispatcher struct {
	events  *EventHandler
	actions *ActionRelay
	logger  zerolog.Logger
}

// NewDispatcher creates a dispatcher
func NewDispatcher(events *EventHandler, actions *ActionRelay, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		events:  events,
		actions: actions,
		logger:  logger,
	}
}

// Subscribed is called after a connection subscribed to destination.
func (d *Dispatcher) Subscribed(connID, destination string) {
	defer d.recoverEvent("subscribed", connID)

	if err := d.events.HandleSubscribed(connID, destination); err != nil {
		d.logger.Error().Err(err).Str("destination", destination).Msg("Subscribe event rejected")
	}
}

// Disconnected is called once a connection has gone away.
func (d *Dispatcher) Disconnected(connID string) {
	defer d.recoverEvent("disconnected", connID)

	if err := d.events.HandleDisconnected(connID); err != nil {
		d.logger.Error().Err(err).Msg("Disconnect event rejected")
	}
}

// Received is called for every payload a connection sends. Only action
// destinations are relayed.
func (d *Dispatcher) Received(connID, destination string, payload []byte) {
	defer d.recoverEvent("received", connID)

	segment, pin, ok := ParseDestination(destination)
	if !ok || segment != SegmentAction {
		d.logger.Debug().
			Str("connectionId", connID).
			Str("destination", destination).
			Msg("Ignoring message to non-action destination")
		return
	}
	d.actions.Relay(pin, connID, payload)
}

// recoverEvent confines a panic to the event that caused it.
func (d *Dispatcher) recoverEvent(event, connID string) {
	if r := recover(); r != nil {
		d.logger.Error().
			Interface("panic", r).
			Str("event", event).
			Str("connectionId", connID).
			Msg("Event handler panicked")
	}
}
