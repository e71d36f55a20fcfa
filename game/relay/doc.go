// Package relay coordinates roles and relays game actions for live quiz
// sessions.
//
// The relay package implements:
//   - Host/player assignment on channel subscription
//   - Roster notifications on join and leave
//   - Action relay between host and players with sender tagging
//
// Channels:
//
//	/topic/player/{pin}   broadcast to all players of a session
//	/topic/host/{pin}     delivered to the session's host
//	/app/action/{pin}     clients send actions here
//	/user/queue/session   private role confirmations
//
// Message Protocol:
//
// Actions are JSON arrays of objects with a "data" object. The relay adds a
// "cid" field holding the sender's connection id and republishes each message
// as its own one-element array:
//
//	in:  [{"data":{"choice":2}}]
//	out: [{"data":{"choice":2,"cid":"B"}}]
//
// Notifications are JSON objects with a "type" of host-assigned,
// player-assigned, participant-joined or participant-left.
//
// Host Failover:
//
// When the host disconnects the session stays alive without a host. No player
// is promoted; the next connection that subscribes and is not already a
// player becomes the new host.
//
// Concurrency:
//
// EventHandler, ActionRelay and Dispatcher hold no mutable state of their own
// and may be called from any number of connection goroutines. All shared
// state lives in the session registry.
package relay
