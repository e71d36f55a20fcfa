// Package session provides the live session registry for the quiz relay.
//
// The session package implements:
//   - Unique 6-digit pin generation
//   - Host assignment ("first subscriber becomes host")
//   - Player membership tracking
//   - Session teardown once the last participant leaves
//
// Core Types:
//
// Registry owns every live session. Session holds the host connection id and
// the player set of one game, guarded by its own mutex.
//
// Concurrency:
//
// The registry keys sessions by pin in a sync.Map so lookups never take a
// global lock. All role and membership changes for a session happen under
// that session's mutex, which makes the host check-then-set, the host/player
// disjointness check and the empty-then-delete transition atomic. Contention
// is scoped to a single session.
//
// Usage:
//
//	registry := session.NewRegistry(logger)
//
//	pin, err := registry.CreateSession()
//	if err != nil {
//		return err
//	}
//
//	if registry.TrySetHost(pin, connID) {
//		// connID controls the game
//	} else {
//		registry.AddParticipant(pin, connID)
//	}
//
//	// on disconnect
//	if pin, ok := registry.RemoveParticipant(connID); ok {
//		// notify remaining participants of pin
//	}
//
// Unknown pins are expected (late messages after teardown) and are reported
// as absent or false, never as errors.
package session
