// Package service provides the business logic layer for the quiz relay
// server.
//
// The service package implements:
//   - Session creation with fresh pins
//   - Session lookup and listing
//   - Server occupancy statistics
//
// Core Interfaces:
//
// SessionService is the main service interface used by the REST API and the
// MCP tools. SessionStore is the registry contract it depends on and
// ConnectionStats reports transport occupancy.
//
// Architecture:
//
// The service layer sits between the outer surfaces (HTTP and MCP) and the
// session registry. Live relay traffic does not pass through it: host
// assignment and action relay run on the websocket path in package relay.
//
// Usage:
//
//	registry := session.NewRegistry(logger)
//	sessionService := service.NewSessionService(registry, hub, logger)
//
//	info, err := sessionService.CreateSession(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(info.Pin, info.Channels.Players)
package service
