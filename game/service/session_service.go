package service

import (
	"context"
	"errors"

	"github.com/wricardo/quizrelay/game/session"
	"github.com/wricardo/quizrelay/transport/websocket"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidPin      = errors.New("invalid session pin")
)

// SessionService defines the session operations exposed to the REST API and
// MCP tools
type SessionService interface {
	CreateSession(ctx context.Context) (*SessionInfo, error)
	GetSession(ctx context.Context, pin string) (*SessionInfo, error)
	ListSessions(ctx context.Context, limit int) ([]*SessionInfo, error)
	Stats(ctx context.Context) (*Stats, error)
}

// SessionStore defines the registry operations the service needs
type SessionStore interface {
	CreateSession() (string, error)
	GetSession(pin string) (*session.Session, bool)
	List() []session.Info
	Count() int
}

// ConnectionStats reports transport occupancy
type ConnectionStats interface {
	Stats() websocket.Stats
}
