package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/wricardo/quizrelay/game/session"
)

// sessionServiceImpl implements the SessionService interface
type sessionServiceImpl struct {
	sessions    SessionStore
	connections ConnectionStats
	logger      zerolog.Logger
}

// NewSessionService creates a new session service instance. connections may
// be nil when no transport is attached.
func NewSessionService(sessions SessionStore, connections ConnectionStats, logger zerolog.Logger) SessionService {
	return &sessionServiceImpl{
		sessions:    sessions,
		connections: connections,
		logger:      logger,
	}
}

// CreateSession allocates a new session pin
func (s *sessionServiceImpl) CreateSession(ctx context.Context) (*SessionInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pin, err := s.sessions.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	sess, ok := s.sessions.GetSession(pin)
	if !ok {
		return nil, fmt.Errorf("session %s vanished after creation: %w", pin, ErrSessionNotFound)
	}

	s.logger.Info().Str("pin", pin).Msg("Session created")
	return newSessionInfo(sess.Info()), nil
}

// GetSession retrieves session information by pin
func (s *sessionServiceImpl) GetSession(ctx context.Context, pin string) (*SessionInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !session.ValidPin(pin) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPin, pin)
	}

	sess, ok := s.sessions.GetSession(pin)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, pin)
	}
	return newSessionInfo(sess.Info()), nil
}

// ListSessions returns live sessions oldest first. A positive limit caps the
// result.
func (s *sessionServiceImpl) ListSessions(ctx context.Context, limit int) ([]*SessionInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	infos := s.sessions.List()
	if limit > 0 && len(infos) > limit {
		infos = infos[:limit]
	}

	result := make([]*SessionInfo, 0, len(infos))
	for _, info := range infos {
		result = append(result, newSessionInfo(info))
	}
	return result, nil
}

// Stats aggregates registry and transport counts
func (s *sessionServiceImpl) Stats(ctx context.Context) (*Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stats := &Stats{Sessions: s.sessions.Count()}
	for _, info := range s.sessions.List() {
		stats.Participants += info.PlayerCount
		if info.HostID != "" {
			stats.Hosts++
			stats.Participants++
		}
	}

	if s.connections != nil {
		hub := s.connections.Stats()
		stats.Connections = hub.Connections
		stats.Subscriptions = hub.Subscriptions
	}
	return stats, nil
}
