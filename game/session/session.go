package session

import (
	"sort"
	"sync"
	"time"
)

// Role tags the sender of an action relative to a session.
type Role int

const (
	// RolePlayer is any connection that is not the session's host.
	RolePlayer Role = iota
	// RoleHost is the single connection controlling the session.
	RoleHost
)

// String returns the role name used in logs and metrics.
func (r Role) String() string {
	if r == RoleHost {
		return "host"
	}
	return "player"
}

// Sender is the resolved role of a connection within a session, together with
// the host it would address.
type Sender struct {
	Role         Role
	ConnectionID string
	HostID       string
}

// IsHost reports whether the sender is the session's host.
func (s Sender) IsHost() bool {
	return s.Role == RoleHost
}

// Info is a point-in-time snapshot of a session.
type Info struct {
	Pin         string    `json:"pin"`
	HostID      string    `json:"hostId"`
	Players     []string  `json:"players"`
	PlayerCount int       `json:"playerCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Session is one live game instance.
type Session struct {
	Pin       string
	CreatedAt time.Time

	mu      sync.Mutex
	hostID  string
	players map[string]struct{}
	removed bool
}

func newSession(pin string, createdAt time.Time) *Session {
	return &Session{
		Pin:       pin,
		CreatedAt: createdAt,
		players:   make(map[string]struct{}),
	}
}

// HostID returns the current host connection id, or "" when hostless.
func (s *Session) HostID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hostID
}

// HasPlayer reports whether connID is enrolled as a player.
func (s *Session) HasPlayer(connID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.players[connID]
	return ok
}

// PlayerCount returns the number of enrolled players.
func (s *Session) PlayerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.players)
}

// Roster returns the host id and player count as one consistent read.
func (s *Session) Roster() (hostID string, playerCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hostID, len(s.players)
}

// Players returns the enrolled player ids in sorted order.
func (s *Session) Players() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedPlayers()
}

// Info returns a snapshot of the session.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		Pin:         s.Pin,
		HostID:      s.hostID,
		Players:     s.sortedPlayers(),
		PlayerCount: len(s.players),
		CreatedAt:   s.CreatedAt,
	}
}

func (s *Session) sortedPlayers() []string {
	ids := make([]string, 0, len(s.players))
	for id := range s.players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// claimHost assigns connID as host when the slot is free. A connection that
// already plays in this session is never promoted. assigned is true only for
// the call that changed the host.
func (s *Session) claimHost(connID string) (isHost, assigned bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.removed {
		return false, false
	}
	if s.hostID == connID {
		return true, false
	}
	if s.hostID != "" {
		return false, false
	}
	if _, ok := s.players[connID]; ok {
		return false, false
	}
	s.hostID = connID
	return true, true
}

func (s *Session) enroll(connID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.removed || s.hostID == connID {
		return false
	}
	s.players[connID] = struct{}{}
	return true
}

// release drops connID from whichever role it holds. When that leaves the
// session without host and players the session is marked removed and empty
// is true; the caller must then delete it from the registry.
func (s *Session) release(connID string) (held, empty bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.removed {
		return false, false
	}
	if s.hostID == connID {
		s.hostID = ""
		held = true
	} else if _, ok := s.players[connID]; ok {
		delete(s.players, connID)
		held = true
	}
	if held && s.hostID == "" && len(s.players) == 0 {
		s.removed = true
		empty = true
	}
	return held, empty
}

func (s *Session) resolve(connID string) (Sender, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.removed {
		return Sender{}, false
	}
	sender := Sender{Role: RolePlayer, ConnectionID: connID, HostID: s.hostID}
	if s.hostID != "" && s.hostID == connID {
		sender.Role = RoleHost
	}
	return sender, true
}
