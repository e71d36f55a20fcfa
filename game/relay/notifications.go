package relay

// Notification types published to clients.
const (
	TypeHostAssigned      = "host-assigned"
	TypePlayerAssigned    = "player-assigned"
	TypeParticipantJoined = "participant-joined"
	TypeParticipantLeft   = "participant-left"
)

// Assignment is the private confirmation of a connection's role.
type Assignment struct {
	Type     string `json:"type"`
	IsHost   bool   `json:"isHost"`
	ClientID string `json:"clientId"`
}

// RosterUpdate announces a membership change to a session's channels.
type RosterUpdate struct {
	Type        string `json:"type"`
	PlayerCount int    `json:"playerCount"`
	HostID      string `json:"hostId"`
}
