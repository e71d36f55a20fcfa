package service

import (
	"github.com/wricardo/quizrelay/game/relay"
	"github.com/wricardo/quizrelay/game/session"
)

// SessionInfo describes a session together with the destinations clients
// use to join it
type SessionInfo struct {
	session.Info
	Channels Channels `json:"channels"`
}

// Channels lists the pub/sub destinations of one session
type Channels struct {
	Players string `json:"players"`
	Host    string `json:"host"`
	Action  string `json:"action"`
	Private string `json:"private"`
}

// Stats is a snapshot of server occupancy
type Stats struct {
	Sessions      int `json:"sessions"`
	Participants  int `json:"participants"`
	Hosts         int `json:"hosts"`
	Connections   int `json:"connections"`
	Subscriptions int `json:"subscriptions"`
}

func newSessionInfo(info session.Info) *SessionInfo {
	return &SessionInfo{
		Info: info,
		Channels: Channels{
			Players: relay.PlayersChannel(info.Pin),
			Host:    relay.HostChannel(info.Pin),
			Action:  relay.ActionDestination(info.Pin),
			Private: relay.PrivateQueue,
		},
	}
}
