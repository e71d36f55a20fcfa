package relay

import (
	"regexp"
)

// Destination prefixes shared with clients.
const (
	PlayersChannelPrefix = "/topic/player/"
	HostChannelPrefix    = "/topic/host/"
	ActionPrefix         = "/app/action/"

	// PrivateQueue is delivered only to the connection it is addressed to.
	PrivateQueue = "/user/queue/session"
)

// Channel segments that may precede a pin in a destination.
const (
	SegmentPlayer = "player"
	SegmentHost   = "host"
	SegmentAction = "action"
)

var pinDestination = regexp.MustCompile(`/(player|host|action)/(\d{6})$`)

// PlayersChannel returns the broadcast channel all players of pin receive.
func PlayersChannel(pin string) string {
	return PlayersChannelPrefix + pin
}

// HostChannel returns the channel the host of pin receives.
func HostChannel(pin string) string {
	return HostChannelPrefix + pin
}

// ActionDestination returns where clients send actions for pin.
func ActionDestination(pin string) string {
	return ActionPrefix + pin
}

// ParseDestination extracts the channel segment and pin from a destination.
// ok is false for destinations that do not address a session.
func ParseDestination(destination string) (segment, pin string, ok bool) {
	m := pinDestination.FindStringSubmatch(destination)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}
