package radio

import (
	"log/slog"
	"net"
	"strconv"
)

// State is the connection state of a Radio. It is exactly one of
// Uninitialized, Idle, Joined or Bound, so a bound UDP target without a
// joined network cannot be represented.
type State interface {
	String() string
	isState()
}

// Uninitialized means the last reset handshake did not succeed.
type Uninitialized struct{}

// Idle means the radio is reset and in station mode, but not associated.
type Idle struct{}

// Joined means the radio is associated with Network.
type Joined struct {
	Network Network
}

// Bound means the radio is associated with Network and socket 0 targets Target.
type Bound struct {
	Network Network
	Target  Target
}

func (Uninitialized) isState() {}
func (Idle) isState() {}
func (Joined) isState() {}
func (Bound) isState() {}

func (Uninitialized) String() string { return "uninitialized" }
func (Idle) String() string { return "idle" }
func (s Joined) String() string { return "joined " + s.Network.SSID }
func (s Bound) String() string { return "bound " + s.Network.SSID + " " + s.Target.String() }

// Network holds the credentials of an access point.
type Network struct {
	SSID     string
	Password string
}

// LogValue keeps the password out of logs.
func (n Network) LogValue() slog.Value {
	return slog.StringValue(n.SSID)
}

// Target is a UDP destination.
type Target struct {
	Host string
	Port int
}

func (t Target) String() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// networkOf returns the joined network of s, if any.
func networkOf(s State) (Network, bool) {
	switch s := s.(type) {
	case Joined:
		return s.Network, true
	case Bound:
		return s.Network, true
	default:
		return Network{}, false
	}
}

// Associated reports whether s has a joined network.
func Associated(s State) bool {
	_, ok := networkOf(s)
	return ok
}
