package client

// State is the connection lifecycle state of a client. Within one
// connection lifecycle it moves Disconnected → Connecting → Connected →
// Disconnecting → Disconnected; an unexpected transport loss collapses
// Connected → Disconnected directly.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	Disconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}
