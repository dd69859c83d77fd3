package camera

type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
	Error
	Closed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Error:
		return "error"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

type StateChange struct {
	Previous State
	Current  State
	Err      string
}
