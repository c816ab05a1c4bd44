package smdevice

// State is the orchestrator's position in the advertise/connect/secure
// lifecycle. Only the device mutates it, always on the dispatch queue.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateIdle
	StateAdvertising
	StateConnected
	StateSecurityPending
	StateSecured
	StateDisconnecting
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateInitializing:
		return "Initializing"
	case StateIdle:
		return "Idle"
	case StateAdvertising:
		return "Advertising"
	case StateConnected:
		return "Connected"
	case StateSecurityPending:
		return "SecurityPending"
	case StateSecured:
		return "Secured"
	case StateDisconnecting:
		return "Disconnecting"
	default:
		return "Unknown"
	}
}
