package session

// Status is the session's connection state. It is the single authority for
// whether a subscribe or publish may proceed; the transport is never probed
// during a check-then-act sequence.
type Status int

const (
	// StatusUninitialized is the state before Init and after Close.
	StatusUninitialized Status = iota
	// StatusDisconnected means the transport exists but no link is up.
	StatusDisconnected
	// StatusConnecting means exactly one connect attempt is in flight.
	StatusConnecting
	// StatusConnected means the link is up.
	StatusConnected
)

// String returns the status name
func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return "unknown"
	}
}
