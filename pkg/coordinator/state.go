package coordinator

// State is the lifecycle state of a stream.
type State int32

const (
	Uninitialized State = iota
	Open
	Decoding
	Reconfiguring
	Closed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Open:
		return "open"
	case Decoding:
		return "decoding"
	case Reconfiguring:
		return "reconfiguring"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}
