package transport

// Side identifies one end of a Pipe.
type Side int

const (
	// SideController is the end the transport session drives.
	SideController Side = iota
	// SidePod is the end the simulated pod listens on.
	SidePod
)

// String returns the string representation of the side.
func (s Side) String() string {
	switch s {
	case SideController:
		return "controller"
	case SidePod:
		return "pod"
	default:
		return "unknown"
	}
}

// IsValid returns true if the side is one of the two pipe ends.
func (s Side) IsValid() bool {
	return s == SideController || s == SidePod
}

// Peer returns the opposite side.
func (s Side) Peer() Side {
	return 1 - s
}
