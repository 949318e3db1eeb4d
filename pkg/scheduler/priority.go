package scheduler

import (
	"math"
	"time"
)

// Priority is a scheduler priority level.
type Priority uint8

const (
	NoPriority Priority = iota
	ImmediatePriority
	UserBlockingPriority
	NormalPriority
	LowPriority
	IdlePriority
)

// String returns the string representation of the Priority.
func (p Priority) String() string {
	switch p {
	case NoPriority:
		return "none"
	case ImmediatePriority:
		return "immediate"
	case UserBlockingPriority:
		return "user-blocking"
	case NormalPriority:
		return "normal"
	case LowPriority:
		return "low"
	case IdlePriority:
		return "idle"
	default:
		return "unknown"
	}
}

// ParsePriority parses the names produced by String.
func ParsePriority(s string) (Priority, bool) {
	for p := ImmediatePriority; p <= IdlePriority; p++ {
		if p.String() == s {
			return p, true
		}
	}
	return NoPriority, false
}

// maxTimeout is effectively "never times out".
const maxTimeout = time.Duration(math.MaxInt64 / 2)

// Timeout returns how long a task of this priority may wait before it is
// treated as expired.
func (p Priority) Timeout() time.Duration {
	switch p {
	case ImmediatePriority:
		return -1 * time.Millisecond
	case UserBlockingPriority:
		return 250 * time.Millisecond
	case LowPriority:
		return 10 * time.Second
	case IdlePriority:
		return maxTimeout
	default:
		return 5 * time.Second
	}
}
