package session

import (
	"fmt"
)

// State is the lifecycle phase of a Session.
type State uint8

const (
	StateIdle State = iota
	StateCalibrating
	StateCountdown
	StateRecording
	StateFinalizing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCalibrating:
		return "calibrating"
	case StateCountdown:
		return "countdown"
	case StateRecording:
		return "recording"
	case StateFinalizing:
		return "finalizing"
	}
	return fmt.Sprintf("unknown_state_%d", uint8(s))
}
