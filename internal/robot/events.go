package robot

import "fmt"

// DockState tracks whether the robot is on its charging dock.
type DockState int

const (
	DockStateUnknown DockState = iota
	DockStateDocked
	DockStateUndocked
	DockStateDocking
)

// String returns a human-readable dock state.
func (d DockState) String() string {
	switch d {
	case DockStateDocked:
		return "docked"
	case DockStateUndocked:
		return "undocked"
	case DockStateDocking:
		return "docking"
	default:
		return "unknown"
	}
}

// Event is an incoming robot event delivered on the session's event channel.
// The concrete types are BatteryEvent, VideoFrameEvent, AudioReadyEvent,
// DockEvent and ClosedEvent.
type Event interface {
	event()
}

// BatteryEvent reports the robot's battery charge, 0-100.
type BatteryEvent struct {
	Level int
}

// VideoFrameEvent carries one compressed still image from the camera.
// Decoding is the consumer's job.
type VideoFrameEvent struct {
	Frame []byte
}

// AudioReadyEvent signals that a clip was queued in the pacing ring. Start
// is true when the consumer should begin playback (player idle, exactly one
// clip buffered).
type AudioReadyEvent struct {
	Start bool
}

// DockEvent reports a dock state change.
type DockEvent struct {
	State DockState
}

// ClosedEvent is the final event of a session. Err is nil after an explicit
// Close and carries the read failure otherwise.
type ClosedEvent struct {
	Err error
}

func (BatteryEvent) event()    {}
func (VideoFrameEvent) event() {}
func (AudioReadyEvent) event() {}
func (DockEvent) event()       {}
func (ClosedEvent) event()     {}

// SoundEffect identifies one of the robot's built-in sound effects.
type SoundEffect uint8

const (
	SoundAlarm SoundEffect = iota
	SoundBomb
	SoundLaser
	SoundAhAhAh
	SoundEngine
	SoundRobot
	SoundCustom1
	SoundCustom2
)

// String returns the effect name.
func (s SoundEffect) String() string {
	switch s {
	case SoundAlarm:
		return "alarm"
	case SoundBomb:
		return "bomb"
	case SoundLaser:
		return "laser"
	case SoundAhAhAh:
		return "ahahah"
	case SoundEngine:
		return "engine"
	case SoundRobot:
		return "robot"
	case SoundCustom1:
		return "custom1"
	case SoundCustom2:
		return "custom2"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}
