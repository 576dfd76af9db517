package robot

import (
	"math"
	"time"

	"github.com/Kaysham/spykee-remote/internal/protocol"
)

// Movement commands send their frame immediately, then arm a cheap stop
// timer. Each new movement overwrites the recorded deadline; every armed
// timer re-checks the deadline at fire time, so through a burst of commands
// only the last timer's check passes and the motor runs smoothly until
// exactly one delay after the final command.

// MoveForward drives both tracks forward at the configured forward speed.
func (s *Session) MoveForward() error {
	speed := byte(s.cfg.Drive.ForwardSpeed)
	if err := s.send("move", protocol.CmdMove, []byte{speed, speed}); err != nil {
		return err
	}
	s.scheduleMotorStop(s.cfg.Drive.GetForwardStopDelay())
	return nil
}

// MoveBackward drives both tracks in reverse at the configured backward
// speed. Reverse speeds are encoded as 255 minus the speed.
func (s *Session) MoveBackward() error {
	speed := byte(255 - s.cfg.Drive.BackwardSpeed)
	if err := s.send("move", protocol.CmdMove, []byte{speed, speed}); err != nil {
		return err
	}
	s.scheduleMotorStop(s.cfg.Drive.GetTurnStopDelay())
	return nil
}

// TurnLeft spins the tracks in opposite directions to rotate left.
func (s *Session) TurnLeft() error {
	speed := s.cfg.Drive.TurningSpeed
	if err := s.send("move", protocol.CmdMove, []byte{byte(255 - speed), byte(speed)}); err != nil {
		return err
	}
	s.scheduleMotorStop(s.cfg.Drive.GetTurnStopDelay())
	return nil
}

// TurnRight spins the tracks in opposite directions to rotate right.
func (s *Session) TurnRight() error {
	speed := s.cfg.Drive.TurningSpeed
	if err := s.send("move", protocol.CmdMove, []byte{byte(speed), byte(255 - speed)}); err != nil {
		return err
	}
	s.scheduleMotorStop(s.cfg.Drive.GetTurnStopDelay())
	return nil
}

// StopMotor stops both tracks immediately and neutralizes any pending stop
// deadline so a stale timer cannot re-stop the motor later.
func (s *Session) StopMotor() error {
	s.stopDeadline.Store(math.MaxInt64)
	return s.send("stop", protocol.CmdMove, []byte{0, 0})
}

// scheduleMotorStop records a new stop deadline and arms a timer for it.
// The timer compares the current monotonic elapsed time against whatever
// deadline is recorded when it fires, not the one it was armed with, so
// rapid successive movements coalesce without explicit cancellation.
func (s *Session) scheduleMotorStop(delay time.Duration) {
	deadline := int64(time.Since(s.start) + delay)
	s.stopDeadline.Store(deadline)

	time.AfterFunc(delay, func() {
		if int64(time.Since(s.start)) >= s.stopDeadline.Load() {
			if err := s.StopMotor(); err != nil {
				s.logger.Debug("debounced motor stop failed", "error", err.Error())
			}
		}
	})
}
