package robot

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Kaysham/spykee-remote/internal/audio"
	"github.com/Kaysham/spykee-remote/internal/config"
	"github.com/Kaysham/spykee-remote/internal/metrics"
	"github.com/Kaysham/spykee-remote/internal/protocol"
)

// ErrSessionClosed is returned by command sends after the session has been
// closed or has lost its connection.
var ErrSessionClosed = errors.New("session is closed")

const eventChanSize = 64

// Session is a single connection to the robot. It owns the transport, the
// dock state, the motor stop deadline and the reader loop. A session is
// single-use: create, Connect, use, Close. After a close or a read failure
// it is terminal; the caller constructs a new one to reconnect.
type Session struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics // may be nil
	ring    *audio.Ring

	transport *Transport
	events    chan Event
	closed    atomic.Bool

	// Motor stop deadline in nanoseconds since start, read by the debounce
	// timer at fire time. Neutralized to a far-future value by StopMotor.
	start        time.Time
	stopDeadline atomic.Int64

	// Robot identity from the login response
	info protocol.LoginResponse

	// Cross-goroutine state: mutated by the reader loop, read by callers
	dockState   DockState
	lastBattery int

	// Counters
	framesReceived uint64
	framingErrors  uint64
	resyncBytes    uint64
	eventsDropped  uint64

	mu sync.RWMutex
}

// SessionStats is a snapshot of session state for monitoring.
type SessionStats struct {
	Connected      bool   `json:"connected"`
	RemoteAddr     string `json:"remote_addr,omitempty"`
	DockState      string `json:"dock_state"`
	BatteryLevel   int    `json:"battery_level"`
	FramesReceived uint64 `json:"frames_received"`
	FramingErrors  uint64 `json:"framing_errors"`
	ResyncBytes    uint64 `json:"resync_bytes"`
	EventsDropped  uint64 `json:"events_dropped"`
}

// NewSession creates an unconnected session. The metrics argument may be nil.
func NewSession(cfg *config.Config, ring *audio.Ring, logger *slog.Logger, m *metrics.Metrics) *Session {
	return &Session{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		ring:    ring,
		events:  make(chan Event, eventChanSize),
		start:   time.Now(),
	}
}

// Events returns the channel of incoming robot events. It is closed after
// the final ClosedEvent when the session terminates.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Connect dials the robot, performs the login handshake, recovers the
// initial dock state from the response and starts the reader loop. Any I/O
// failure aborts the connect and leaves the session terminal.
func (s *Session) Connect() error {
	t, err := Dial(s.cfg.Robot.Host, s.cfg.Robot.Port, s.cfg.Robot.GetConnectTimeout())
	if err != nil {
		s.closed.Store(true)
		return err
	}

	if err := s.login(t); err != nil {
		t.Close()
		s.closed.Store(true)
		return err
	}

	s.transport = t
	s.ring.Reset()

	s.logger.Info("connected to robot",
		slog.String("remote_addr", t.RemoteAddr()),
		slog.String("name", s.info.Name1),
		slog.String("version", s.info.Version),
		slog.String("dock_state", s.DockState().String()),
	)

	go s.readLoop()
	return nil
}

// login sends the login frame and parses the response. The response header
// reuses its fifth byte as a single-byte body length; a body shorter than
// the minimum leaves the dock state unknown but is not fatal.
func (s *Session) login(t *Transport) error {
	frame, err := protocol.EncodeLogin(s.cfg.Robot.Login, s.cfg.Robot.Password)
	if err != nil {
		return fmt.Errorf("failed to encode login: %w", err)
	}
	if err := t.WriteRaw(frame); err != nil {
		return fmt.Errorf("failed to send login: %w", err)
	}

	header := make([]byte, protocol.HeaderSize)
	if err := t.ReadFull(header); err != nil {
		return fmt.Errorf("failed to read login response header: %w", err)
	}

	bodyLen, err := protocol.LoginBodyLen(header)
	if err != nil {
		return err
	}

	body := make([]byte, bodyLen)
	if err := t.ReadFull(body); err != nil {
		return fmt.Errorf("failed to read login response body: %w", err)
	}

	resp, err := protocol.ParseLoginResponse(body)
	if err != nil {
		return fmt.Errorf("malformed login response: %w", err)
	}

	s.info = resp
	if !resp.Complete {
		s.logger.Warn("login response too short, dock state unknown",
			slog.Int("body_len", bodyLen),
		)
		return nil
	}

	if resp.Docked {
		s.setDockState(DockStateDocked)
	} else {
		s.setDockState(DockStateUndocked)
	}
	return nil
}

// RobotInfo returns the identity strings from the login response.
func (s *Session) RobotInfo() (name, version string) {
	return s.info.Name1, s.info.Version
}

// DockState returns the current dock state.
func (s *Session) DockState() DockState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dockState
}

func (s *Session) setDockState(state DockState) {
	s.mu.Lock()
	s.dockState = state
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.SetDockState(int(state))
	}
}

// Activate is the convenience sequence run once after a successful connect:
// leave the dock if on it, start both media streams, set the volume.
func (s *Session) Activate() error {
	if s.DockState() == DockStateDocked {
		if err := s.Undock(); err != nil {
			return err
		}
	}
	if err := s.StartVideo(); err != nil {
		return err
	}
	if err := s.StartAudio(); err != nil {
		return err
	}
	return s.SetVolume(s.cfg.Robot.DefaultVolume)
}

// Dock sends the robot back to its charging dock.
func (s *Session) Dock() error {
	if err := s.send("dock", protocol.CmdDockControl, []byte{protocol.DockControlDock}); err != nil {
		return err
	}
	s.setDockState(DockStateDocking)
	return nil
}

// Undock drives the robot off its charging dock.
func (s *Session) Undock() error {
	if err := s.send("undock", protocol.CmdDockControl, []byte{protocol.DockControlUndock}); err != nil {
		return err
	}
	s.setDockState(DockStateUndocked)
	return nil
}

// CancelDock aborts an in-progress docking maneuver.
func (s *Session) CancelDock() error {
	if err := s.send("cancel_dock", protocol.CmdDockControl, []byte{protocol.DockControlCancel}); err != nil {
		return err
	}
	s.setDockState(DockStateUndocked)
	return nil
}

// SetStream enables or disables the video or audio feed.
func (s *Session) SetStream(streamID uint8, enabled bool) error {
	enable := byte(0)
	if enabled {
		enable = 1
	}
	return s.send("stream", protocol.CmdStream, []byte{streamID, enable})
}

// StartVideo enables the video feed.
func (s *Session) StartVideo() error { return s.SetStream(protocol.StreamVideo, true) }

// StopVideo disables the video feed.
func (s *Session) StopVideo() error { return s.SetStream(protocol.StreamVideo, false) }

// StartAudio enables the audio feed.
func (s *Session) StartAudio() error { return s.SetStream(protocol.StreamAudio, true) }

// StopAudio disables the audio feed.
func (s *Session) StopAudio() error { return s.SetStream(protocol.StreamAudio, false) }

// SetVolume sets the robot's speaker volume, 0-100.
func (s *Session) SetVolume(volume int) error {
	frame, err := protocol.EncodeSetVolume(volume)
	if err != nil {
		return err
	}
	return s.sendRaw("set_volume", frame)
}

// PlaySoundEffect plays one of the robot's built-in sound effects.
func (s *Session) PlaySoundEffect(effect SoundEffect) error {
	frame, err := protocol.EncodeSoundEffect(uint8(effect))
	if err != nil {
		return err
	}
	return s.sendRaw("sound_effect", frame)
}

// Close shuts the session down. Closing the transport unblocks the reader
// loop's pending read; the loop then emits the final ClosedEvent.
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if s.transport != nil {
		return s.transport.Close()
	}
	close(s.events)
	return nil
}

// Stats returns a snapshot of session state.
func (s *Session) Stats() SessionStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := SessionStats{
		Connected:      s.transport != nil && !s.closed.Load(),
		DockState:      s.dockState.String(),
		BatteryLevel:   s.lastBattery,
		FramesReceived: s.framesReceived,
		FramingErrors:  s.framingErrors,
		ResyncBytes:    s.resyncBytes,
		EventsDropped:  s.eventsDropped,
	}
	if s.transport != nil {
		stats.RemoteAddr = s.transport.RemoteAddr()
	}
	return stats
}

// send encodes and sends a command frame, recording the outcome.
func (s *Session) send(name string, command uint8, payload []byte) error {
	frame, err := protocol.EncodeFrame(command, payload)
	if err != nil {
		return err
	}
	return s.sendRaw(name, frame)
}

func (s *Session) sendRaw(name string, frame []byte) error {
	var err error
	if s.transport == nil || s.closed.Load() {
		err = ErrSessionClosed
	} else {
		err = s.transport.WriteRaw(frame)
	}

	if s.metrics != nil {
		s.metrics.RecordCommand(name, err)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// emit delivers an event without blocking the reader loop. When the
// consumer falls behind, events are dropped and counted; for a live video
// and audio feed, stale events are worth less than a stalled socket.
func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.mu.Lock()
		s.eventsDropped++
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.RecordEventDropped()
		}
	}
}

// readLoop runs for the lifetime of the connection: read a header, read the
// payload, dispatch by command id. A read failure terminates the loop and
// the session; there is no automatic retry.
func (s *Session) readLoop() {
	var readErr error
	for {
		header, err := s.readHeader()
		if err != nil {
			readErr = err
			break
		}

		payload := make([]byte, header.PayloadLen)
		if err := s.transport.ReadFull(payload); err != nil {
			readErr = err
			break
		}

		s.mu.Lock()
		s.framesReceived++
		s.mu.Unlock()

		s.dispatch(header.Command, payload)
	}

	if s.closed.Swap(true) {
		// Explicit Close unblocked the read; not a failure.
		s.emit(ClosedEvent{})
	} else {
		s.logger.Error("connection lost", slog.String("error", readErr.Error()))
		s.transport.Close()
		s.emit(ClosedEvent{Err: readErr})
	}
	close(s.events)
}

// readHeader reads the next 5-byte frame header. On a magic mismatch the
// stream is desynchronized; rather than wedge on a corrupted byte, the
// header window slides forward one byte at a time until the magic prefix
// realigns, counting what was discarded.
func (s *Session) readHeader() (protocol.Header, error) {
	var hdr [protocol.HeaderSize]byte
	if err := s.transport.ReadFull(hdr[:]); err != nil {
		return protocol.Header{}, err
	}

	if protocol.IsMagic(hdr[0], hdr[1]) {
		return protocol.DecodeHeader(hdr[:])
	}

	s.logger.Warn("frame header missing magic prefix, resynchronizing",
		slog.String("header", protocol.HexDump(hdr[:])),
	)
	s.mu.Lock()
	s.framingErrors++
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.RecordFramingError()
	}

	discarded := 0
	for !protocol.IsMagic(hdr[0], hdr[1]) {
		copy(hdr[:], hdr[1:])
		discarded++
		if err := s.transport.ReadFull(hdr[protocol.HeaderSize-1:]); err != nil {
			return protocol.Header{}, err
		}
	}

	s.mu.Lock()
	s.resyncBytes += uint64(discarded)
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.RecordResyncBytes(discarded)
	}
	s.logger.Warn("frame stream resynchronized", slog.Int("bytes_discarded", discarded))

	return protocol.DecodeHeader(hdr[:])
}

// dispatch routes one incoming frame. Unrecognized commands have already
// been drained from the stream to keep framing aligned.
func (s *Session) dispatch(command uint8, payload []byte) {
	switch command {
	case protocol.CmdBatteryLevel:
		if len(payload) < 1 {
			return
		}
		level := int(payload[0])
		s.mu.Lock()
		s.lastBattery = level
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.RecordFrame("battery", len(payload))
			s.metrics.SetBatteryLevel(level)
		}
		s.emit(BatteryEvent{Level: level})

	case protocol.CmdVideoFrame:
		if s.metrics != nil {
			s.metrics.RecordFrame("video", len(payload))
		}
		s.emit(VideoFrameEvent{Frame: payload})

	case protocol.CmdAudio:
		if s.metrics != nil {
			s.metrics.RecordFrame("audio", len(payload))
		}
		res, err := s.ring.Push(payload)
		if err != nil {
			s.logger.Warn("dropping audio payload", slog.String("error", err.Error()))
			return
		}
		if s.metrics != nil {
			s.metrics.RecordAudioArrival(s.ring.Stats().Buffered, res.Skipped)
		}
		s.emit(AudioReadyEvent{Start: res.Start})

	case protocol.CmdDockStatus:
		if len(payload) < 1 {
			return
		}
		if s.metrics != nil {
			s.metrics.RecordFrame("dock", len(payload))
		}
		switch payload[0] {
		case protocol.DockStatusDocked:
			s.setDockState(DockStateDocked)
		case protocol.DockStatusUndocked:
			s.setDockState(DockStateUndocked)
		default:
			return
		}
		s.emit(DockEvent{State: s.DockState()})

	default:
		if s.metrics != nil {
			s.metrics.RecordFrame("unknown", len(payload))
		}
		s.logger.Debug("unrecognized frame",
			slog.Int("command", int(command)),
			slog.Int("payload_len", len(payload)),
			slog.String("payload", protocol.HexDump(payload)),
		)
	}
}
