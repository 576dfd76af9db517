package robot

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/Kaysham/spykee-remote/internal/audio"
	"github.com/Kaysham/spykee-remote/internal/config"
	"github.com/Kaysham/spykee-remote/internal/protocol"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Robot.Host = "test"
	cfg.Robot.Login = "bob"
	cfg.Robot.Password = "hi"
	return cfg
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestSession builds a session around one end of an in-memory pipe; the
// other end plays the robot.
func newTestSession(t *testing.T, cfg *config.Config) (*Session, net.Conn) {
	t.Helper()
	clientEnd, robotEnd := net.Pipe()
	t.Cleanup(func() {
		clientEnd.Close()
		robotEnd.Close()
	})

	s := NewSession(cfg, audio.NewRing(16, 8), testLogger(), nil)
	s.transport = NewTransport(clientEnd)
	return s, robotEnd
}

// fakeRobot drains and records the command frames the session sends, so
// writes from the session never block the pipe.
type fakeRobot struct {
	conn   net.Conn
	mu     sync.Mutex
	frames [][]byte
}

func startFakeRobot(conn net.Conn) *fakeRobot {
	f := &fakeRobot{conn: conn}
	go func() {
		for {
			header := make([]byte, protocol.HeaderSize)
			if _, err := io.ReadFull(conn, header); err != nil {
				return
			}
			h, err := protocol.DecodeHeader(header)
			if err != nil {
				return
			}
			payload := make([]byte, h.PayloadLen)
			if _, err := io.ReadFull(conn, payload); err != nil {
				return
			}
			f.mu.Lock()
			f.frames = append(f.frames, append(header, payload...))
			f.mu.Unlock()
		}
	}()
	return f
}

func (f *fakeRobot) received() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.frames))
	copy(out, f.frames)
	return out
}

func (f *fakeRobot) waitFrames(t *testing.T, n int) [][]byte {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if frames := f.received(); len(frames) >= n {
			return frames
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d frames, got %d", n, len(f.received()))
	return nil
}

func waitEvent(t *testing.T, s *Session) Event {
	t.Helper()
	select {
	case ev, ok := <-s.Events():
		if !ok {
			t.Fatal("event channel closed unexpectedly")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return nil
}

func loginResponseFrame(dock byte, fields ...string) []byte {
	body := []byte{0x01}
	for _, f := range fields {
		body = append(body, byte(len(f)))
		body = append(body, f...)
	}
	body = append(body, dock)

	frame := []byte{'P', 'K', protocol.CmdLogin, 0x00, byte(len(body))}
	return append(frame, body...)
}

func TestLoginExchange(t *testing.T) {
	s, robotEnd := newTestSession(t, testConfig())

	go func() {
		expect := []byte{'P', 'K', protocol.CmdLogin, 0x00, 0x07,
			0x03, 'b', 'o', 'b', 0x02, 'h', 'i'}
		got := make([]byte, len(expect))
		if _, err := io.ReadFull(robotEnd, got); err != nil {
			return
		}
		if !bytes.Equal(got, expect) {
			robotEnd.Close()
			return
		}
		robotEnd.Write(loginResponseFrame(0x00, "Spykee", "wifi", "robot", "2.5"))
	}()

	if err := s.login(s.transport); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	name, version := s.RobotInfo()
	if name != "Spykee" || version != "2.5" {
		t.Errorf("unexpected robot info: %s / %s", name, version)
	}
	if s.DockState() != DockStateDocked {
		t.Errorf("expected docked state, got %s", s.DockState())
	}
}

func TestLoginShortResponseLeavesDockUnknown(t *testing.T) {
	s, robotEnd := newTestSession(t, testConfig())

	go func() {
		buf := make([]byte, 12)
		if _, err := io.ReadFull(robotEnd, buf); err != nil {
			return
		}
		// 5-byte body, below the parseable minimum.
		robotEnd.Write([]byte{'P', 'K', protocol.CmdLogin, 0x00, 0x05, 1, 2, 3, 4, 5})
	}()

	if err := s.login(s.transport); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if s.DockState() != DockStateUnknown {
		t.Errorf("expected unknown dock state, got %s", s.DockState())
	}
}

func TestDispatchEvents(t *testing.T) {
	s, robotEnd := newTestSession(t, testConfig())
	go s.readLoop()

	// Battery
	robotEnd.Write([]byte{'P', 'K', protocol.CmdBatteryLevel, 0x00, 0x01, 66})
	ev := waitEvent(t, s)
	battery, ok := ev.(BatteryEvent)
	if !ok {
		t.Fatalf("expected BatteryEvent, got %T", ev)
	}
	if battery.Level != 66 {
		t.Errorf("expected battery level 66, got %d", battery.Level)
	}

	// Video frame
	jpeg := []byte{0xff, 0xd8, 0xff}
	robotEnd.Write(append([]byte{'P', 'K', protocol.CmdVideoFrame, 0x00, 0x03}, jpeg...))
	ev = waitEvent(t, s)
	video, ok := ev.(VideoFrameEvent)
	if !ok {
		t.Fatalf("expected VideoFrameEvent, got %T", ev)
	}
	if !bytes.Equal(video.Frame, jpeg) {
		t.Errorf("video frame corrupted: %x", video.Frame)
	}

	// Audio packet: first buffered clip starts playback
	robotEnd.Write([]byte{'P', 'K', protocol.CmdAudio, 0x00, 0x04, 0, 0, 0, 0})
	ev = waitEvent(t, s)
	audioEv, ok := ev.(AudioReadyEvent)
	if !ok {
		t.Fatalf("expected AudioReadyEvent, got %T", ev)
	}
	if !audioEv.Start {
		t.Error("expected Start on first audio clip")
	}
	if got := s.ring.Stats().Buffered; got != 1 {
		t.Errorf("expected 1 buffered clip, got %d", got)
	}

	// Dock status
	robotEnd.Write([]byte{'P', 'K', protocol.CmdDockStatus, 0x00, 0x01, protocol.DockStatusDocked})
	ev = waitEvent(t, s)
	dock, ok := ev.(DockEvent)
	if !ok {
		t.Fatalf("expected DockEvent, got %T", ev)
	}
	if dock.State != DockStateDocked {
		t.Errorf("expected docked, got %s", dock.State)
	}

	if got := s.Stats().FramesReceived; got != 4 {
		t.Errorf("expected 4 frames received, got %d", got)
	}
}

func TestReadLoopResynchronizes(t *testing.T) {
	s, robotEnd := newTestSession(t, testConfig())
	go s.readLoop()

	// Three garbage bytes in front of a valid battery frame.
	robotEnd.Write([]byte{0xde, 0xad, 0xbe, 'P', 'K', protocol.CmdBatteryLevel, 0x00, 0x01, 85})

	ev := waitEvent(t, s)
	battery, ok := ev.(BatteryEvent)
	if !ok {
		t.Fatalf("expected BatteryEvent after resync, got %T", ev)
	}
	if battery.Level != 85 {
		t.Errorf("expected battery level 85, got %d", battery.Level)
	}

	stats := s.Stats()
	if stats.FramingErrors != 1 {
		t.Errorf("expected 1 framing error, got %d", stats.FramingErrors)
	}
	if stats.ResyncBytes != 3 {
		t.Errorf("expected 3 resync bytes, got %d", stats.ResyncBytes)
	}
}

func TestReadLoopTerminatesOnPeerClose(t *testing.T) {
	s, robotEnd := newTestSession(t, testConfig())
	go s.readLoop()

	robotEnd.Close()

	ev := waitEvent(t, s)
	closed, ok := ev.(ClosedEvent)
	if !ok {
		t.Fatalf("expected ClosedEvent, got %T", ev)
	}
	if closed.Err == nil {
		t.Error("expected a connection error on peer close")
	}

	if _, ok := <-s.Events(); ok {
		t.Error("expected event channel to close after ClosedEvent")
	}
	if err := s.MoveForward(); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
}

func TestCloseEmitsCleanClosedEvent(t *testing.T) {
	s, robotEnd := newTestSession(t, testConfig())
	_ = robotEnd
	go s.readLoop()

	if err := s.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	ev := waitEvent(t, s)
	closed, ok := ev.(ClosedEvent)
	if !ok {
		t.Fatalf("expected ClosedEvent, got %T", ev)
	}
	if closed.Err != nil {
		t.Errorf("expected clean close, got error %v", closed.Err)
	}
}

func TestActivateSequence(t *testing.T) {
	cfg := testConfig()
	cfg.Robot.DefaultVolume = 50
	s, robotEnd := newTestSession(t, cfg)
	s.setDockState(DockStateDocked)

	robot := startFakeRobot(robotEnd)
	if err := s.Activate(); err != nil {
		t.Fatalf("activate failed: %v", err)
	}

	want := [][]byte{
		{'P', 'K', protocol.CmdDockControl, 0x00, 0x01, protocol.DockControlUndock},
		{'P', 'K', protocol.CmdStream, 0x00, 0x02, protocol.StreamVideo, 1},
		{'P', 'K', protocol.CmdStream, 0x00, 0x02, protocol.StreamAudio, 1},
		{'P', 'K', protocol.CmdSetVolume, 0x00, 0x01, 50},
	}
	frames := robot.waitFrames(t, len(want))
	for i, w := range want {
		if !bytes.Equal(frames[i], w) {
			t.Errorf("frame %d mismatch:\ngot  %x\nwant %x", i, frames[i], w)
		}
	}
	if s.DockState() != DockStateUndocked {
		t.Errorf("expected undocked after activate, got %s", s.DockState())
	}
}

func TestDockCommands(t *testing.T) {
	s, robotEnd := newTestSession(t, testConfig())
	robot := startFakeRobot(robotEnd)

	if err := s.Dock(); err != nil {
		t.Fatalf("dock failed: %v", err)
	}
	if s.DockState() != DockStateDocking {
		t.Errorf("expected docking state, got %s", s.DockState())
	}

	if err := s.CancelDock(); err != nil {
		t.Fatalf("cancel dock failed: %v", err)
	}
	if s.DockState() != DockStateUndocked {
		t.Errorf("expected undocked after cancel, got %s", s.DockState())
	}

	want := [][]byte{
		{'P', 'K', protocol.CmdDockControl, 0x00, 0x01, protocol.DockControlDock},
		{'P', 'K', protocol.CmdDockControl, 0x00, 0x01, protocol.DockControlCancel},
	}
	frames := robot.waitFrames(t, len(want))
	for i, w := range want {
		if !bytes.Equal(frames[i], w) {
			t.Errorf("frame %d mismatch:\ngot  %x\nwant %x", i, frames[i], w)
		}
	}
}

func TestMotorStopDebounce(t *testing.T) {
	cfg := testConfig()
	cfg.Drive.ForwardStopMs = 100
	cfg.Drive.TurnStopMs = 100
	s, robotEnd := newTestSession(t, cfg)
	robot := startFakeRobot(robotEnd)

	// Two movements in quick succession: only the second one's deadline
	// survives, so exactly one automatic stop follows the last command.
	if err := s.MoveForward(); err != nil {
		t.Fatalf("move failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if err := s.MoveForward(); err != nil {
		t.Fatalf("move failed: %v", err)
	}

	frames := robot.waitFrames(t, 3)
	time.Sleep(200 * time.Millisecond)
	frames = robot.received()

	if len(frames) != 3 {
		t.Fatalf("expected 3 frames (2 moves + 1 stop), got %d", len(frames))
	}
	fwd := []byte{'P', 'K', protocol.CmdMove, 0x00, 0x02, 100, 100}
	stop := []byte{'P', 'K', protocol.CmdMove, 0x00, 0x02, 0, 0}
	if !bytes.Equal(frames[0], fwd) || !bytes.Equal(frames[1], fwd) {
		t.Errorf("unexpected move frames: %x, %x", frames[0], frames[1])
	}
	if !bytes.Equal(frames[2], stop) {
		t.Errorf("expected stop frame, got %x", frames[2])
	}
}

func TestExplicitStopNeutralizesDebounce(t *testing.T) {
	cfg := testConfig()
	cfg.Drive.TurnStopMs = 100
	s, robotEnd := newTestSession(t, cfg)
	robot := startFakeRobot(robotEnd)

	if err := s.TurnLeft(); err != nil {
		t.Fatalf("turn failed: %v", err)
	}
	if err := s.StopMotor(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	// The armed timer fires but finds the neutralized deadline.
	time.Sleep(250 * time.Millisecond)

	frames := robot.received()
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames (turn + explicit stop), got %d", len(frames))
	}
	turn := []byte{'P', 'K', protocol.CmdMove, 0x00, 0x02, 240, 15}
	if !bytes.Equal(frames[0], turn) {
		t.Errorf("expected turn frame %x, got %x", turn, frames[0])
	}
	stop := []byte{'P', 'K', protocol.CmdMove, 0x00, 0x02, 0, 0}
	if !bytes.Equal(frames[1], stop) {
		t.Errorf("expected stop frame, got %x", frames[1])
	}
}

func TestBackwardAndTurnEncoding(t *testing.T) {
	cfg := testConfig()
	cfg.Drive.ForwardStopMs = 1000
	cfg.Drive.TurnStopMs = 1000
	s, robotEnd := newTestSession(t, cfg)
	robot := startFakeRobot(robotEnd)

	if err := s.MoveBackward(); err != nil {
		t.Fatalf("backward failed: %v", err)
	}
	if err := s.TurnRight(); err != nil {
		t.Fatalf("turn failed: %v", err)
	}

	want := [][]byte{
		{'P', 'K', protocol.CmdMove, 0x00, 0x02, 205, 205},
		{'P', 'K', protocol.CmdMove, 0x00, 0x02, 15, 240},
	}
	frames := robot.waitFrames(t, len(want))
	for i, w := range want {
		if !bytes.Equal(frames[i], w) {
			t.Errorf("frame %d mismatch:\ngot  %x\nwant %x", i, frames[i], w)
		}
	}
}
