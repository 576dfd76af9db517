package main

import (
	"fmt"
	"log/slog"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Kaysham/spykee-remote/internal/audio"
	"github.com/Kaysham/spykee-remote/internal/metrics"
	"github.com/Kaysham/spykee-remote/internal/robot"
	"github.com/Kaysham/spykee-remote/internal/server"
)

// runDrive runs the interactive teleop console. Session events keep
// flowing to the hub and spool while the TUI is up.
func runDrive(session *robot.Session, ring *audio.Ring,
	hub *server.Hub, spool *audio.Spool, m *metrics.Metrics, logger *slog.Logger) error {

	model := driveModel{
		session: session,
		ring:    ring,
		hub:     hub,
		spool:   spool,
		metrics: m,
		logger:  logger,
		dock:    session.DockState(),
	}
	program := tea.NewProgram(model)
	_, err := program.Run()
	return err
}

type sessionEventMsg struct {
	ev robot.Event
	ok bool
}

type driveModel struct {
	session *robot.Session
	ring    *audio.Ring
	hub     *server.Hub
	spool   *audio.Spool
	metrics *metrics.Metrics
	logger  *slog.Logger

	battery int
	dock    robot.DockState
	frames  uint64
	lastErr string
	closed  bool
}

func listenEvents(session *robot.Session) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-session.Events()
		return sessionEventMsg{ev: ev, ok: ok}
	}
}

func (m driveModel) Init() tea.Cmd {
	return listenEvents(m.session)
}

func (m driveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case sessionEventMsg:
		if !msg.ok {
			m.closed = true
			return m, tea.Quit
		}
		m.hub.Publish(msg.ev)
		switch ev := msg.ev.(type) {
		case robot.BatteryEvent:
			m.battery = ev.Level
		case robot.DockEvent:
			m.dock = ev.State
		case robot.VideoFrameEvent:
			m.frames++
		case robot.AudioReadyEvent:
			drainClip(m.ring, m.spool, m.metrics, m.logger)
		case robot.ClosedEvent:
			m.closed = true
			if ev.Err != nil {
				m.lastErr = ev.Err.Error()
			}
			return m, tea.Quit
		}
		return m, listenEvents(m.session)
	}
	return m, nil
}

func (m driveModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var err error
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "up":
		err = m.session.MoveForward()
	case "down":
		err = m.session.MoveBackward()
	case "left":
		err = m.session.TurnLeft()
	case "right":
		err = m.session.TurnRight()
	case " ", "s":
		err = m.session.StopMotor()
	case "d":
		err = m.toggleDock()
	case "a":
		err = m.session.PlaySoundEffect(robot.SoundAlarm)
	}
	if err != nil {
		m.lastErr = err.Error()
	}
	return m, nil
}

// toggleDock cycles dock behavior: docked robots undock, moving robots
// dock, and an in-progress docking run is cancelled.
func (m driveModel) toggleDock() error {
	switch m.dock {
	case robot.DockStateDocked:
		return m.session.Undock()
	case robot.DockStateDocking:
		return m.session.CancelDock()
	default:
		return m.session.Dock()
	}
}

func (m driveModel) View() string {
	if m.closed {
		if m.lastErr != "" {
			return fmt.Sprintf("connection closed: %s\n", m.lastErr)
		}
		return "connection closed\n"
	}

	name, version := m.session.RobotInfo()
	stats := m.ring.Stats()

	var b strings.Builder
	fmt.Fprintf(&b, "  spykeectl — %s (firmware %s)\n\n", name, version)
	fmt.Fprintf(&b, "  battery: %3d%%    dock: %-8s   video frames: %d\n",
		m.battery, m.dock, m.frames)
	fmt.Fprintf(&b, "  audio: %d/%d buffered, %d skipped, %d waits\n",
		stats.Buffered, stats.Capacity, stats.Skips, stats.Waits)
	if m.lastErr != "" {
		fmt.Fprintf(&b, "\n  last error: %s\n", m.lastErr)
	}
	b.WriteString("\n  arrows: drive   space: stop   d: dock   a: alarm   q: quit\n")
	return b.String()
}
