package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Kaysham/spykee-remote/internal/audio"
	"github.com/Kaysham/spykee-remote/internal/config"
	"github.com/Kaysham/spykee-remote/internal/metrics"
	"github.com/Kaysham/spykee-remote/internal/robot"
	"github.com/Kaysham/spykee-remote/internal/server"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "spykeectl"
	serviceVersion    = "1.0.0"
)

var (
	flagConfigPath string
	flagHost       string
	flagPort       int
	flagLogin      string
	flagPassword   string
	flagHTTP       bool
	flagSpoolDir   string
)

func main() {
	root := &cobra.Command{
		Use:     "spykeectl",
		Short:   "Remote control client for the Spykee robot",
		Long:    "spykeectl connects to a Spykee robot over TCP, drives it, and consumes its video and audio streams.",
		Version: serviceVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, false)
		},
	}

	drive := &cobra.Command{
		Use:   "drive",
		Short: "Interactive teleop console (arrow keys to move)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, true)
		},
	}
	root.AddCommand(drive)

	pf := root.PersistentFlags()
	pf.StringVar(&flagConfigPath, "config", defaultConfigPath, "path to configuration file")
	pf.StringVar(&flagHost, "host", "", "robot host (overrides config)")
	pf.IntVar(&flagPort, "port", 0, "robot port (overrides config)")
	pf.StringVar(&flagLogin, "login", "", "robot login (overrides config)")
	pf.StringVar(&flagPassword, "password", "", "robot password (overrides config)")
	pf.BoolVar(&flagHTTP, "http", false, "enable the debug HTTP server (overrides config)")
	pf.StringVar(&flagSpoolDir, "spool-dir", "", "directory for spooled audio clips (overrides config)")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

// loadConfig loads the config file (when present) and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if _, err := os.Stat(flagConfigPath); err == nil {
		loaded, err := config.Load(flagConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else if cmd.Flags().Changed("config") {
		return nil, fmt.Errorf("config file %s not found", flagConfigPath)
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Robot.Host = flagHost
	}
	if flags.Changed("port") {
		cfg.Robot.Port = flagPort
	}
	if flags.Changed("login") {
		cfg.Robot.Login = flagLogin
	}
	if flags.Changed("password") {
		cfg.Robot.Password = flagPassword
	}
	if flags.Changed("http") {
		cfg.HTTP.Enabled = flagHTTP
	}
	if flags.Changed("spool-dir") {
		cfg.Audio.SpoolDir = flagSpoolDir
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func run(cmd *cobra.Command, interactive bool) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := initLogger(cfg.Logging)
	logger.Info("service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("robot", fmt.Sprintf("%s:%d", cfg.Robot.Host, cfg.Robot.Port)),
	)

	appMetrics := metrics.NewMetrics()
	ring := audio.NewRing(cfg.Audio.Buffers, cfg.Audio.DropThreshold)
	session := robot.NewSession(cfg, ring, logger, appMetrics)

	if err := session.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer session.Close()

	if err := session.Activate(); err != nil {
		logger.Warn("activate sequence failed", slog.String("error", err.Error()))
	}

	var spool *audio.Spool
	if cfg.Audio.SpoolDir != "" {
		spool, err = audio.NewSpool(cfg.Audio.SpoolDir, cfg.Audio.Buffers)
		if err != nil {
			return err
		}
		defer spool.Cleanup()
	}

	hub := server.NewHub(logger)

	if cfg.HTTP.Enabled {
		httpServer := server.NewHTTPServer(cfg, logger, session, ring, hub, appMetrics)
		if err := httpServer.Start(); err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := httpServer.Stop(ctx); err != nil {
				logger.Error("error stopping HTTP server", slog.String("error", err.Error()))
			}
		}()
	}

	if interactive {
		return runDrive(session, ring, hub, spool, appMetrics, logger)
	}
	return runHeadless(session, ring, hub, spool, appMetrics, logger)
}

// runHeadless consumes session events until a signal arrives or the
// connection terminates. Audio clips are drained to the spool so an
// external file-based player can follow the stream.
func runHeadless(session *robot.Session, ring *audio.Ring,
	hub *server.Hub, spool *audio.Spool, m *metrics.Metrics, logger *slog.Logger) error {

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case sig := <-sigChan:
			logger.Info("received shutdown signal", slog.String("signal", sig.String()))
			return nil

		case ev, ok := <-session.Events():
			if !ok {
				return nil
			}
			hub.Publish(ev)

			switch e := ev.(type) {
			case robot.BatteryEvent:
				logger.Info("battery level", slog.Int("percent", e.Level))
			case robot.DockEvent:
				logger.Info("dock state changed", slog.String("state", e.State.String()))
			case robot.AudioReadyEvent:
				drainClip(ring, spool, m, logger)
			case robot.ClosedEvent:
				if e.Err != nil {
					return fmt.Errorf("connection lost: %w", e.Err)
				}
				return nil
			}
		}
	}
}

// drainClip pulls the next buffered clip and hands it to the spool.
func drainClip(ring *audio.Ring, spool *audio.Spool, m *metrics.Metrics, logger *slog.Logger) {
	if spool == nil {
		return
	}
	clip, ok := ring.NextClip()
	if !ok {
		m.RecordAudioWait()
		return
	}
	if _, err := spool.WriteClip(clip); err != nil {
		logger.Warn("failed to spool audio clip", slog.String("error", err.Error()))
	}
}

// initLogger creates the structured logger from configuration.
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stdout":
		output = os.Stdout
	case "stderr", "":
		output = os.Stderr
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file %s: %v, falling back to stderr\n", cfg.Output, err)
			output = os.Stderr
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
