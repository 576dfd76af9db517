package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete client configuration.
type Config struct {
	Robot   RobotConfig   `yaml:"robot"`
	Drive   DriveConfig   `yaml:"drive"`
	Audio   AudioConfig   `yaml:"audio"`
	HTTP    HTTPConfig    `yaml:"http"`
	Logging LoggingConfig `yaml:"logging"`
}

// RobotConfig contains the connection parameters for the robot.
type RobotConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Login          string `yaml:"login"`
	Password       string `yaml:"password"`
	ConnectTimeout int    `yaml:"connect_timeout"` // seconds
	DefaultVolume  int    `yaml:"default_volume"`  // 0-100, applied on activate
}

// DriveConfig contains motor speeds and stop-debounce delays.
type DriveConfig struct {
	ForwardSpeed  int `yaml:"forward_speed"`  // 0-100
	BackwardSpeed int `yaml:"backward_speed"` // 0-100
	TurningSpeed  int `yaml:"turning_speed"`  // 0-100
	ForwardStopMs int `yaml:"forward_stop_ms"`
	TurnStopMs    int `yaml:"turn_stop_ms"`
}

// AudioConfig contains pacing ring geometry and the optional spool directory.
type AudioConfig struct {
	Buffers       int    `yaml:"buffers"`
	DropThreshold int    `yaml:"drop_threshold"`
	SpoolDir      string `yaml:"spool_dir"`
}

// HTTPConfig contains the debug/monitoring HTTP server configuration.
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns a configuration with working defaults for everything
// except the robot address and credentials.
func Default() *Config {
	return &Config{
		Robot: RobotConfig{
			Port:           9000,
			ConnectTimeout: 10,
			DefaultVolume:  50,
		},
		Drive: DriveConfig{
			ForwardSpeed:  100,
			BackwardSpeed: 50,
			TurningSpeed:  15,
			ForwardStopMs: 300,
			TurnStopMs:    200,
		},
		Audio: AudioConfig{
			Buffers:       16,
			DropThreshold: 8,
		},
		HTTP: HTTPConfig{
			Enabled: false,
			Address: "127.0.0.1",
			Port:    8089,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs validation of the complete configuration.
func (c *Config) Validate() error {
	if err := c.Robot.Validate(); err != nil {
		return fmt.Errorf("robot config: %w", err)
	}

	if err := c.Drive.Validate(); err != nil {
		return fmt.Errorf("drive config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates the robot connection configuration.
func (r *RobotConfig) Validate() error {
	if r.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}

	if r.Port < 1 || r.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", r.Port)
	}

	if r.ConnectTimeout < 1 {
		return fmt.Errorf("connect_timeout must be at least 1 second, got %d", r.ConnectTimeout)
	}

	if r.DefaultVolume < 0 || r.DefaultVolume > 100 {
		return fmt.Errorf("default_volume must be between 0 and 100, got %d", r.DefaultVolume)
	}

	return nil
}

// Validate validates the drive configuration.
func (d *DriveConfig) Validate() error {
	for name, speed := range map[string]int{
		"forward_speed":  d.ForwardSpeed,
		"backward_speed": d.BackwardSpeed,
		"turning_speed":  d.TurningSpeed,
	} {
		if speed < 0 || speed > 100 {
			return fmt.Errorf("%s must be between 0 and 100, got %d", name, speed)
		}
	}

	if d.ForwardStopMs < 1 {
		return fmt.Errorf("forward_stop_ms must be positive, got %d", d.ForwardStopMs)
	}

	if d.TurnStopMs < 1 {
		return fmt.Errorf("turn_stop_ms must be positive, got %d", d.TurnStopMs)
	}

	return nil
}

// Validate validates the audio configuration.
func (a *AudioConfig) Validate() error {
	if a.Buffers < 2 {
		return fmt.Errorf("buffers must be at least 2, got %d", a.Buffers)
	}

	if a.DropThreshold < 1 || a.DropThreshold > a.Buffers {
		return fmt.Errorf("drop_threshold must be between 1 and buffers (%d), got %d", a.Buffers, a.DropThreshold)
	}

	return nil
}

// Validate validates the HTTP configuration.
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates the logging configuration.
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetConnectTimeout returns the connect timeout as a time.Duration.
func (r *RobotConfig) GetConnectTimeout() time.Duration {
	return time.Duration(r.ConnectTimeout) * time.Second
}

// GetForwardStopDelay returns the forward stop-debounce delay as a time.Duration.
func (d *DriveConfig) GetForwardStopDelay() time.Duration {
	return time.Duration(d.ForwardStopMs) * time.Millisecond
}

// GetTurnStopDelay returns the stop-debounce delay for turns and reverse
// movement as a time.Duration.
func (d *DriveConfig) GetTurnStopDelay() time.Duration {
	return time.Duration(d.TurnStopMs) * time.Millisecond
}
