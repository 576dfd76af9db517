// Package config provides configuration loading and validation for the
// Spykee remote client. It handles YAML-based configuration with struct
// validation covering the robot link, drive, audio, HTTP and logging layers.
package config
