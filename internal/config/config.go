// Package config provides environment-based configuration helpers for
// gazebot commands. Flags take precedence; these supply the fallbacks.
package config

import (
	"os"
	"path/filepath"
)

// Default endpoints for a local setup.
const (
	DefaultSimURL        = "ws://localhost:23050/ws"
	DefaultGazeURL       = "ws://localhost:9810/gaze"
	DefaultJoystickURL   = "ws://localhost:9811/joystick"
	DefaultMQTTBroker    = "tcp://localhost:1883"
	DefaultDashboardPort = "8090"
)

// env returns the variable's value or the fallback when unset.
func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// SimURL returns the simulator bridge websocket URL (GAZEBOT_SIM_URL).
func SimURL() string {
	return env("GAZEBOT_SIM_URL", DefaultSimURL)
}

// GazeURL returns the eye tracker stream URL (GAZEBOT_GAZE_URL).
func GazeURL() string {
	return env("GAZEBOT_GAZE_URL", DefaultGazeURL)
}

// JoystickURL returns the joystick stream URL (GAZEBOT_JOYSTICK_URL).
func JoystickURL() string {
	return env("GAZEBOT_JOYSTICK_URL", DefaultJoystickURL)
}

// MQTTBroker returns the telemetry broker address (GAZEBOT_MQTT_BROKER).
func MQTTBroker() string {
	return env("GAZEBOT_MQTT_BROKER", DefaultMQTTBroker)
}

// DashboardPort returns the dashboard listen port (GAZEBOT_DASHBOARD_PORT).
func DashboardPort() string {
	return env("GAZEBOT_DASHBOARD_PORT", DefaultDashboardPort)
}

// DataDir returns the directory for persisted state (GAZEBOT_DATA_DIR),
// defaulting to ~/.gazebot.
func DataDir() string {
	if dir := os.Getenv("GAZEBOT_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".gazebot"
	}
	return filepath.Join(home, ".gazebot")
}
