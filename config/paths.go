// ABOUTME: XDG-based config and state directory resolution for the mop client.
// ABOUTME: Checks XDG_CONFIG_HOME / XDG_STATE_HOME, falls back to ~/.config/mop and ~/.local/state/mop.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const appName = "mop"

// ConfigDir returns the directory holding config.yaml.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", appName), nil
}

// StateDir returns the directory for logs and other run state.
func StateDir() (string, error) {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".local", "state", appName), nil
}

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// DefaultLogFile returns the log file used while a TUI owns the terminal.
func DefaultLogFile() (string, error) {
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "mop.log"), nil
}
