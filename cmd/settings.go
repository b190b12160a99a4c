// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Henrik Olsson

package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/henols/firestarter-app/pkg/catalog"
)

// settings is the persisted user configuration under ~/.firestarter.
type settings struct {
	// Port is the last serial port a programmer answered on; tried first
	// during auto-detection.
	Port string `json:"port,omitempty"`
}

func settingsDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".firestarter"), nil
}

func settingsPath() (string, error) {
	dir, err := settingsDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// loadSettings reads the user configuration; a missing file yields defaults.
func loadSettings() settings {
	var s settings
	path, err := settingsPath()
	if err != nil {
		return s
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return s
	}
	// Malformed settings are ignored rather than fatal.
	_ = json.Unmarshal(data, &s)
	return s
}

// saveSettings writes the user configuration, creating ~/.firestarter.
func saveSettings(s settings) error {
	dir, err := settingsDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0o644)
}

// rememberPort persists the port a programmer was found on. Best effort.
func rememberPort(port string) {
	s := loadSettings()
	if s.Port == port {
		return
	}
	s.Port = port
	if err := saveSettings(s); err != nil && verbose {
		fmt.Fprintf(os.Stderr, "warning: could not save settings: %v\n", err)
	}
}

// loadCatalog builds the device catalog with the user's override files
// from ~/.firestarter applied on top of the embedded data.
func loadCatalog() (*catalog.Catalog, error) {
	opts := catalog.Options{}
	if dir, err := settingsDir(); err == nil {
		opts.DeviceOverridePath = filepath.Join(dir, "database.json")
		opts.PinMapOverridePath = filepath.Join(dir, "pin-maps.json")
	}
	cat, err := catalog.Load(opts)
	if err != nil {
		return nil, fmt.Errorf("loading device catalog: %w", err)
	}
	return cat, nil
}
