// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Henrik Olsson

// Package firmware installs programmer firmware images onto the controller
// board, shelling out to avrdude.
package firmware

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Flasher installs a firmware image onto the board attached to a serial port.
type Flasher interface {
	Install(ctx context.Context, board, port string) error
}

// boardParams holds the avrdude invocation parameters per supported board.
type boardParams struct {
	part       string
	programmer string
	baudRate   string
}

var boards = map[string]boardParams{
	"uno":      {part: "atmega328p", programmer: "arduino", baudRate: "115200"},
	"leonardo": {part: "atmega32u4", programmer: "avr109", baudRate: "57600"},
}

// SupportedBoards lists the board names Install accepts.
func SupportedBoards() []string {
	return []string{"uno", "leonardo"}
}

// Avrdude flashes firmware images through the avrdude command line tool.
type Avrdude struct {
	// Path is the avrdude executable; "avrdude" from $PATH when empty.
	Path string
	// ConfigPath is passed as -C when set.
	ConfigPath string
	// ImagePath is the Intel HEX image to flash.
	ImagePath string
	// Output receives avrdude's combined output; discarded when nil.
	Output func(line string)
}

var _ Flasher = (*Avrdude)(nil)

// Install flashes the image onto the board attached to port.
func (a *Avrdude) Install(ctx context.Context, board, port string) error {
	params, ok := boards[board]
	if !ok {
		return fmt.Errorf("unsupported board %q (supported: %s)",
			board, strings.Join(SupportedBoards(), ", "))
	}
	if a.ImagePath == "" {
		return fmt.Errorf("no firmware image configured")
	}

	path := a.Path
	if path == "" {
		path = "avrdude"
	}
	args := []string{
		"-p" + params.part,
		"-c" + params.programmer,
		"-P" + port,
		"-b" + params.baudRate,
		"-D",
		"-Uflash:w:" + a.ImagePath + ":i",
	}
	if a.ConfigPath != "" {
		args = append([]string{"-C" + a.ConfigPath}, args...)
	}

	cmd := exec.CommandContext(ctx, path, args...)
	out, err := cmd.CombinedOutput()
	if a.Output != nil {
		for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
			a.Output(line)
		}
	}
	if err != nil {
		return fmt.Errorf("avrdude failed for board %s on %s: %w", board, port, err)
	}
	return nil
}
