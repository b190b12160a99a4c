// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Henrik Olsson
//
// Firestarter - EPROM and memory device programmer
//
// A CLI tool for reading, writing and erasing EPROM, EEPROM, flash and
// SRAM devices through the RURP programmer shield.

package main

import (
	"os"

	"github.com/henols/firestarter-app/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
