// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Henrik Olsson

package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket bridge flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "firestarter",
	Short: "EPROM and memory device programmer",
	Long: `Firestarter - A CLI tool for reading, writing and erasing EPROM, EEPROM,
flash and SRAM devices through the RURP programmer shield.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 250000]  (auto-detected when omitted)
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the FIRESTARTER_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version: "2.1.0",
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device (auto-detect when empty)")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 250000, "Baud rate (serial only)")

	// WebSocket bridge flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket bridge URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
