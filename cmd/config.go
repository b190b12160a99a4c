// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Henrik Olsson

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/henols/firestarter-app/pkg/engine"
)

var (
	configRev    int
	configR16    int
	configR14R15 int
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Update the programmer's persistent settings",
	Long: `Updates settings stored in the programmer's EEPROM: the hardware revision
override (--rev, 0xFF disables the override) and the measured values of the
voltage divider resistors (--r16, --r14-r15, in ohms) used to calibrate the
VPP and VPE readings. Flags left at their defaults keep the stored values.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			msg, err := eng.SetConfig(ctx, configRev, configR16, configR14R15)
			if err != nil {
				return err
			}
			if msg != "" {
				fmt.Println(msg)
			} else {
				fmt.Println("Configuration updated")
			}
			return nil
		})
	},
}

func init() {
	configCmd.Flags().IntVar(&configRev, "rev", -1, "Hardware revision override (0xFF disables)")
	configCmd.Flags().IntVar(&configR16, "r16", 0, "Measured R16 resistance, ohms")
	configCmd.Flags().IntVar(&configR14R15, "r14-r15", 0, "Measured R14+R15 resistance, ohms")
	rootCmd.AddCommand(configCmd)
}
