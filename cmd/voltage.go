// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Henrik Olsson

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/henols/firestarter-app/pkg/engine"
)

var voltageMonitor bool

var vppCmd = &cobra.Command{
	Use:   "vpp",
	Short: "Measure the programmer's VPP rail",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVoltage(false)
	},
}

var vpeCmd = &cobra.Command{
	Use:   "vpe",
	Short: "Measure the programmer's VPE rail",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVoltage(true)
	},
}

func runVoltage(vpe bool) error {
	rail := "VPP"
	if vpe {
		rail = "VPE"
	}
	return withEngine(func(ctx context.Context, eng *engine.Engine) error {
		if voltageMonitor {
			err := eng.MonitorVoltage(ctx, vpe, time.Second, func(mv int) {
				fmt.Printf("\r%s: %6.2f V", rail, float64(mv)/1000)
			})
			fmt.Fprintln(os.Stderr)
			// Ctrl-C ends monitoring, it is not a failure.
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		var mv int
		var err error
		if vpe {
			mv, err = eng.ReadVpe(ctx)
		} else {
			mv, err = eng.ReadVpp(ctx)
		}
		if err != nil {
			return err
		}
		fmt.Printf("%s: %.2f V\n", rail, float64(mv)/1000)
		return nil
	})
}

func init() {
	for _, cmd := range []*cobra.Command{vppCmd, vpeCmd} {
		cmd.Flags().BoolVarP(&voltageMonitor, "monitor", "m", false, "Keep measuring until interrupted")
		rootCmd.AddCommand(cmd)
	}
}
