// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Henrik Olsson

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/henols/firestarter-app/pkg/engine"
)

var blankCmd = &cobra.Command{
	Use:   "blank <device>",
	Short: "Check that every byte of the device reads as 0xFF",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		device := args[0]
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			blank, err := eng.BlankCheck(ctx, device)
			if err != nil {
				return err
			}
			if !blank {
				return fmt.Errorf("device is not blank")
			}
			fmt.Println("Device is blank")
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(blankCmd)
}
