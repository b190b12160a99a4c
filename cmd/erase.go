// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Henrik Olsson

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/henols/firestarter-app/pkg/engine"
)

var eraseBlankCheck bool

var eraseCmd = &cobra.Command{
	Use:   "erase <device>",
	Short: "Erase an electrically erasable device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		device := args[0]
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			if err := eng.Erase(ctx, device); err != nil {
				return err
			}
			fmt.Println("Device erased")
			if eraseBlankCheck {
				blank, err := eng.BlankCheck(ctx, device)
				if err != nil {
					return err
				}
				if !blank {
					return fmt.Errorf("device still not blank after erase")
				}
				fmt.Println("Blank check passed")
			}
			return nil
		})
	},
}

func init() {
	eraseCmd.Flags().BoolVar(&eraseBlankCheck, "blank-check", false, "Blank check after erasing")
	rootCmd.AddCommand(eraseCmd)
}
