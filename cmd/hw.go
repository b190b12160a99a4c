// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Henrik Olsson

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/henols/firestarter-app/pkg/engine"
)

var hwCmd = &cobra.Command{
	Use:   "hw",
	Short: "Show the programmer's hardware revision",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			rev, err := eng.HardwareRevision(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Hardware revision: %s\n", rev)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(hwCmd)
}
