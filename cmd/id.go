// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Henrik Olsson

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/henols/firestarter-app/pkg/engine"
)

var idCmd = &cobra.Command{
	Use:   "id <device>",
	Short: "Read the device's chip identification word",
	Long: `Reads the chip id from the inserted device and compares it against the
catalog entry. Devices without a readable chip id are rejected.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		device := args[0]

		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			desc, err := eng.Catalog().Resolve(device)
			if err != nil {
				return err
			}
			id, err := eng.ChipID(ctx, device)
			if err != nil {
				return err
			}
			fmt.Printf("Chip id: 0x%04X\n", id)
			if id == desc.ChipID {
				fmt.Printf("Matches %s\n", desc.Name)
				return nil
			}
			fmt.Printf("Expected 0x%04X for %s\n", desc.ChipID, desc.Name)
			for other := range eng.Catalog().SearchByChipID(id) {
				fmt.Printf("Id belongs to %s %s\n", other.Manufacturer, other.Name)
			}
			return fmt.Errorf("chip id mismatch")
		})
	},
}

func init() {
	rootCmd.AddCommand(idCmd)
}
