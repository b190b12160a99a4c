// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Henrik Olsson

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/henols/firestarter-app/pkg/engine"
)

var (
	writeAddress          string
	writeForce            bool
	writeIgnoreBlankCheck bool
	writeVpeAsVpp         bool
	writeSkipVerify       bool
)

var writeCmd = &cobra.Command{
	Use:   "write <device> <input-file>",
	Short: "Write a file to the device",
	Long: `Programs the file contents into the device. Before writing, the chip id
and programming voltage are checked against the catalog (--force skips
this), and the target range is blank checked and erased when needed
(--ignore-blank-check skips both). The written range is read back and
compared afterwards unless --skip-verify is given.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		device, input := args[0], args[1]

		address, err := parseNumber(writeAddress)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(input)
		if err != nil {
			return fmt.Errorf("reading %s: %w", input, err)
		}

		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			err := eng.Write(ctx, engine.WriteRequest{
				Device:           device,
				Data:             data,
				Address:          address,
				Force:            writeForce,
				IgnoreBlankCheck: writeIgnoreBlankCheck,
				VpeAsVpp:         writeVpeAsVpp,
				SkipVerify:       writeSkipVerify,
			})
			if err != nil {
				return err
			}
			fmt.Printf("Wrote %d bytes from %s\n", len(data), input)
			return nil
		})
	},
}

func init() {
	writeCmd.Flags().StringVarP(&writeAddress, "address", "a", "0", "Start address")
	writeCmd.Flags().BoolVarP(&writeForce, "force", "f", false, "Skip chip id and VPP checks")
	writeCmd.Flags().BoolVar(&writeIgnoreBlankCheck, "ignore-blank-check", false, "Skip blank check and erase")
	writeCmd.Flags().BoolVar(&writeVpeAsVpp, "vpe-as-vpp", false, "Route the VPE rail to the VPP pin")
	writeCmd.Flags().BoolVar(&writeSkipVerify, "skip-verify", false, "Skip read-back verification")
	rootCmd.AddCommand(writeCmd)
}
