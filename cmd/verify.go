// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Henrik Olsson

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/henols/firestarter-app/pkg/engine"
)

var verifyAddress string

var verifyCmd = &cobra.Command{
	Use:   "verify <device> <input-file>",
	Short: "Compare device contents against a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		device, input := args[0], args[1]

		address, err := parseNumber(verifyAddress)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(input)
		if err != nil {
			return fmt.Errorf("reading %s: %w", input, err)
		}

		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			err := eng.Verify(ctx, engine.VerifyRequest{
				Device:  device,
				Data:    data,
				Address: address,
			})
			var verr *engine.VerificationError
			if errors.As(err, &verr) {
				return fmt.Errorf("contents differ at 0x%04X: expected 0x%02X, device reads 0x%02X",
					verr.Offset, verr.Expected, verr.Actual)
			}
			if err != nil {
				return err
			}
			fmt.Printf("Device matches %s (%d bytes)\n", input, len(data))
			return nil
		})
	},
}

func init() {
	verifyCmd.Flags().StringVarP(&verifyAddress, "address", "a", "0", "Start address")
	rootCmd.AddCommand(verifyCmd)
}
