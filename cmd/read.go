// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Henrik Olsson

package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/henols/firestarter-app/pkg/engine"
)

var (
	readAddress string
	readSize    string
)

var readCmd = &cobra.Command{
	Use:   "read <device> [output-file]",
	Short: "Read device contents to a file",
	Long: `Reads the device contents and writes them to a file. Without an output
file the data goes to <device>.bin in the current directory. Address and
size accept decimal or 0x-prefixed hexadecimal values; size 0 reads to the
end of the device.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		device := args[0]

		address, err := parseNumber(readAddress)
		if err != nil {
			return err
		}
		size, err := parseNumber(readSize)
		if err != nil {
			return err
		}

		output := defaultOutputName(device)
		if len(args) == 2 {
			output = args[1]
		}

		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			data, err := eng.Read(ctx, engine.ReadRequest{
				Device:  device,
				Address: address,
				Size:    size,
			})
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", output, err)
			}
			fmt.Printf("Read %d bytes to %s\n", len(data), output)
			return nil
		})
	},
}

// defaultOutputName derives a file name from a device name.
func defaultOutputName(device string) string {
	name := strings.ToLower(device)
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "/", "_")
	return name + ".bin"
}

func init() {
	readCmd.Flags().StringVarP(&readAddress, "address", "a", "0", "Start address")
	readCmd.Flags().StringVarP(&readSize, "size", "s", "0", "Bytes to read (0 = to end of device)")
	rootCmd.AddCommand(readCmd)
}
