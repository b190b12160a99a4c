// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Henrik Olsson

package cmd

import (
	"fmt"
	"iter"

	"github.com/spf13/cobra"

	"github.com/henols/firestarter-app/pkg/catalog"
)

var listVerified bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the devices in the catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := loadCatalog()
		if err != nil {
			return err
		}
		n := printDevices(cat.List(listVerified))
		fmt.Printf("\n%d device(s)\n", n)
		return nil
	},
}

// printDevices renders one line per device, grouped under manufacturer
// headers, and returns the count.
func printDevices(devices iter.Seq[*catalog.DeviceDescriptor]) int {
	n := 0
	manufacturer := ""
	for d := range devices {
		if d.Manufacturer != manufacturer {
			manufacturer = d.Manufacturer
			fmt.Println(titleStyle.Render(manufacturer))
		}
		line := fmt.Sprintf("  %-14s %-8s %10s  pins %d", d.Name, d.ChipType, formatSize(d.MemorySize), d.PinCount)
		if d.Verified {
			line += "  " + verifiedStyle.Render("verified")
		} else {
			line += "  " + dimStyle.Render("unverified")
		}
		fmt.Println(line)
		n++
	}
	return n
}

func init() {
	listCmd.Flags().BoolVar(&listVerified, "verified", false, "Only list verified devices")
	rootCmd.AddCommand(listCmd)
}
