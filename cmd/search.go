// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Henrik Olsson

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var searchChipID string

var searchCmd = &cobra.Command{
	Use:   "search [name]",
	Short: "Search the catalog by name or chip id",
	Long: `Searches the catalog for devices whose name contains the given text, or,
with --chip-id, for devices carrying the given identification word.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if searchChipID == "" && len(args) == 0 {
			return fmt.Errorf("give a name fragment or --chip-id")
		}

		cat, err := loadCatalog()
		if err != nil {
			return err
		}

		var n int
		if searchChipID != "" {
			id, err := parseNumber(searchChipID)
			if err != nil {
				return err
			}
			n = printDevices(cat.SearchByChipID(uint16(id)))
		} else {
			n = printDevices(cat.Search(args[0]))
		}
		if n == 0 {
			return fmt.Errorf("no matching devices")
		}
		fmt.Printf("\n%d device(s)\n", n)
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchChipID, "chip-id", "", "Search by identification word")
	rootCmd.AddCommand(searchCmd)
}
