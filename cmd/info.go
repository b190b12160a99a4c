// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Henrik Olsson

package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/henols/firestarter-app/pkg/catalog"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("208"))
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(14)
	verifiedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("40"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

var infoCmd = &cobra.Command{
	Use:   "info <device>",
	Short: "Show catalog details for a device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := loadCatalog()
		if err != nil {
			return err
		}
		desc, err := cat.Resolve(args[0])
		if err != nil {
			return err
		}
		fmt.Println(renderDevice(desc))
		return nil
	},
}

func renderDevice(d *catalog.DeviceDescriptor) string {
	var b strings.Builder

	title := fmt.Sprintf("%s %s", d.Manufacturer, d.Name)
	b.WriteString(titleStyle.Render(title))
	if d.Verified {
		b.WriteString(" " + verifiedStyle.Render("verified"))
	}
	b.WriteString("\n")

	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label) + value + "\n")
	}

	row("Type", d.ChipType.String())
	row("Pins", fmt.Sprintf("%d (pin map %d)", d.PinCount, d.PinMapID))
	row("Size", formatSize(d.MemorySize))
	row("Protocol", fmt.Sprintf("0x%02X", d.ProtocolID))
	if d.Vpp > 0 {
		row("VPP", fmt.Sprintf("%d V", d.Vpp))
	}
	if d.PulseDelay > 0 {
		row("Pulse delay", fmt.Sprintf("%d us", d.PulseDelay))
	}
	if d.HasChipID {
		row("Chip id", fmt.Sprintf("0x%04X", d.ChipID))
	}
	row("Erasable", fmt.Sprintf("%v", d.CanErase))
	if d.Flags != 0 {
		row("Flags", fmt.Sprintf("0x%04X", uint32(d.Flags)))
	}
	return b.String()
}

func formatSize(size uint32) string {
	if size >= 1024 && size%1024 == 0 {
		return fmt.Sprintf("%d KiB (%d bytes)", size/1024, size)
	}
	return fmt.Sprintf("%d bytes", size)
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
