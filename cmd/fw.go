// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Henrik Olsson

package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/henols/firestarter-app/pkg/engine"
	"github.com/henols/firestarter-app/pkg/firmware"
	"github.com/henols/firestarter-app/pkg/rurp"
)

var (
	fwInstall     bool
	fwBoard       string
	fwImage       string
	fwAvrdudePath string
	fwAvrdudeConf string
)

var fwCmd = &cobra.Command{
	Use:   "fw",
	Short: "Show or install the programmer firmware",
	Long: `Without flags, reports the firmware version running on the programmer and
the latest published release. With --install, flashes the latest release
(or a local image given with --image) onto the board using avrdude.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if fwInstall {
			return installFirmware(cmd.Context())
		}
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			fw, hw, err := eng.FirmwareVersion(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Firmware version: %s (hardware %s)\n", fw, hw)

			rel, err := firmware.LatestRelease(ctx)
			if err != nil {
				fmt.Fprintf(os.Stderr, "could not check for updates: %v\n", err)
				return nil
			}
			if rurp.VersionAtLeast(fw, rel.Version()) {
				fmt.Println("Firmware is up to date")
			} else {
				fmt.Printf("Version %s is available, install with: firestarter fw --install\n", rel.Version())
			}
			return nil
		})
	},
}

func installFirmware(ctx context.Context) error {
	if !isSupportedBoard(fwBoard) {
		return fmt.Errorf("unsupported board %q (supported: %s)",
			fwBoard, strings.Join(firmware.SupportedBoards(), ", "))
	}
	if portName == "" {
		return fmt.Errorf("firmware install needs an explicit --port")
	}

	image := fwImage
	if image == "" {
		rel, err := firmware.LatestRelease(ctx)
		if err != nil {
			return err
		}
		asset := rel.Asset(fwBoard)
		if asset == nil {
			return fmt.Errorf("release %s has no image for board %s", rel.Tag, fwBoard)
		}
		dir, err := settingsDir()
		if err != nil {
			return err
		}
		fmt.Printf("Downloading %s (%d bytes)...\n", asset.Name, asset.Size)
		image, err = firmware.Download(ctx, asset, filepath.Join(dir, "firmware"))
		if err != nil {
			return err
		}
	}

	flasher := &firmware.Avrdude{
		Path:       fwAvrdudePath,
		ConfigPath: fwAvrdudeConf,
		ImagePath:  image,
	}
	if verbose {
		flasher.Output = func(line string) { fmt.Fprintln(os.Stderr, line) }
	}

	fmt.Printf("Flashing %s onto %s board at %s...\n", filepath.Base(image), fwBoard, portName)
	if err := flasher.Install(ctx, fwBoard, portName); err != nil {
		return err
	}
	fmt.Println("Firmware installed")
	return nil
}

func isSupportedBoard(board string) bool {
	for _, b := range firmware.SupportedBoards() {
		if b == board {
			return true
		}
	}
	return false
}

func init() {
	fwCmd.Flags().BoolVar(&fwInstall, "install", false, "Flash the firmware onto the board")
	fwCmd.Flags().StringVar(&fwBoard, "board", "uno", "Board type (uno, leonardo)")
	fwCmd.Flags().StringVar(&fwImage, "image", "", "Local firmware image (default: download latest release)")
	fwCmd.Flags().StringVar(&fwAvrdudePath, "avrdude-path", "", "avrdude executable")
	fwCmd.Flags().StringVar(&fwAvrdudeConf, "avrdude-config", "", "avrdude configuration file")
	rootCmd.AddCommand(fwCmd)
}
