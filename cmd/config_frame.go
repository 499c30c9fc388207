// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"

	"github.com/Thermoquad/optostat/pkg/optoforce"
	"github.com/spf13/cobra"
)

var configFrameCmd = &cobra.Command{
	Use:   "config_frame",
	Short: "Print the configuration frame for the selected settings",
	Long: `Print the 9-byte configuration frame that is sent to the sensor on connect,
built from --speed, --filter and --zero. No port is opened.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, frame, err := settings.SensorSettings()
		if err != nil {
			return err
		}
		printConfigFrame(cmd.OutOrStdout(), frame)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configFrameCmd)
}

func printConfigFrame(w io.Writer, frame optoforce.ConfigFrame) {
	fmt.Fprintf(w, "% X\n", frame.Bytes())
	fmt.Fprintf(w, "  speed code:  %d\n", frame.SpeedCode())
	fmt.Fprintf(w, "  filter code: %d\n", frame.FilterCode())
	fmt.Fprintf(w, "  zero flag:   0x%02X\n", frame.ZeroFlag())
	fmt.Fprintf(w, "  checksum:    0x%04X\n", frame.Checksum())
}
