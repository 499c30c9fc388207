// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Thermoquad/optostat/pkg/optoforce"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <word>",
	Short: "Decode a sensor status word",
	Long: `Decode a 16-bit status word without connecting to a sensor.

The word may be given in decimal, hex (0x...) or binary (0b...):
  optostat status 0x1C00
  optostat status 0b0000001000000000
  optostat status 512`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := parseStatusWord(args[0])
		if err != nil {
			return err
		}
		printStatus(cmd.OutOrStdout(), status)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// parseStatusWord accepts decimal, 0x hex or 0b binary, with _ separators
func parseStatusWord(s string) (uint16, error) {
	clean := strings.ReplaceAll(strings.TrimSpace(s), "_", "")
	v, err := strconv.ParseUint(clean, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid status word %q: %w", s, err)
	}
	return uint16(v), nil
}

func printStatus(w io.Writer, status uint16) {
	fmt.Fprintf(w, "Status: 0x%04X (%016b)\n", status, status)
	fmt.Fprintf(w, "no_errors: %t\n", optoforce.NoErrors(status))
	fmt.Fprint(w, optoforce.FormatStatus(status))
}
