// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Optostat - OptoForce Sensor Telemetry Tool
//
// A CLI tool for configuring OptoForce force/torque sensors and decoding
// their binary telemetry stream in human-readable form.

package main

import (
	"os"

	"github.com/Thermoquad/optostat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
