// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package optoforce

import (
	"fmt"
	"strings"
)

// FormatReading formats a reading into a human-readable string
func FormatReading(r *Reading) string {
	timestamp := r.Timestamp.Format("15:04:05.000")

	checksum := "OK"
	if !r.ChecksumValid {
		checksum = "MISMATCH"
	}

	result := fmt.Sprintf("[%s] %s count=%d status=0x%04X checksum=0x%04X (%s)\n",
		timestamp, r.Variant, r.Count, r.Status, r.Checksum, checksum)

	for i, f := range r.Forces {
		label := "Force"
		if len(r.Forces) > 1 {
			label = fmt.Sprintf("Force %d", i+1)
		}
		result += fmt.Sprintf("  %s: Fx=%9.4f N  Fy=%9.4f N  Fz=%9.4f N\n", label, f.X, f.Y, f.Z)
	}

	if r.Torque != nil {
		result += fmt.Sprintf("  Torque (raw, unscaled): Tx=%d  Ty=%d  Tz=%d\n", r.Torque.X, r.Torque.Y, r.Torque.Z)
	}

	if !NoErrors(r.Status) {
		result += FormatStatus(r.Status)
	}

	return result
}

// FormatStatus formats every decoded field of a status word
func FormatStatus(status uint16) string {
	report := DecodeStatus(status)

	axes := "none"
	if len(report.Overloaded) > 0 {
		names := make([]string, len(report.Overloaded))
		for i, a := range report.Overloaded {
			names[i] = a.String()
		}
		axes = strings.Join(names, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "  Status: 0x%04X (0b%016b)\n", status, status)
	fmt.Fprintf(&b, "    DAQ:        %s\n", report.DAQ)
	fmt.Fprintf(&b, "    Sensor:     %s\n", report.Sensor)
	fmt.Fprintf(&b, "    Overloaded: %s\n", axes)
	fmt.Fprintf(&b, "    Sensors:    %s, %s\n", report.Multiplicity, report.SensorIndex)
	return b.String()
}

// FormatCSVHeader returns the column names matching FormatCSVRow for a format
func FormatCSVHeader(f PacketFormat) []string {
	cols := []string{"time", "count", "status"}
	for i := 0; i < f.ForceTriples; i++ {
		suffix := ""
		if f.ForceTriples > 1 {
			suffix = fmt.Sprintf("%d", i+1)
		}
		cols = append(cols, "Fx"+suffix+" [N]", "Fy"+suffix+" [N]", "Fz"+suffix+" [N]")
	}
	if f.TorqueAxes > 0 {
		cols = append(cols, "Tx [raw]", "Ty [raw]", "Tz [raw]")
	}
	return append(cols, "checksum", "checksum_valid")
}

// FormatCSVRow renders a reading as CSV fields
func FormatCSVRow(r *Reading) []string {
	row := []string{
		r.Timestamp.Format("15:04:05.000000"),
		fmt.Sprintf("%d", r.Count),
		fmt.Sprintf("%d", r.Status),
	}
	for _, f := range r.Forces {
		row = append(row, fmt.Sprintf("%g", f.X), fmt.Sprintf("%g", f.Y), fmt.Sprintf("%g", f.Z))
	}
	if r.Torque != nil {
		row = append(row, fmt.Sprintf("%d", r.Torque.X), fmt.Sprintf("%d", r.Torque.Y), fmt.Sprintf("%d", r.Torque.Z))
	}
	return append(row, fmt.Sprintf("%d", r.Checksum), fmt.Sprintf("%t", r.ChecksumValid))
}
