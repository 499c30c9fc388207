// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package optoforce

import (
	"fmt"
	"strings"
)

// Variant identifies a sensor packet layout
type Variant int

// Supported sensor variants
const (
	VariantCompact Variant = iota
	VariantExtendedTorque
	VariantMultiSensor
)

// PacketFormat describes one fixed packet layout. The header participates in
// the checksum and is used for stream synchronization.
type PacketFormat struct {
	Variant   Variant
	Header    []byte
	TotalSize int

	// ForceTriples is the number of scaled (Fx, Fy, Fz) groups in the body
	ForceTriples int
	// TorqueAxes is the number of raw torque samples following the forces
	TorqueAxes int
}

var formats = map[Variant]PacketFormat{
	VariantCompact: {
		Variant:      VariantCompact,
		Header:       HeaderCompact,
		TotalSize:    SizeCompact,
		ForceTriples: 1,
	},
	VariantExtendedTorque: {
		Variant:      VariantExtendedTorque,
		Header:       HeaderExtendedTorque,
		TotalSize:    SizeExtendedTorque,
		ForceTriples: 1,
		TorqueAxes:   3,
	},
	VariantMultiSensor: {
		Variant:      VariantMultiSensor,
		Header:       HeaderMultiSensor,
		TotalSize:    SizeMultiSensor,
		ForceTriples: 4,
	},
}

// FormatFor returns the packet format of a variant
func FormatFor(v Variant) (PacketFormat, error) {
	f, ok := formats[v]
	if !ok {
		return PacketFormat{}, &ConfigError{Field: "variant", Value: fmt.Sprintf("%d", int(v))}
	}
	return f, nil
}

// BodySize returns the number of bytes following the header
func (f PacketFormat) BodySize() int {
	return f.TotalSize - len(f.Header)
}

// Samples returns the number of signed 16-bit samples in the body
func (f PacketFormat) Samples() int {
	return f.ForceTriples*3 + f.TorqueAxes
}

// String returns the variant name
func (v Variant) String() string {
	switch v {
	case VariantCompact:
		return "compact"
	case VariantExtendedTorque:
		return "extended-torque"
	case VariantMultiSensor:
		return "multi-sensor"
	default:
		return fmt.Sprintf("Variant(%d)", int(v))
	}
}

// ParseVariant accepts a variant name or its packet size ("16", "22", "34")
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "compact", "16":
		return VariantCompact, nil
	case "extended-torque", "torque", "22":
		return VariantExtendedTorque, nil
	case "multi-sensor", "multi", "34":
		return VariantMultiSensor, nil
	default:
		return 0, &ConfigError{Field: "variant", Value: s}
	}
}
