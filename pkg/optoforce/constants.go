// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package optoforce decodes the binary telemetry stream of OptoForce multi-axis
// force/torque sensors and encodes the configuration frame sent at connect time.
//
// Three packet layouts exist (compact, extended-torque and multi-sensor). A
// connection selects one PacketFormat when it is opened and keeps it for its
// lifetime. Decoding is pure; only FrameReader touches the byte stream.
package optoforce

// Force scale factors from the sensor datasheet calibration (N per count).
// Torque samples of the extended variant are left raw: its calibration
// constant is not documented.
const (
	FxScale = 300.0 / 7925.0
	FyScale = 300.0 / 8641.0
	FzScale = 2000.0 / 6049.0
)

// Serial line parameters from the datasheet
const (
	DefaultBaudRate = 1000000
	DataBits        = 8
	StopBits        = 1
)

// Incoming packet headers
var (
	HeaderCompact        = []byte{0xAA, 0x07, 0x08, 0x0A}
	HeaderExtendedTorque = []byte{0xAA, 0x07, 0x08, 0x10}
	HeaderMultiSensor    = []byte{0xAA, 0x07, 0x08, 0x1C}
)

// Total packet sizes, header included
const (
	SizeCompact        = 16
	SizeExtendedTorque = 22
	SizeMultiSensor    = 34
)

// Body field sizes
const (
	countSize    = 2
	statusSize   = 2
	sampleSize   = 2
	checksumSize = 2
)

// Outgoing configuration frame
const (
	ConfigFrameSize = 9
	ZeroBiasOn      = 0xFF
	ZeroBiasOff     = 0x00
)

// configHeader starts every configuration frame
var configHeader = [4]byte{0xAA, 0x00, 0x32, 0x03}
