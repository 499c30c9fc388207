// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package optoforce

import "time"

// Force is one scaled force triple in newtons
type Force struct {
	X float64 `json:"fx" cbor:"1,keyasint"`
	Y float64 `json:"fy" cbor:"2,keyasint"`
	Z float64 `json:"fz" cbor:"3,keyasint"`
}

// Torque holds raw, unscaled torque counts of the extended-torque variant
type Torque struct {
	X int16 `json:"tx" cbor:"1,keyasint"`
	Y int16 `json:"ty" cbor:"2,keyasint"`
	Z int16 `json:"tz" cbor:"3,keyasint"`
}

// Reading is one decoded packet. ChecksumValid is computed from the received
// bytes; consumers must check it before trusting the values.
type Reading struct {
	Variant Variant `json:"variant" cbor:"0,keyasint"`

	// Count is the sensor's sequence number (mod 2^16). It is reported, not enforced.
	Count  uint16 `json:"count" cbor:"1,keyasint"`
	Status uint16 `json:"status" cbor:"2,keyasint"`

	// Forces has one entry per sensor: 1 for compact and extended, 4 for multi-sensor
	Forces []Force `json:"forces" cbor:"3,keyasint"`
	Torque *Torque `json:"torque,omitempty" cbor:"4,keyasint,omitempty"`

	Checksum      uint16 `json:"checksum" cbor:"5,keyasint"`
	ChecksumValid bool   `json:"checksum_valid" cbor:"6,keyasint"`

	Timestamp time.Time `json:"timestamp" cbor:"7,keyasint"`
}

// Fx returns the first sensor's X force
func (r *Reading) Fx() float64 { return r.force(0).X }

// Fy returns the first sensor's Y force
func (r *Reading) Fy() float64 { return r.force(0).Y }

// Fz returns the first sensor's Z force
func (r *Reading) Fz() float64 { return r.force(0).Z }

func (r *Reading) force(i int) Force {
	if i < len(r.Forces) {
		return r.Forces[i]
	}
	return Force{}
}

// NoErrors reports whether the reading carries a zero status word
func (r *Reading) NoErrors() bool {
	return NoErrors(r.Status)
}

// StatusReport decodes the reading's status word
func (r *Reading) StatusReport() StatusReport {
	return DecodeStatus(r.Status)
}

// Usable reports whether the checksum matched and the status word is clear
func (r *Reading) Usable() bool {
	return r.ChecksumValid && r.NoErrors()
}
