// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package optoforce

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Checksum sums the header and every body byte except the trailing checksum
// field, mod 65536. A body shorter than the checksum field sums to the header.
func Checksum(header, body []byte) uint16 {
	var sum uint16
	for _, b := range header {
		sum += uint16(b)
	}
	end := len(body) - checksumSize
	for i := 0; i < end; i++ {
		sum += uint16(body[i])
	}
	return sum
}

// Decode parses a packet body (everything after the header) into a Reading.
// The body must be exactly f.BodySize() bytes long. Timestamp is left zero.
func Decode(f PacketFormat, header, body []byte) (*Reading, error) {
	if len(body) != f.BodySize() {
		return nil, fmt.Errorf("%w: %s expects %d bytes, got %d", ErrLengthMismatch, f.Variant, f.BodySize(), len(body))
	}

	r := &Reading{
		Variant: f.Variant,
		Count:   binary.BigEndian.Uint16(body[0:]),
		Status:  binary.BigEndian.Uint16(body[countSize:]),
		Forces:  make([]Force, f.ForceTriples),
	}

	offset := countSize + statusSize
	sample := func() int16 {
		v := int16(binary.BigEndian.Uint16(body[offset:]))
		offset += sampleSize
		return v
	}

	for i := range r.Forces {
		r.Forces[i] = Force{
			X: float64(sample()) * FxScale,
			Y: float64(sample()) * FyScale,
			Z: float64(sample()) * FzScale,
		}
	}
	if f.TorqueAxes == 3 {
		r.Torque = &Torque{X: sample(), Y: sample(), Z: sample()}
	}

	r.Checksum = binary.BigEndian.Uint16(body[offset:])
	r.ChecksumValid = Checksum(header, body) == r.Checksum
	return r, nil
}

// EncodePacket builds a wire packet (header included) carrying the reading's
// values with a correct checksum. Forces are converted back to raw counts.
// Used by replay tooling and tests; sensors never receive these packets.
func EncodePacket(f PacketFormat, r *Reading) ([]byte, error) {
	if len(r.Forces) != f.ForceTriples {
		return nil, fmt.Errorf("%s needs %d force triples, got %d", f.Variant, f.ForceTriples, len(r.Forces))
	}
	if f.TorqueAxes > 0 && r.Torque == nil {
		return nil, fmt.Errorf("%s needs torque values", f.Variant)
	}

	packet := make([]byte, 0, f.TotalSize)
	packet = append(packet, f.Header...)
	packet = binary.BigEndian.AppendUint16(packet, r.Count)
	packet = binary.BigEndian.AppendUint16(packet, r.Status)
	for _, force := range r.Forces {
		packet = binary.BigEndian.AppendUint16(packet, uint16(rawCount(force.X, FxScale)))
		packet = binary.BigEndian.AppendUint16(packet, uint16(rawCount(force.Y, FyScale)))
		packet = binary.BigEndian.AppendUint16(packet, uint16(rawCount(force.Z, FzScale)))
	}
	if f.TorqueAxes > 0 {
		packet = binary.BigEndian.AppendUint16(packet, uint16(r.Torque.X))
		packet = binary.BigEndian.AppendUint16(packet, uint16(r.Torque.Y))
		packet = binary.BigEndian.AppendUint16(packet, uint16(r.Torque.Z))
	}
	// placeholder so Checksum skips the trailing field
	packet = append(packet, 0, 0)

	sum := Checksum(f.Header, packet[len(f.Header):])
	binary.BigEndian.PutUint16(packet[len(packet)-checksumSize:], sum)
	return packet, nil
}

func rawCount(value, scale float64) int16 {
	v := math.Round(value / scale)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
