// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package optoforce

import (
	"errors"
	"io"
	"math"
)

// ============================================================
// Captured Streams
// ============================================================

// capturedLong is a compact-sensor capture: 7 bytes of an unrelated frame,
// 17 complete packets and a dangling header.
var capturedLong = []byte{
	0xAA, 0x00, 0x50, 0x01, 0x00, 0x00, 0xFB, 0xAA, 0x07, 0x08, 0x0A, 0x2D,
	0x6A, 0x00, 0x00, 0xFF, 0xF7, 0xFF, 0xFB, 0x00, 0x07, 0x05, 0x51, 0xAA,
	0x07, 0x08, 0x0A, 0x2D, 0x6B, 0x00, 0x00, 0xFF, 0xF9, 0xFF, 0xFE, 0x00,
	0x0C, 0x05, 0x5C, 0xAA, 0x07, 0x08, 0x0A, 0x2D, 0x6C, 0x00, 0x00, 0xFF,
	0xF3, 0x00, 0x01, 0x00, 0x0A, 0x03, 0x59, 0xAA, 0x07, 0x08, 0x0A, 0x2D,
	0x6D, 0x00, 0x00, 0xFF, 0xF3, 0x00, 0x02, 0x00, 0x0D, 0x03, 0x5E, 0xAA,
	0x07, 0x08, 0x0A, 0x2D, 0x6E, 0x00, 0x00, 0xFF, 0xF6, 0x00, 0x03, 0x00,
	0x0C, 0x03, 0x62, 0xAA, 0x07, 0x08, 0x0A, 0x2D, 0x6F, 0x00, 0x00, 0xFF,
	0xFB, 0xFF, 0xFF, 0x00, 0x0B, 0x05, 0x62, 0xAA, 0x07, 0x08, 0x0A, 0x2D,
	0x70, 0x00, 0x00, 0xFF, 0xFC, 0xFF, 0xFB, 0x00, 0x0B, 0x05, 0x60, 0xAA,
	0x07, 0x08, 0x0A, 0x2D, 0x71, 0x00, 0x00, 0xFF, 0xF9, 0xFF, 0xF9, 0x00,
	0x0B, 0x05, 0x5C, 0xAA, 0x07, 0x08, 0x0A, 0x2D, 0x72, 0x00, 0x00, 0xFF,
	0xF9, 0xFF, 0xFB, 0x00, 0x09, 0x05, 0x5D, 0xAA, 0x07, 0x08, 0x0A, 0x2D,
	0x73, 0x00, 0x00, 0xFF, 0xFD, 0xFF, 0xFB, 0x00, 0x09, 0x05, 0x62, 0xAA,
	0x07, 0x08, 0x0A, 0x2D, 0x74, 0x00, 0x00, 0xFF, 0xF3, 0xFF, 0xF9, 0x00,
	0x0B, 0x05, 0x59, 0xAA, 0x07, 0x08, 0x0A, 0x2D, 0x75, 0x00, 0x00, 0x00,
	0x00, 0xFF, 0xFA, 0x00, 0x0B, 0x03, 0x69, 0xAA, 0x07, 0x08, 0x0A, 0x2D,
	0x76, 0x00, 0x00, 0xFF, 0xFB, 0xFF, 0xFC, 0x00, 0x09, 0x05, 0x64, 0xAA,
	0x07, 0x08, 0x0A, 0x2D, 0x77, 0x00, 0x00, 0xFF, 0xF9, 0xFF, 0xF6, 0x00,
	0x0A, 0x05, 0x5E, 0xAA, 0x07, 0x08, 0x0A, 0x2D, 0x78, 0x00, 0x00, 0xFF,
	0xF5, 0x00, 0x03, 0x00, 0x0C, 0x03, 0x6B, 0xAA, 0x07, 0x08, 0x0A, 0x2D,
	0x79, 0x00, 0x00, 0xFF, 0xF7, 0x00, 0x01, 0x00, 0x0B, 0x03, 0x6B, 0xAA,
	0x07, 0x08, 0x0A, 0x2D, 0x7A, 0x00, 0x00, 0xFF, 0xF8, 0xFF, 0xFB, 0x00,
	0x09, 0x05, 0x64, 0xAA, 0x07, 0x08, 0x0A,
}

// capturedShort is the start of capturedLong: 3 complete packets and a
// truncated fourth.
var capturedShort = []byte{
	0xAA, 0x00, 0x50, 0x01, 0x00, 0x00, 0xFB, 0xAA, 0x07, 0x08, 0x0A, 0x2D,
	0x6A, 0x00, 0x00, 0xFF, 0xF7, 0xFF, 0xFB, 0x00, 0x07, 0x05, 0x51, 0xAA,
	0x07, 0x08, 0x0A, 0x2D, 0x6B, 0x00, 0x00, 0xFF, 0xF9, 0xFF, 0xFE, 0x00,
	0x0C, 0x05, 0x5C, 0xAA, 0x07, 0x08, 0x0A, 0x2D, 0x6C, 0x00, 0x00, 0xFF,
	0xF3, 0x00, 0x01, 0x00, 0x0A, 0x03, 0x59, 0xAA, 0x07, 0x08, 0x0A, 0x2D,
	0x6D, 0x00, 0x00, 0xFF, 0xF3, 0x00,
}

// ============================================================
// Fake Stream
// ============================================================

var errStreamClosed = errors.New("stream closed")

// fakeStream serves a fixed byte slice. Resetting the input buffer is only
// recorded, with the read offset at the time, so tests can count discards
// without losing data.
type fakeStream struct {
	data    []byte
	idx     int
	resets  int
	resetAt []int
	closed  bool

	written  []byte
	writeErr error
}

func newFakeStream(data []byte) *fakeStream {
	return &fakeStream{data: data}
}

func (f *fakeStream) Read(p []byte) (int, error) {
	if f.closed {
		return 0, errStreamClosed
	}
	if f.idx >= len(f.data) {
		return 0, io.EOF
	}
	n := copy(p, f.data[f.idx:])
	f.idx += n
	return n, nil
}

func (f *fakeStream) Buffered() (int, error) {
	if f.closed {
		return 0, errStreamClosed
	}
	return len(f.data) - f.idx, nil
}

func (f *fakeStream) ResetInputBuffer() error {
	f.resets++
	f.resetAt = append(f.resetAt, f.idx)
	return nil
}

func (f *fakeStream) Write(p []byte) (int, error) {
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	f.written = append(f.written, p...)
	return len(p), nil
}

func (f *fakeStream) Close() error {
	f.closed = true
	return nil
}

// ============================================================
// Helpers
// ============================================================

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func mustFormat(v Variant) PacketFormat {
	f, err := FormatFor(v)
	if err != nil {
		panic(err)
	}
	return f
}

// expectedShort are the readings of capturedShort
var expectedShort = []struct {
	count    uint16
	fx       float64
	fy       float64
	fz       float64
	checksum uint16
}{
	{11626, -0.34069400630914826, -0.17359101955792156, 2.3144321375433954, 1361},
	{11627, -0.26498422712933756, -0.06943640782316862, 3.967597950074392, 1372},
	{11628, -0.4921135646687697, 0.03471820391158431, 3.3063316250619934, 857},
}
