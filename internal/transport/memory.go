// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Thermoquad/optostat/pkg/optoforce"
)

// ErrPortClosed is returned by a MemoryPort after Close
var ErrPortClosed = errors.New("port closed")

// MemoryPort replays a fixed byte capture as if it came from a sensor.
// Bytes written to it are recorded and can be inspected with Written.
type MemoryPort struct {
	data   []byte
	offset int

	// DiscardOnReset drops every unread byte on ResetInputBuffer, like a
	// driver flushing its queue. Replays keep it false so latest-only reads
	// still see the whole capture.
	DiscardOnReset bool

	written bytes.Buffer
	resets  int
	closed  bool
}

// NewMemoryPort creates a port that yields data and then io.EOF
func NewMemoryPort(data []byte) *MemoryPort {
	return &MemoryPort{data: data}
}

// OpenReplay loads a raw capture file into a MemoryPort
func OpenReplay(path string) (*MemoryPort, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read capture %s: %w", path, err)
	}
	return NewMemoryPort(data), nil
}

func (m *MemoryPort) Read(p []byte) (int, error) {
	if m.closed {
		return 0, ErrPortClosed
	}
	if m.offset >= len(m.data) {
		return 0, io.EOF
	}
	n := copy(p, m.data[m.offset:])
	m.offset += n
	return n, nil
}

// Buffered reports the unread remainder of the capture
func (m *MemoryPort) Buffered() (int, error) {
	if m.closed {
		return 0, ErrPortClosed
	}
	return len(m.data) - m.offset, nil
}

func (m *MemoryPort) ResetInputBuffer() error {
	if m.closed {
		return ErrPortClosed
	}
	m.resets++
	if m.DiscardOnReset {
		m.offset = len(m.data)
	}
	return nil
}

func (m *MemoryPort) Write(p []byte) (int, error) {
	if m.closed {
		return 0, ErrPortClosed
	}
	return m.written.Write(p)
}

func (m *MemoryPort) Close() error {
	m.closed = true
	return nil
}

// Written returns every byte written so far
func (m *MemoryPort) Written() []byte {
	return m.written.Bytes()
}

// Resets returns how many times the input buffer was reset
func (m *MemoryPort) Resets() int {
	return m.resets
}

var _ optoforce.Port = (*MemoryPort)(nil)
