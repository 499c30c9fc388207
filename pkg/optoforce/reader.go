// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package optoforce

import (
	"bytes"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// Stream is the byte-stream side of a connection. Read blocks until at least
// one byte is available or the stream fails.
type Stream interface {
	io.Reader

	// Buffered returns the number of received bytes not yet consumed
	Buffered() (int, error)

	// ResetInputBuffer discards every received byte not yet consumed
	ResetInputBuffer() error
}

// ReaderState is the frame reader's position within a packet
type ReaderState int

// Frame reader states
const (
	StateIdle ReaderState = iota
	StateSynchronizing
	StateBodyPending
	StateDecoded
)

func (s ReaderState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSynchronizing:
		return "synchronizing"
	case StateBodyPending:
		return "body pending"
	case StateDecoded:
		return "decoded"
	default:
		return "unknown"
	}
}

// FrameReader synchronizes on a packet header and decodes the body that
// follows. It is owned by a single connection and is not safe for concurrent use.
type FrameReader struct {
	stream Stream
	format PacketFormat
	state  ReaderState
	log    logrus.FieldLogger

	window []byte
	one    [1]byte

	skipped     uint64
	lastSkipped int
	discards    uint64
}

// NewFrameReader creates a reader for one packet format
func NewFrameReader(stream Stream, format PacketFormat) *FrameReader {
	return &FrameReader{
		stream: stream,
		format: format,
		state:  StateIdle,
		log:    discardLogger(),
		window: make([]byte, 0, len(format.Header)),
	}
}

// SetLogger replaces the reader's logger
func (r *FrameReader) SetLogger(log logrus.FieldLogger) {
	if log == nil {
		log = discardLogger()
	}
	r.log = log
}

// Format returns the packet format the reader synchronizes on
func (r *FrameReader) Format() PacketFormat {
	return r.format
}

// State returns the current reader state
func (r *FrameReader) State() ReaderState {
	return r.state
}

// SkippedBytes returns the total number of bytes discarded while searching for headers
func (r *FrameReader) SkippedBytes() uint64 {
	return r.skipped
}

// LastSkipped returns the bytes discarded before the most recent header
func (r *FrameReader) LastSkipped() int {
	return r.lastSkipped
}

// Discards returns how many times the input buffer was reset to drain stale data
func (r *FrameReader) Discards() uint64 {
	return r.discards
}

// ReadOne reads the next packet. With drainLatest set and more than one full
// packet buffered, the input buffer is reset first so the reading is as recent
// as possible. New bytes may arrive between the check and the reset; that
// race is accepted.
func (r *FrameReader) ReadOne(drainLatest bool) (*Reading, error) {
	if drainLatest {
		available, err := r.stream.Buffered()
		if err != nil {
			return nil, r.fail("available", err)
		}
		if available > r.format.TotalSize {
			if err := r.stream.ResetInputBuffer(); err != nil {
				return nil, r.fail("reset input", err)
			}
			r.discards++
			r.log.WithField("buffered", available).Debug("discarded stale input")
		}
	}

	r.state = StateSynchronizing
	if err := r.syncHeader(); err != nil {
		return nil, r.fail("sync", err)
	}
	r.log.WithField("skipped", r.lastSkipped).Debug("received frame header")

	r.state = StateBodyPending
	body := make([]byte, r.format.BodySize())
	if _, err := io.ReadFull(r.stream, body); err != nil {
		return nil, r.fail("read body", err)
	}

	reading, err := Decode(r.format, r.format.Header, body)
	if err != nil {
		r.state = StateIdle
		return nil, err
	}
	reading.Timestamp = time.Now()
	r.state = StateDecoded
	return reading, nil
}

// ReadAllBuffered reads packets while at least one full packet is buffered
// and returns them in arrival order. Readings decoded before a failure are
// returned along with the error.
func (r *FrameReader) ReadAllBuffered() ([]*Reading, error) {
	readings := []*Reading{}
	for {
		available, err := r.stream.Buffered()
		if err != nil {
			return readings, r.fail("available", err)
		}
		if available < r.format.TotalSize {
			return readings, nil
		}

		reading, err := r.ReadOne(false)
		if err != nil {
			return readings, err
		}
		readings = append(readings, reading)
	}
}

// syncHeader consumes bytes until the last len(header) bytes equal the header
func (r *FrameReader) syncHeader() error {
	header := r.format.Header
	r.window = r.window[:0]
	consumed := 0

	for {
		if _, err := io.ReadFull(r.stream, r.one[:]); err != nil {
			r.countSkipped(consumed)
			return err
		}
		consumed++

		if len(r.window) == len(header) {
			copy(r.window, r.window[1:])
			r.window[len(r.window)-1] = r.one[0]
		} else {
			r.window = append(r.window, r.one[0])
		}

		if bytes.Equal(r.window, header) {
			r.countSkipped(consumed - len(header))
			return nil
		}
	}
}

func (r *FrameReader) countSkipped(n int) {
	r.lastSkipped = n
	r.skipped += uint64(n)
}

func (r *FrameReader) fail(op string, err error) error {
	r.state = StateIdle
	return &TransportError{Op: op, Err: err}
}
