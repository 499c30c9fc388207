// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package optoforce

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// Port is a full sensor connection: a Stream that can also be written and closed
type Port interface {
	Stream
	io.Writer
	io.Closer
}

// Sensor is one connection to a sensor. The packet format is fixed when the
// sensor is created and the port is owned exclusively by it.
type Sensor struct {
	port   Port
	format PacketFormat
	frame  ConfigFrame
	reader *FrameReader
	log    logrus.FieldLogger
	closed bool
}

// NewSensor binds a port to a variant and configuration. No I/O happens here.
func NewSensor(port Port, variant Variant, frame ConfigFrame) (*Sensor, error) {
	format, err := FormatFor(variant)
	if err != nil {
		return nil, err
	}
	return &Sensor{
		port:   port,
		format: format,
		frame:  frame,
		reader: NewFrameReader(port, format),
		log:    discardLogger(),
	}, nil
}

// SetLogger sets the logger used by the sensor and its frame reader
func (s *Sensor) SetLogger(log logrus.FieldLogger) {
	if log == nil {
		log = discardLogger()
	}
	s.log = log.WithField("variant", s.format.Variant.String())
	s.reader.SetLogger(s.log)
}

// Connect sends the configuration frame
func (s *Sensor) Connect() error {
	if s.format.Variant == VariantExtendedTorque {
		s.log.Warn("extended-torque sensors are untested and torque values are not scaled")
	}

	payload := s.frame.Bytes()
	s.log.WithField("bytes", fmt.Sprintf("% X", payload)).Info("sending configuration")

	n, err := s.port.Write(payload)
	if err != nil {
		return &TransportError{Op: "write config", Err: err}
	}
	if n != len(payload) {
		return &TransportError{Op: "write config", Err: io.ErrShortWrite}
	}
	return nil
}

// Read returns the next reading. See FrameReader.ReadOne.
func (s *Sensor) Read(onlyLatest bool) (*Reading, error) {
	return s.reader.ReadOne(onlyLatest)
}

// ReadAllBuffered returns every fully buffered reading. The Count field tells
// when each one was sent.
func (s *Sensor) ReadAllBuffered() ([]*Reading, error) {
	return s.reader.ReadAllBuffered()
}

// Format returns the connection's packet format
func (s *Sensor) Format() PacketFormat {
	return s.format
}

// Config returns the configuration frame sent on Connect
func (s *Sensor) Config() ConfigFrame {
	return s.frame
}

// Reader exposes the frame reader for its counters
func (s *Sensor) Reader() *FrameReader {
	return s.reader
}

// Close closes the port. Calling it again is a no-op.
func (s *Sensor) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.port.Close(); err != nil {
		return &TransportError{Op: "close", Err: err}
	}
	s.log.Info("closed connection")
	return nil
}
