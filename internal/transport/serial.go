// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"fmt"
	"time"

	"github.com/Thermoquad/optostat/pkg/optoforce"
	"go.bug.st/serial"
)

// SerialConfig describes how to open a sensor serial port
type SerialConfig struct {
	Port     string
	BaudRate int
}

// rawPort is the subset of serial.Port used by SerialPort
type rawPort interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	ResetInputBuffer() error
	SetReadTimeout(t time.Duration) error
	Close() error
}

// SerialPort adapts a serial port to optoforce.Port.
//
// go.bug.st/serial has no "bytes waiting" query, so Buffered drains whatever
// the driver holds into a pending buffer with a zero read timeout. Read serves
// pending bytes before touching the port again.
type SerialPort struct {
	port    rawPort
	name    string
	pending []byte
	chunk   []byte
}

// OpenSerial opens a serial port at 8N1 with the configured baud rate
func OpenSerial(cfg SerialConfig) (*SerialPort, error) {
	if cfg.Port == "" {
		return nil, fmt.Errorf("serial port name is empty")
	}
	baud := cfg.BaudRate
	if baud <= 0 {
		baud = optoforce.DefaultBaudRate
	}

	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: optoforce.DataBits,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Port, err)
	}
	if err := port.SetReadTimeout(serial.NoTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to configure serial port %s: %w", cfg.Port, err)
	}

	return newSerialPort(port, cfg.Port), nil
}

func newSerialPort(port rawPort, name string) *SerialPort {
	return &SerialPort{
		port:  port,
		name:  name,
		chunk: make([]byte, 256),
	}
}

// Name returns the device path
func (s *SerialPort) Name() string {
	return s.name
}

func (s *SerialPort) Read(p []byte) (int, error) {
	if len(s.pending) > 0 {
		n := copy(p, s.pending)
		s.pending = s.pending[n:]
		return n, nil
	}
	for {
		n, err := s.port.Read(p)
		if err != nil {
			return n, err
		}
		// A zero-byte read without error only happens on timeout
		if n > 0 {
			return n, nil
		}
	}
}

// Buffered polls the port without blocking and reports how many bytes are
// ready to be read. Failing to restore blocking reads is an error.
func (s *SerialPort) Buffered() (n int, err error) {
	if err := s.port.SetReadTimeout(0); err != nil {
		return len(s.pending), err
	}
	defer func() {
		if rerr := s.port.SetReadTimeout(serial.NoTimeout); rerr != nil && err == nil {
			err = fmt.Errorf("restore blocking reads on %s: %w", s.name, rerr)
		}
	}()

	for {
		read, err := s.port.Read(s.chunk)
		if read > 0 {
			s.pending = append(s.pending, s.chunk[:read]...)
		}
		if err != nil {
			return len(s.pending), err
		}
		if read < len(s.chunk) {
			return len(s.pending), nil
		}
	}
}

// ResetInputBuffer drops pending bytes and flushes the driver input queue
func (s *SerialPort) ResetInputBuffer() error {
	s.pending = s.pending[:0]
	return s.port.ResetInputBuffer()
}

func (s *SerialPort) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialPort) Close() error {
	return s.port.Close()
}

var _ optoforce.Port = (*SerialPort)(nil)
