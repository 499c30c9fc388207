// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package sink forwards decoded readings to message brokers.
package sink

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Thermoquad/optostat/pkg/optoforce"
)

// Sink receives readings in arrival order
type Sink interface {
	Publish(ctx context.Context, r *optoforce.Reading) error
	Close() error
}

// Payload is the JSON document published for every reading
type Payload struct {
	Variant       string            `json:"variant"`
	Count         uint16            `json:"count"`
	Status        uint16            `json:"status"`
	Forces        []optoforce.Force `json:"forces"`
	Torque        *optoforce.Torque `json:"torque,omitempty"`
	Checksum      uint16            `json:"checksum"`
	ChecksumValid bool              `json:"checksum_valid"`
	NoErrors      bool              `json:"no_errors"`
	Overloaded    []string          `json:"overloaded,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
}

// NewPayload flattens a reading for publishing
func NewPayload(r *optoforce.Reading) Payload {
	p := Payload{
		Variant:       r.Variant.String(),
		Count:         r.Count,
		Status:        r.Status,
		Forces:        r.Forces,
		Torque:        r.Torque,
		Checksum:      r.Checksum,
		ChecksumValid: r.ChecksumValid,
		NoErrors:      r.NoErrors(),
		Timestamp:     r.Timestamp,
	}
	for _, axis := range optoforce.OverloadedAxes(r.Status) {
		p.Overloaded = append(p.Overloaded, axis.String())
	}
	return p
}

// EncodeReading serializes a reading as its JSON payload
func EncodeReading(r *optoforce.Reading) ([]byte, error) {
	return json.Marshal(NewPayload(r))
}

// Fanout publishes every reading to all sinks and joins their errors
type Fanout []Sink

func (f Fanout) Publish(ctx context.Context, r *optoforce.Reading) error {
	var errs []error
	for _, s := range f {
		if err := s.Publish(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Close() error {
	var errs []error
	for _, s := range f {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
