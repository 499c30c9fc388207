// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package optoforce

import (
	"fmt"
	"strings"
)

// AnomalyType represents different kinds of reading anomalies
type AnomalyType int

const (
	AnomalyChecksum AnomalyType = iota
	AnomalyStatusError
	AnomalyOverload
	AnomalyCountGap
	AnomalyCountRepeat
)

func (a AnomalyType) String() string {
	switch a {
	case AnomalyChecksum:
		return "checksum"
	case AnomalyStatusError:
		return "status"
	case AnomalyOverload:
		return "overload"
	case AnomalyCountGap:
		return "count gap"
	case AnomalyCountRepeat:
		return "count repeat"
	default:
		return "unknown"
	}
}

// ValidationError represents one anomaly found in a reading
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// Validator checks readings of one stream. It remembers the last trusted
// sequence count to detect lost packets.
type Validator struct {
	lastCount uint16
	haveCount bool
}

// NewValidator creates a validator with no sequence history
func NewValidator() *Validator {
	return &Validator{}
}

// Validate returns the anomalies of a reading (empty if the reading is usable).
// Readings with a bad checksum do not advance the sequence tracking.
func (v *Validator) Validate(r *Reading) []ValidationError {
	errors := []ValidationError{}

	if !r.ChecksumValid {
		return append(errors, ValidationError{
			Type:    AnomalyChecksum,
			Message: fmt.Sprintf("Checksum mismatch (received 0x%04X)", r.Checksum),
			Details: map[string]interface{}{"checksum": r.Checksum, "count": r.Count},
		})
	}

	errors = append(errors, v.validateCount(r)...)
	errors = append(errors, validateStatus(r)...)
	return errors
}

// Reset forgets the sequence history, e.g. after a drain
func (v *Validator) Reset() {
	v.haveCount = false
}

func (v *Validator) validateCount(r *Reading) []ValidationError {
	defer func() {
		v.lastCount = r.Count
		v.haveCount = true
	}()
	if !v.haveCount {
		return nil
	}

	if r.Count == v.lastCount {
		return []ValidationError{{
			Type:    AnomalyCountRepeat,
			Message: fmt.Sprintf("Repeated count %d", r.Count),
			Details: map[string]interface{}{"count": r.Count},
		}}
	}

	expected := v.lastCount + 1
	if lost := r.Count - expected; lost != 0 {
		return []ValidationError{{
			Type:    AnomalyCountGap,
			Message: fmt.Sprintf("Lost %d packet(s) (expected count %d, got %d)", lost, expected, r.Count),
			Details: map[string]interface{}{"expected": expected, "count": r.Count, "lost": lost},
		}}
	}
	return nil
}

func validateStatus(r *Reading) []ValidationError {
	if NoErrors(r.Status) {
		return nil
	}
	errors := []ValidationError{}
	report := DecodeStatus(r.Status)

	if len(report.Overloaded) > 0 {
		names := make([]string, len(report.Overloaded))
		for i, a := range report.Overloaded {
			names[i] = a.String()
		}
		errors = append(errors, ValidationError{
			Type:    AnomalyOverload,
			Message: fmt.Sprintf("Overloaded axes: %s", strings.Join(names, ", ")),
			Details: map[string]interface{}{"axes": report.Overloaded, "status": r.Status},
		})
	}

	if report.DAQ != DAQNoError || report.Sensor != SensorNoError || len(report.Overloaded) == 0 {
		errors = append(errors, ValidationError{
			Type:    AnomalyStatusError,
			Message: fmt.Sprintf("Status 0x%04X: %s", r.Status, report),
			Details: map[string]interface{}{"status": r.Status, "daq": report.DAQ, "sensor": report.Sensor},
		})
	}
	return errors
}
