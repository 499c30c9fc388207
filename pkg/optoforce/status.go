// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package optoforce

import (
	"fmt"
	"strings"
)

// DAQError is the data acquisition error code (status bits 15-13)
type DAQError int

// DAQ error values
const (
	DAQNoError DAQError = iota
	DAQErrorDAQ
	DAQErrorComm
	DAQErrorReserved
)

// SensorError is the sensor error code (status bits 12-10)
type SensorError int

// Sensor error values
const (
	SensorNoError SensorError = iota
	SensorNotDetected
	SensorFailure
	SensorTemperatureError
	SensorErrorReserved
)

// Axis names one overload flag (status bits 9-4)
type Axis int

// Axes in status bit order, most significant first
const (
	AxisFx Axis = iota
	AxisFy
	AxisFz
	AxisTx
	AxisTy
	AxisTz
)

var axisNames = [...]string{"Fx", "Fy", "Fz", "Tx", "Ty", "Tz"}

// Multiplicity reports whether more than one sensor has an error (status bit 3)
type Multiplicity int

// Multiplicity values
const (
	MultiplicitySingle Multiplicity = iota
	MultiplicityMultiple
)

// SensorSlot identifies the sensor with an error (status bits 2-0)
type SensorSlot int

// Sensor slot values. 1 to 4 name a sensor by its 1-based index.
const (
	SensorSlotNone     SensorSlot = 0
	SensorSlotReserved SensorSlot = -1
)

// StatusReport is the decoded form of a 16-bit status word
type StatusReport struct {
	DAQ          DAQError
	Sensor       SensorError
	Overloaded   []Axis
	Multiplicity Multiplicity
	SensorIndex  SensorSlot
}

// DecodeStatus decodes every field of a status word. It accepts any value.
func DecodeStatus(status uint16) StatusReport {
	return StatusReport{
		DAQ:          decodeDAQ(status),
		Sensor:       decodeSensor(status),
		Overloaded:   OverloadedAxes(status),
		Multiplicity: decodeMultiplicity(status),
		SensorIndex:  decodeSensorSlot(status),
	}
}

// NoErrors reports whether the status word is exactly zero. This is stricter
// than a decoded report with no error fields set.
func NoErrors(status uint16) bool {
	return status == 0
}

// OverloadedAxes returns the overloaded axes in Fx, Fy, Fz, Tx, Ty, Tz order
func OverloadedAxes(status uint16) []Axis {
	axes := []Axis{}
	for i := range axisNames {
		if status>>(9-i)&1 == 1 {
			axes = append(axes, Axis(i))
		}
	}
	return axes
}

func decodeDAQ(status uint16) DAQError {
	switch status >> 13 & 0b111 {
	case 0b000:
		return DAQNoError
	case 0b001:
		return DAQErrorDAQ
	case 0b010:
		return DAQErrorComm
	default:
		return DAQErrorReserved
	}
}

func decodeSensor(status uint16) SensorError {
	switch status >> 10 & 0b111 {
	case 0b000:
		return SensorNoError
	case 0b001:
		return SensorNotDetected
	case 0b010:
		return SensorFailure
	case 0b100:
		return SensorTemperatureError
	default:
		return SensorErrorReserved
	}
}

func decodeMultiplicity(status uint16) Multiplicity {
	if status&0b1000 != 0 {
		return MultiplicityMultiple
	}
	return MultiplicitySingle
}

func decodeSensorSlot(status uint16) SensorSlot {
	n := status & 0b111
	switch {
	case n == 0:
		return SensorSlotNone
	case n <= 4:
		return SensorSlot(n)
	default:
		return SensorSlotReserved
	}
}

func (e DAQError) String() string {
	switch e {
	case DAQNoError:
		return "no error"
	case DAQErrorDAQ:
		return "daq error"
	case DAQErrorComm:
		return "communication error"
	default:
		return "reserved"
	}
}

func (e SensorError) String() string {
	switch e {
	case SensorNoError:
		return "no error"
	case SensorNotDetected:
		return "sensor not detected"
	case SensorFailure:
		return "sensor failure"
	case SensorTemperatureError:
		return "temperature error"
	default:
		return "reserved"
	}
}

func (a Axis) String() string {
	if a >= 0 && int(a) < len(axisNames) {
		return axisNames[a]
	}
	return fmt.Sprintf("Axis(%d)", int(a))
}

func (m Multiplicity) String() string {
	if m == MultiplicityMultiple {
		return "multiple sensors have errors"
	}
	return "only a single sensor has error (or no error)"
}

func (s SensorSlot) String() string {
	switch {
	case s == SensorSlotNone:
		return "no sensor has error"
	case s >= 1 && s <= 4:
		return fmt.Sprintf("sensor #%d", int(s))
	default:
		return "reserved"
	}
}

// HasErrors reports whether any decoded field signals a problem. Reserved
// codes count as problems.
func (r StatusReport) HasErrors() bool {
	return r.DAQ != DAQNoError ||
		r.Sensor != SensorNoError ||
		len(r.Overloaded) > 0 ||
		r.Multiplicity != MultiplicitySingle ||
		r.SensorIndex != SensorSlotNone
}

// String renders the report on one line
func (r StatusReport) String() string {
	axes := make([]string, len(r.Overloaded))
	for i, a := range r.Overloaded {
		axes[i] = a.String()
	}
	return fmt.Sprintf("daq=%s sensor=%s overloaded=[%s] %s, %s",
		r.DAQ, r.Sensor, strings.Join(axes, ","), r.Multiplicity, r.SensorIndex)
}
