// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package optoforce

import (
	"reflect"
	"testing"
)

func TestDecodeStatus_Zero(t *testing.T) {
	report := DecodeStatus(0)
	if !NoErrors(0) {
		t.Error("NoErrors(0) should be true")
	}
	if report.DAQ != DAQNoError || report.Sensor != SensorNoError {
		t.Errorf("Expected no errors, got %s", report)
	}
	if len(report.Overloaded) != 0 {
		t.Errorf("Expected no overloaded axes, got %v", report.Overloaded)
	}
	if report.Multiplicity != MultiplicitySingle {
		t.Errorf("Expected single, got %s", report.Multiplicity)
	}
	if report.SensorIndex != SensorSlotNone {
		t.Errorf("Expected no sensor, got %s", report.SensorIndex)
	}
	if report.HasErrors() {
		t.Error("Zero status should not report errors")
	}
}

func TestDecodeStatus_SensorGoneWrong(t *testing.T) {
	report := DecodeStatus(0b010_100_001110_0_100)
	if report.DAQ != DAQErrorComm {
		t.Errorf("Expected communication error, got %s", report.DAQ)
	}
	if report.Sensor != SensorTemperatureError {
		t.Errorf("Expected temperature error, got %s", report.Sensor)
	}
	if want := []Axis{AxisFz, AxisTx, AxisTy}; !reflect.DeepEqual(report.Overloaded, want) {
		t.Errorf("Expected %v, got %v", want, report.Overloaded)
	}
	if report.Multiplicity != MultiplicitySingle {
		t.Errorf("Expected single, got %s", report.Multiplicity)
	}
	if report.SensorIndex != 4 {
		t.Errorf("Expected sensor #4, got %s", report.SensorIndex)
	}
	if NoErrors(0b010_100_001110_0_100) {
		t.Error("NoErrors should be false")
	}
}

func TestOverloadedAxes(t *testing.T) {
	got := OverloadedAxes(1<<9 + 1<<5)
	if want := []Axis{AxisFx, AxisTy}; !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
	if all := OverloadedAxes(0b111111 << 4); len(all) != 6 {
		t.Errorf("Expected 6 axes, got %v", all)
	}
}

func TestDecodeStatus_ErrorCodes(t *testing.T) {
	daq := map[uint16]DAQError{
		0: DAQNoError, 1: DAQErrorDAQ, 2: DAQErrorComm,
		3: DAQErrorReserved, 4: DAQErrorReserved, 7: DAQErrorReserved,
	}
	for code, want := range daq {
		if got := DecodeStatus(code << 13).DAQ; got != want {
			t.Errorf("DAQ code %d: expected %s, got %s", code, want, got)
		}
	}

	sensor := map[uint16]SensorError{
		0: SensorNoError, 1: SensorNotDetected, 2: SensorFailure, 4: SensorTemperatureError,
		3: SensorErrorReserved, 5: SensorErrorReserved, 6: SensorErrorReserved, 7: SensorErrorReserved,
	}
	for code, want := range sensor {
		if got := DecodeStatus(code << 10).Sensor; got != want {
			t.Errorf("Sensor code %d: expected %s, got %s", code, want, got)
		}
	}
}

func TestDecodeStatus_SensorSelection(t *testing.T) {
	if DecodeStatus(0b1000).Multiplicity != MultiplicityMultiple {
		t.Error("Bit 3 should mean multiple sensors")
	}
	for n := uint16(1); n <= 4; n++ {
		if got := DecodeStatus(n).SensorIndex; got != SensorSlot(n) {
			t.Errorf("Expected sensor #%d, got %s", n, got)
		}
	}
	for n := uint16(5); n <= 7; n++ {
		if got := DecodeStatus(n).SensorIndex; got != SensorSlotReserved {
			t.Errorf("Index %d should be reserved, got %s", n, got)
		}
	}
	if s := SensorSlot(3).String(); s != "sensor #3" {
		t.Errorf("Unexpected label %q", s)
	}
}

func TestNoErrors_StricterThanDecode(t *testing.T) {
	// Only a reserved DAQ code is set
	var status uint16 = 1 << 15
	if NoErrors(status) {
		t.Error("NoErrors must only accept a zero status word")
	}
	if NoErrors(0b11111111111) {
		t.Error("NoErrors(0b11111111111) should be false")
	}
}
