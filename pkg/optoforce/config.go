// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package optoforce

import "strings"

// Speed is a sensor output rate label
type Speed string

// Output rates
const (
	SpeedStop   Speed = "stop"
	Speed1000Hz Speed = "1000"
	Speed333Hz  Speed = "333"
	Speed100Hz  Speed = "100"
	Speed30Hz   Speed = "30"
	Speed10Hz   Speed = "10"
)

// Filter is a low-pass filter cutoff label
type Filter string

// Filter cutoffs
const (
	FilterNone  Filter = "none"
	Filter500Hz Filter = "500"
	Filter150Hz Filter = "150"
	Filter50Hz  Filter = "50"
	Filter15Hz  Filter = "15"
	Filter5Hz   Filter = "5"
	Filter1_5Hz Filter = "1.5"
)

// Defaults applied when the caller does not choose
const (
	DefaultSpeed  = Speed100Hz
	DefaultFilter = Filter15Hz
)

var speedCodes = map[Speed]byte{
	SpeedStop:   0,
	Speed1000Hz: 1,
	Speed333Hz:  3,
	Speed100Hz:  10,
	Speed30Hz:   33,
	Speed10Hz:   100,
}

var filterCodes = map[Filter]byte{
	FilterNone:  0,
	Filter500Hz: 1,
	Filter150Hz: 2,
	Filter50Hz:  3,
	Filter15Hz:  4,
	Filter5Hz:   5,
	Filter1_5Hz: 6,
}

// ParseSpeed accepts "stop" or a rate in Hz, with an optional "hz" suffix
func ParseSpeed(s string) (Speed, error) {
	speed := Speed(normalizeLabel(s))
	if _, ok := speedCodes[speed]; !ok {
		return "", &ConfigError{Field: "speed", Value: s}
	}
	return speed, nil
}

// ParseFilter accepts "none" or a cutoff in Hz, with an optional "hz" suffix
func ParseFilter(s string) (Filter, error) {
	filter := Filter(normalizeLabel(s))
	if _, ok := filterCodes[filter]; !ok {
		return "", &ConfigError{Field: "filter", Value: s}
	}
	return filter, nil
}

func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, "hz")
	return strings.TrimSpace(s)
}

// Code returns the wire code of the rate
func (s Speed) Code() (byte, bool) {
	code, ok := speedCodes[s]
	return code, ok
}

// Code returns the wire code of the cutoff
func (f Filter) Code() (byte, bool) {
	code, ok := filterCodes[f]
	return code, ok
}

// ConfigFrame is the immutable configuration sent to a sensor at connect time
type ConfigFrame struct {
	speed    byte
	filter   byte
	zeroFlag byte
}

// NewConfigFrame validates the selection and builds the frame. An invalid
// speed or filter yields a *ConfigError.
func NewConfigFrame(speed Speed, filter Filter, zero bool) (ConfigFrame, error) {
	speedCode, ok := speed.Code()
	if !ok {
		return ConfigFrame{}, &ConfigError{Field: "speed", Value: string(speed)}
	}
	filterCode, ok := filter.Code()
	if !ok {
		return ConfigFrame{}, &ConfigError{Field: "filter", Value: string(filter)}
	}

	frame := ConfigFrame{speed: speedCode, filter: filterCode, zeroFlag: ZeroBiasOff}
	if zero {
		frame.zeroFlag = ZeroBiasOn
	}
	return frame, nil
}

// DefaultConfigFrame returns 100 Hz output, 15 Hz filter and no zeroing
func DefaultConfigFrame() ConfigFrame {
	frame, _ := NewConfigFrame(DefaultSpeed, DefaultFilter, false)
	return frame
}

// SpeedCode returns the encoded rate
func (c ConfigFrame) SpeedCode() byte { return c.speed }

// FilterCode returns the encoded filter cutoff
func (c ConfigFrame) FilterCode() byte { return c.filter }

// ZeroFlag returns 0xFF when zero-bias was requested, else 0
func (c ConfigFrame) ZeroFlag() byte { return c.zeroFlag }

// Checksum sums the four header bytes and the three setting bytes. It does not
// follow the incoming packet checksum rule.
func (c ConfigFrame) Checksum() uint16 {
	var sum uint16
	for _, b := range configHeader {
		sum += uint16(b)
	}
	return sum + uint16(c.speed) + uint16(c.filter) + uint16(c.zeroFlag)
}

// Bytes returns the 9-byte wire payload
func (c ConfigFrame) Bytes() []byte {
	sum := c.Checksum()
	return []byte{
		configHeader[0], configHeader[1], configHeader[2], configHeader[3],
		c.speed, c.filter, c.zeroFlag,
		byte(sum >> 8), byte(sum & 0xFF),
	}
}
