// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package optoforce

import (
	"errors"
	"fmt"
)

// ErrLengthMismatch is returned when a body does not match the declared packet size
var ErrLengthMismatch = errors.New("packet body length mismatch")

// ConfigError reports an invalid connection setting. It is raised before any I/O.
type ConfigError struct {
	Field string
	Value string
}

func (e *ConfigError) Error() string {
	if allowed, ok := allowedValues[e.Field]; ok {
		return fmt.Sprintf("invalid %s %q: must be one of %s", e.Field, e.Value, allowed)
	}
	return fmt.Sprintf("invalid %s %q", e.Field, e.Value)
}

var allowedValues = map[string]string{
	"speed":   "stop, 1000, 333, 100, 30, 10",
	"filter":  "none, 500, 150, 50, 15, 5, 1.5",
	"variant": "compact (16), extended-torque (22), multi-sensor (34)",
}

// TransportError wraps a failure of the underlying byte stream. The core never
// retries; the caller decides whether to reconnect.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
