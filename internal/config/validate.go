// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Validate checks configuration correctness.
// It does not mutate the configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	// ------------------------------------------------------------
	// CONNECTION
	// ------------------------------------------------------------

	sources := 0
	for _, s := range []string{cfg.Connection.Port, cfg.Connection.URL, cfg.Connection.Replay} {
		if s != "" {
			sources++
		}
	}
	if sources > 1 {
		return fmt.Errorf("connection: only one of port, url and replay may be set")
	}
	if cfg.Connection.BaudRate < 0 {
		return fmt.Errorf("connection: baud_rate must be positive, got %d", cfg.Connection.BaudRate)
	}
	if cfg.Connection.URL != "" {
		lower := strings.ToLower(cfg.Connection.URL)
		if !strings.HasPrefix(lower, "ws://") && !strings.HasPrefix(lower, "wss://") {
			return fmt.Errorf("connection: url %q must use ws:// or wss://", cfg.Connection.URL)
		}
	}

	// ------------------------------------------------------------
	// SENSOR
	// ------------------------------------------------------------

	if _, _, err := cfg.SensorSettings(); err != nil {
		return fmt.Errorf("sensor: %w", err)
	}

	// ------------------------------------------------------------
	// LOGGING
	// ------------------------------------------------------------

	if cfg.Log.Level != "" {
		if _, err := logrus.ParseLevel(cfg.Log.Level); err != nil {
			return fmt.Errorf("log: %w", err)
		}
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log: format %q must be text or json", cfg.Log.Format)
	}

	// ------------------------------------------------------------
	// PUBLISH
	// ------------------------------------------------------------

	if cfg.Publish.MQTT.QoS > 2 {
		return fmt.Errorf("publish.mqtt: qos must be 0, 1 or 2, got %d", cfg.Publish.MQTT.QoS)
	}
	if cfg.Publish.Redis.DB < 0 {
		return fmt.Errorf("publish.redis: db must not be negative")
	}
	if cfg.Publish.Redis.ListLimit < 0 {
		return fmt.Errorf("publish.redis: list_limit must not be negative")
	}
	if cfg.Publish.Redis.Addr != "" && cfg.Publish.Redis.Channel == "" {
		return fmt.Errorf("publish.redis: channel is required when addr is set")
	}

	return nil
}

// Normalize lowercases labels and fills zero values with defaults.
// It must be called only after Validate.
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	cfg.Sensor.Variant = strings.ToLower(strings.TrimSpace(cfg.Sensor.Variant))
	cfg.Sensor.Speed = strings.ToLower(strings.TrimSpace(cfg.Sensor.Speed))
	cfg.Sensor.Filter = strings.ToLower(strings.TrimSpace(cfg.Sensor.Filter))
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)

	defaults := Default()
	if cfg.Connection.BaudRate == 0 {
		cfg.Connection.BaudRate = defaults.Connection.BaudRate
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = defaults.Log.Format
	}
}
