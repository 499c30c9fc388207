// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/Thermoquad/optostat/internal/config"
	"github.com/Thermoquad/optostat/internal/transport"
	"github.com/Thermoquad/optostat/pkg/optoforce"
	"golang.org/x/term"
)

// PasswordEnv names the environment variable holding the WebSocket password
const PasswordEnv = "OPTOSTAT_PASSWORD"

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv(PasswordEnv); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// OpenConnection opens a serial port, WebSocket bridge or replay file
func OpenConnection(cfg config.ConnectionConfig) (optoforce.Port, string, error) {
	switch {
	case cfg.Replay != "":
		port, err := transport.OpenReplay(cfg.Replay)
		if err != nil {
			return nil, "", err
		}
		return port, fmt.Sprintf("Replay: %s", cfg.Replay), nil

	case cfg.URL != "":
		password := ""
		if cfg.Username != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		port, err := transport.OpenWebSocket(transport.WebSocketConfig{
			URL:           cfg.URL,
			Username:      cfg.Username,
			Password:      password,
			SkipSSLVerify: cfg.NoSSLVerify,
		})
		if err != nil {
			return nil, "", err
		}
		return port, fmt.Sprintf("WebSocket: %s", cfg.URL), nil

	case cfg.Port != "":
		port, err := transport.OpenSerial(transport.SerialConfig{
			Port:     cfg.Port,
			BaudRate: cfg.BaudRate,
		})
		if err != nil {
			return nil, "", err
		}
		return port, fmt.Sprintf("Serial: %s @ %d baud", cfg.Port, cfg.BaudRate), nil
	}

	return nil, "", fmt.Errorf("one of --port, --url or --replay must be specified")
}

// openSensor resolves the sensor settings, opens the connection and sends
// the configuration frame. The caller owns the returned sensor.
func openSensor(cfg *config.Config) (*optoforce.Sensor, string, error) {
	variant, frame, err := cfg.SensorSettings()
	if err != nil {
		return nil, "", err
	}

	port, connInfo, err := OpenConnection(cfg.Connection)
	if err != nil {
		return nil, "", err
	}

	sensor, err := optoforce.NewSensor(port, variant, frame)
	if err != nil {
		port.Close()
		return nil, "", err
	}
	sensor.SetLogger(logger.WithField("connection", connInfo))

	if err := sensor.Connect(); err != nil {
		sensor.Close()
		return nil, "", err
	}
	return sensor, connInfo, nil
}
