// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/Thermoquad/optostat/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string

	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Replay a raw capture instead of a live sensor
	replayPath string

	// Sensor flags
	variantName string
	speedName   string
	filterName  string
	zeroBias    bool

	// Logging flags
	logLevel  string
	logFormat string
)

// settings is the configuration after the file and flags are merged
var settings = config.Default()

var logger = logrus.New()

var rootCmd = &cobra.Command{
	Use:   "optostat",
	Short: "OptoForce Sensor Telemetry Tool",
	Long: `Optostat - A CLI tool for configuring OptoForce force/torque sensors and
decoding their binary telemetry stream.

On connect the sensor is sent a configuration frame selecting its sample
rate, filter and zero bias. It then streams fixed-size big-endian packets
that are synchronized, checksummed and scaled to newtons.

Connection modes:
  Serial:    --port /dev/ttyACM0 [--baud 1000000]
  WebSocket: --url ws://host/path [--username user]
  Replay:    --replay capture.bin

For WebSocket authentication, the password is read from the OPTOSTAT_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", settings.Connection.BaudRate, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().StringVar(&replayPath, "replay", "", "Replay a raw byte capture instead of a live sensor")

	// Sensor flags
	rootCmd.PersistentFlags().StringVar(&variantName, "variant", settings.Sensor.Variant, "Sensor variant: compact, extended-torque, multi-sensor")
	rootCmd.PersistentFlags().StringVar(&speedName, "speed", settings.Sensor.Speed, "Sample rate: stop, 1000, 333, 100, 30, 10")
	rootCmd.PersistentFlags().StringVar(&filterName, "filter", settings.Sensor.Filter, "Filter cutoff: none, 500, 150, 50, 15, 5, 1.5")
	rootCmd.PersistentFlags().BoolVar(&zeroBias, "zero", false, "Zero the sensor bias on connect")

	// Logging flags
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", settings.Log.Level, "Log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", settings.Log.Format, "Log format: text or json")
}

// loadSettings merges the config file with the flags set on the command line
func loadSettings(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	config.Normalize(cfg)
	settings = cfg

	return setupLogger(logger, settings.Log)
}

// applyFlags copies explicitly set flags over cfg. At most one of --port,
// --url and --replay may be given.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	sources := 0
	for _, name := range []string{"port", "url", "replay"} {
		if flags.Changed(name) {
			sources++
		}
	}
	if sources > 1 {
		return fmt.Errorf("only one of --port, --url and --replay may be given")
	}

	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}

	set("port", func() { cfg.Connection.Port = portName })
	set("baud", func() { cfg.Connection.BaudRate = baudRate })
	set("url", func() { cfg.Connection.URL = wsURL })
	set("username", func() { cfg.Connection.Username = wsUsername })
	set("no-ssl-verify", func() { cfg.Connection.NoSSLVerify = wsNoSSLVerify })
	set("replay", func() { cfg.Connection.Replay = replayPath })
	set("variant", func() { cfg.Sensor.Variant = variantName })
	set("speed", func() { cfg.Sensor.Speed = speedName })
	set("filter", func() { cfg.Sensor.Filter = filterName })
	set("zero", func() { cfg.Sensor.Zero = zeroBias })
	set("log-level", func() { cfg.Log.Level = logLevel })
	set("log-format", func() { cfg.Log.Format = logFormat })

	// A connection flag replaces whatever source the file selected
	switch {
	case flags.Changed("port"):
		cfg.Connection.URL, cfg.Connection.Replay = "", ""
	case flags.Changed("url"):
		cfg.Connection.Port, cfg.Connection.Replay = "", ""
	case flags.Changed("replay"):
		cfg.Connection.Port, cfg.Connection.URL = "", ""
	}
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
