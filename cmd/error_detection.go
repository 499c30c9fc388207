// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Thermoquad/optostat/internal/monitor"
	"github.com/Thermoquad/optostat/pkg/optoforce"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
	metricsAddr   string
)

var errorDetectionCmd = &cobra.Command{
	Use:   "error_detection",
	Short: "Detect and analyze corrupt readings and sensor errors",
	Long: `Track checksum failures, sensor status errors and lost packets with statistics.

This command validates each reading and detects:
  - Checksum mismatches (corrupt packets)
  - Status word errors (DAQ and sensor error codes)
  - Overloaded axes
  - Gaps and repeats in the sample counter (lost packets)
  - Statistics and trends (reading rate, error rate, success rate)

By default, only errors are displayed. Use --show-all to display valid readings too.

With --metrics-addr, counters and the latest forces are also exported for
Prometheus at http://<addr>/metrics.`,
	RunE: runErrorDetection,
}

func init() {
	rootCmd.AddCommand(errorDetectionCmd)
	errorDetectionCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all readings (not just errors)")
	errorDetectionCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	errorDetectionCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
	errorDetectionCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9100)")
}

func runErrorDetection(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("metrics-addr") {
		settings.Monitor.MetricsAddr = metricsAddr
	}

	sensor, connInfo, err := openSensor(settings)
	if err != nil {
		return err
	}
	defer sensor.Close()

	var metrics *monitor.Metrics
	if settings.Monitor.MetricsAddr != "" {
		metrics = monitor.NewMetrics()
		srv := metrics.Serve(settings.Monitor.MetricsAddr, logger)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}()
	}

	t := newTracker(metrics)
	if useTUI {
		return runTUIMode(sensor, connInfo, t)
	}
	return runTextMode(sensor, connInfo, t, os.Stdout)
}

// sensorEvent is one result of a blocking read
type sensorEvent struct {
	reading *optoforce.Reading
	skipped uint64
	err     error
}

// streamReadings reads until the first error, which is sent last
func streamReadings(sensor *optoforce.Sensor, send func(sensorEvent)) {
	for {
		r, err := sensor.Read(false)
		if err != nil {
			send(sensorEvent{err: err})
			return
		}
		send(sensorEvent{reading: r, skipped: sensor.Reader().SkippedBytes()})
	}
}

// tracker validates readings and keeps statistics. It is owned by a single
// goroutine.
type tracker struct {
	validator    *optoforce.Validator
	stats        *optoforce.Statistics
	metrics      *monitor.Metrics
	synchronized bool
}

func newTracker(metrics *monitor.Metrics) *tracker {
	return &tracker{
		validator: optoforce.NewValidator(),
		stats:     optoforce.NewStatistics(),
		metrics:   metrics,
	}
}

// observe records an event. synced is true for the first reading with a
// valid checksum.
func (t *tracker) observe(ev sensorEvent) (anomalies []optoforce.ValidationError, synced bool) {
	if ev.err != nil {
		t.stats.RecordTransportError()
		if t.metrics != nil {
			t.metrics.ObserveTransportError()
		}
		return nil, false
	}

	anomalies = t.validator.Validate(ev.reading)
	t.stats.Update(ev.reading, anomalies)
	t.stats.SetSkippedBytes(ev.skipped)
	if t.metrics != nil {
		t.metrics.Observe(ev.reading, anomalies)
		t.metrics.SetSkippedBytes(ev.skipped)
	}

	if !t.synchronized && ev.reading.ChecksumValid {
		t.synchronized = true
		synced = true
	}
	return anomalies, synced
}

// printAnomalies prints the anomalies of a reading in highlighted format
func printAnomalies(w io.Writer, r *optoforce.Reading, anomalies []optoforce.ValidationError) {
	timestamp := r.Timestamp.Format("15:04:05.000")
	fmt.Fprintf(w, "[%s] \033[1;33mANOMALY:\033[0m count=%d status=0x%04X\n", timestamp, r.Count, r.Status)

	for i, a := range anomalies {
		switch a.Type {
		case optoforce.AnomalyChecksum:
			fmt.Fprintf(w, "  Issue %d: \033[1;31m%s\033[0m\n", i+1, a.Message)
			fmt.Fprintf(w, "    >>> READING REJECTED <<<\n")

		case optoforce.AnomalyStatusError:
			fmt.Fprintf(w, "  Issue %d: \033[1;31m%s\033[0m\n", i+1, a.Message)
			if daq, ok := a.Details["daq"].(optoforce.DAQError); ok {
				fmt.Fprintf(w, "    DAQ: %s\n", daq)
			}
			if sensor, ok := a.Details["sensor"].(optoforce.SensorError); ok {
				fmt.Fprintf(w, "    Sensor: %s\n", sensor)
			}

		case optoforce.AnomalyOverload:
			fmt.Fprintf(w, "  Issue %d: \033[1;33m%s\033[0m\n", i+1, a.Message)
			fmt.Fprintf(w, "    Fx=%.3f N Fy=%.3f N Fz=%.3f N\n", r.Fx(), r.Fy(), r.Fz())

		case optoforce.AnomalyCountGap:
			fmt.Fprintf(w, "  Issue %d: \033[1;33m%s\033[0m\n", i+1, a.Message)

		default:
			fmt.Fprintf(w, "  Issue %d: %s\n", i+1, a.Message)
		}
	}
	fmt.Fprintln(w)
}

// runTUIMode runs error detection in TUI mode
func runTUIMode(sensor *optoforce.Sensor, connInfo string, t *tracker) error {
	m := initialModel(connInfo, sensor.Format(), statsInterval, showAll, t)
	p := tea.NewProgram(m)

	go streamReadings(sensor, func(ev sensorEvent) {
		p.Send(sensorDataMsg(ev))
	})

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// runTextMode runs error detection in text mode
func runTextMode(sensor *optoforce.Sensor, connInfo string, t *tracker, w io.Writer) error {
	fmt.Fprintf(w, "Optostat - Error Detection Mode\n")
	fmt.Fprintf(w, "Connection: %s\n", connInfo)
	fmt.Fprintf(w, "Variant: %s\n", sensor.Format().Variant)
	fmt.Fprintf(w, "Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Fprintf(w, "Mode: All readings\n")
	} else {
		fmt.Fprintf(w, "Mode: Errors only\n")
	}
	fmt.Fprintf(w, "Press Ctrl+C to exit\n\n")

	events := make(chan sensorEvent, 64)
	go streamReadings(sensor, func(ev sensorEvent) { events <- ev })

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case ev := <-events:
			if done, err := handleTextEvent(w, t, ev); done {
				return err
			}

		case <-statsTicker.C:
			fmt.Fprintln(w)
			fmt.Fprint(w, t.stats.String())
			fmt.Fprintln(w)
		}
	}
}

// handleTextEvent prints one event. done is set once the stream has ended.
func handleTextEvent(w io.Writer, t *tracker, ev sensorEvent) (done bool, err error) {
	anomalies, synced := t.observe(ev)

	if ev.err != nil {
		fmt.Fprintln(w)
		fmt.Fprint(w, t.stats.String())
		return true, endOfStream(ev.err)
	}

	if synced {
		if ev.skipped > 0 {
			fmt.Fprintf(w, "[SYNC] Synchronized after skipping %d bytes\n\n", ev.skipped)
		} else {
			fmt.Fprintf(w, "[SYNC] Synchronized\n\n")
		}
	}

	if len(anomalies) > 0 {
		printAnomalies(w, ev.reading, anomalies)
	} else if showAll {
		fmt.Fprint(w, optoforce.FormatReading(ev.reading))
	}
	return false, nil
}
