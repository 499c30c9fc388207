// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/optostat/internal/config"
	"github.com/Thermoquad/optostat/internal/transport"
	"github.com/Thermoquad/optostat/pkg/optoforce"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================
// Helpers
// ============================================================

func init() {
	logger.SetOutput(io.Discard)
}

func packet(t *testing.T, count uint16, status uint16) []byte {
	t.Helper()
	f, err := optoforce.FormatFor(optoforce.VariantCompact)
	require.NoError(t, err)
	data, err := optoforce.EncodePacket(f, &optoforce.Reading{
		Count:  count,
		Status: status,
		Forces: []optoforce.Force{{X: 1, Y: 2, Z: 3}},
	})
	require.NoError(t, err)
	return data
}

func corrupt(p []byte) []byte {
	out := append([]byte(nil), p...)
	out[len(out)-1] ^= 0xFF
	return out
}

func stream(parts ...[]byte) []byte {
	return bytes.Join(parts, nil)
}

func memorySensor(t *testing.T, data []byte) *optoforce.Sensor {
	t.Helper()
	sensor, err := optoforce.NewSensor(transport.NewMemoryPort(data), optoforce.VariantCompact, optoforce.DefaultConfigFrame())
	require.NoError(t, err)
	require.NoError(t, sensor.Connect())
	return sensor
}

func readOne(t *testing.T, data []byte) *optoforce.Reading {
	t.Helper()
	r, err := memorySensor(t, data).Read(false)
	require.NoError(t, err)
	return r
}

type recordingSink struct {
	counts  []uint16
	onCount func(n int)
	err     error
}

func (s *recordingSink) Publish(ctx context.Context, r *optoforce.Reading) error {
	if s.err != nil {
		return s.err
	}
	s.counts = append(s.counts, r.Count)
	if s.onCount != nil {
		s.onCount(len(s.counts))
	}
	return nil
}

func (s *recordingSink) Close() error { return nil }

// ============================================================
// status / config_frame
// ============================================================

func TestParseStatusWord(t *testing.T) {
	tests := []struct {
		in   string
		want uint16
	}{
		{"0", 0},
		{"512", 512},
		{"0x1C00", 0x1C00},
		{"0X0200", 0x0200},
		{"0b0000_0010_0000_0000", 512},
		{" 65535 ", 0xFFFF},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseStatusWord(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "65536", "0x10000", "-1", "abc"} {
		_, err := parseStatusWord(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestPrintStatus(t *testing.T) {
	var buf bytes.Buffer
	printStatus(&buf, 0)
	assert.Contains(t, buf.String(), "no_errors: true")

	buf.Reset()
	printStatus(&buf, 1<<9)
	assert.Contains(t, buf.String(), "Status: 0x0200")
	assert.Contains(t, buf.String(), "no_errors: false")
	assert.Contains(t, buf.String(), "Fx")
}

func TestPrintConfigFrame_Default(t *testing.T) {
	var buf bytes.Buffer
	printConfigFrame(&buf, optoforce.DefaultConfigFrame())
	lines := strings.Split(buf.String(), "\n")
	assert.Equal(t, "AA 00 32 03 0A 04 00 00 ED", lines[0])
	assert.Contains(t, buf.String(), "checksum:    0x00ED")
}

func TestStatusCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"status", "0x0200"})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "no_errors: false")
}

// ============================================================
// Settings
// ============================================================

func TestApplyFlags_ConnectionOverride(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().StringVar(&portName, "port", "", "")
	cmd.Flags().StringVar(&speedName, "speed", "", "")
	require.NoError(t, cmd.Flags().Parse([]string{"--port", "/dev/ttyACM1", "--speed", "1000"}))

	cfg := config.Default()
	cfg.Connection.URL = "ws://bridge/ws"
	cfg.Sensor.Filter = "none"

	require.NoError(t, applyFlags(cmd, cfg))

	assert.Equal(t, "/dev/ttyACM1", cfg.Connection.Port)
	assert.Empty(t, cfg.Connection.URL)
	assert.Equal(t, "1000", cfg.Sensor.Speed)
	assert.Equal(t, "none", cfg.Sensor.Filter)
	require.NoError(t, config.Validate(cfg))
}

func TestApplyFlags_RejectsTwoSources(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().StringVar(&portName, "port", "", "")
	cmd.Flags().StringVar(&wsURL, "url", "", "")
	cmd.Flags().StringVar(&replayPath, "replay", "", "")
	require.NoError(t, cmd.Flags().Parse([]string{"--port", "/dev/ttyACM1", "--url", "ws://bridge/ws"}))

	cfg := config.Default()
	err := applyFlags(cmd, cfg)
	require.ErrorContains(t, err, "only one of")
	assert.Empty(t, cfg.Connection.Port)
	assert.Empty(t, cfg.Connection.URL)
}

func TestSetupLogger(t *testing.T) {
	log := logrus.New()
	require.NoError(t, setupLogger(log, config.LogConfig{Level: "debug", Format: "json"}))
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)

	require.NoError(t, setupLogger(log, config.LogConfig{Level: "warn", Format: "text"}))
	assert.IsType(t, &logrus.TextFormatter{}, log.Formatter)

	assert.Error(t, setupLogger(log, config.LogConfig{Level: "loud"}))
	assert.Error(t, setupLogger(log, config.LogConfig{Level: "info", Format: "xml"}))
}

func TestOpenConnection_NoSource(t *testing.T) {
	_, _, err := OpenConnection(config.ConnectionConfig{})
	require.Error(t, err)
}

func TestOpenSensor_Replay(t *testing.T) {
	path := t.TempDir() + "/capture.bin"
	require.NoError(t, os.WriteFile(path, stream(packet(t, 5, 0)), 0o644))

	cfg := config.Default()
	cfg.Connection.Replay = path
	sensor, connInfo, err := openSensor(cfg)
	require.NoError(t, err)
	defer sensor.Close()

	assert.Equal(t, "Replay: "+path, connInfo)
	r, err := sensor.Read(false)
	require.NoError(t, err)
	assert.Equal(t, uint16(5), r.Count)
}

// ============================================================
// raw_log
// ============================================================

func TestReadingWriters(t *testing.T) {
	r := readOne(t, packet(t, 42, 0))
	f, err := optoforce.FormatFor(optoforce.VariantCompact)
	require.NoError(t, err)

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		w, err := newReadingWriter("text", &buf, f)
		require.NoError(t, err)
		require.NoError(t, w.Write(r))
		assert.Contains(t, buf.String(), "count=42")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		w, err := newReadingWriter("json", &buf, f)
		require.NoError(t, err)
		require.NoError(t, w.Write(r))

		var doc map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
		assert.Equal(t, "compact", doc["variant"])
		assert.Equal(t, 42.0, doc["count"])
	})

	t.Run("cbor", func(t *testing.T) {
		var buf bytes.Buffer
		w, err := newReadingWriter("cbor", &buf, f)
		require.NoError(t, err)
		require.NoError(t, w.Write(r))

		decoded, err := optoforce.UnmarshalReadingCBOR(buf.Bytes())
		require.NoError(t, err)
		assert.Equal(t, r.Count, decoded.Count)
	})

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		w, err := newReadingWriter("csv", &buf, f)
		require.NoError(t, err)
		require.NoError(t, w.Write(r))
		require.NoError(t, w.Flush())

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 2)
		assert.Equal(t, strings.Join(optoforce.FormatCSVHeader(f), ","), lines[0])
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := newReadingWriter("xml", io.Discard, f)
		require.Error(t, err)
	})
}

func TestLogBatches_ReadsWholeCapture(t *testing.T) {
	sensor := memorySensor(t, stream(packet(t, 1, 0), []byte{0x13}, packet(t, 2, 0), packet(t, 3, 0)))
	var buf bytes.Buffer
	w, err := newReadingWriter("json", &buf, sensor.Format())
	require.NoError(t, err)

	require.NoError(t, logBatches(sensor, w))
	assert.Equal(t, 3, strings.Count(buf.String(), "\n"))
}

func TestIsEndOfStream(t *testing.T) {
	assert.True(t, isEndOfStream(&optoforce.TransportError{Op: "sync", Err: io.EOF}))
	assert.True(t, isEndOfStream(&optoforce.TransportError{Op: "read body", Err: io.ErrUnexpectedEOF}))
	assert.True(t, isEndOfStream(fmt.Errorf("wrapped: %w", transport.ErrConnectionClosed)))
	assert.True(t, isEndOfStream(transport.ErrPortClosed))
	assert.False(t, isEndOfStream(errors.New("device reports an error")))

	assert.NoError(t, endOfStream(io.EOF))
	assert.Error(t, endOfStream(errors.New("boom")))
}

// ============================================================
// error_detection
// ============================================================

func TestTracker_Observe(t *testing.T) {
	tr := newTracker(nil)

	_, synced := tr.observe(sensorEvent{reading: readOne(t, corrupt(packet(t, 1, 0)))})
	assert.False(t, synced)

	anomalies, synced := tr.observe(sensorEvent{reading: readOne(t, packet(t, 2, 0)), skipped: 4})
	assert.True(t, synced)
	assert.Empty(t, anomalies)

	anomalies, synced = tr.observe(sensorEvent{reading: readOne(t, packet(t, 5, 0)), skipped: 4})
	assert.False(t, synced)
	require.Len(t, anomalies, 1)
	assert.Equal(t, optoforce.AnomalyCountGap, anomalies[0].Type)

	tr.observe(sensorEvent{err: io.EOF})

	assert.Equal(t, uint64(3), tr.stats.TotalReadings)
	assert.Equal(t, uint64(1), tr.stats.ChecksumErrors)
	assert.Equal(t, uint64(2), tr.stats.LostPackets)
	assert.Equal(t, uint64(1), tr.stats.TransportErrors)
	assert.Equal(t, uint64(4), tr.stats.SkippedBytes)
}

func TestRunTextMode_Replay(t *testing.T) {
	showAll = false
	statsInterval = 60

	data := stream([]byte{0x00, 0x01}, packet(t, 1, 0), packet(t, 2, 1<<9), corrupt(packet(t, 3, 0)))
	sensor := memorySensor(t, data)

	var out bytes.Buffer
	require.NoError(t, runTextMode(sensor, "Replay: test", newTracker(nil), &out))

	text := out.String()
	assert.Contains(t, text, "[SYNC] Synchronized after skipping 2 bytes")
	assert.Contains(t, text, "Overloaded axes: Fx")
	assert.Contains(t, text, "READING REJECTED")
	assert.Contains(t, text, "=== Statistics")
}

func TestModel_Update(t *testing.T) {
	f, err := optoforce.FormatFor(optoforce.VariantCompact)
	require.NoError(t, err)
	m := initialModel("Replay: test", f, 10, true, newTracker(nil))

	r := readOne(t, packet(t, 7, 0))
	updated, _ := m.Update(sensorDataMsg{reading: r, skipped: 3})
	m = updated.(model)

	assert.Same(t, r, m.last)
	assert.True(t, m.tracker.synchronized)
	assert.Equal(t, uint64(3), m.invalidBytes)
	require.Len(t, m.errorLog, 2)
	assert.Equal(t, "Synchronized after skipping 3 bytes", m.errorLog[0].message)
	assert.Equal(t, "count 7 (valid)", m.errorLog[1].message)
	assert.Contains(t, m.View(), "OPTOSTAT - ERROR DETECTION")

	updated, _ = m.Update(sensorDataMsg{err: &optoforce.TransportError{Op: "sync", Err: io.EOF}})
	m = updated.(model)
	assert.True(t, m.ended)
	assert.Equal(t, "Connection closed", m.errorLog[len(m.errorLog)-1].message)

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	m = updated.(model)
	assert.True(t, m.quitting)
	assert.NotNil(t, cmd)
}

func TestFormatElapsed(t *testing.T) {
	assert.Equal(t, "0 seconds", formatElapsed(0))
	assert.Equal(t, "1 second", formatElapsed(time.Second))
	assert.Equal(t, "2 minutes and 5 seconds", formatElapsed(125*time.Second))
	assert.Equal(t, "1 day, 1 hour, and 1 minute", formatElapsed(25*time.Hour+time.Minute))
}

func TestBarPercent(t *testing.T) {
	assert.Equal(t, 0.0, barPercent(5, 0))
	assert.Equal(t, 0.5, barPercent(-5, 10))
	assert.Equal(t, 1.0, barPercent(20, 10))
}

// ============================================================
// publish
// ============================================================

func TestPublishReadings_SkipsCorrupt(t *testing.T) {
	data := stream(packet(t, 1, 0), corrupt(packet(t, 2, 0)), packet(t, 3, 0))
	sm := newSensorManager(func() (*optoforce.Sensor, string, error) {
		return memorySensor(t, data), "memory", nil
	})
	require.NoError(t, sm.connect())

	out := &recordingSink{}
	n, err := publishReadings(context.Background(), sm, out, publishOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []uint16{1, 3}, out.counts)

	// --all keeps the corrupt reading
	require.NoError(t, sm.connect())
	out = &recordingSink{}
	n, err = publishReadings(context.Background(), sm, out, publishOptions{all: true})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestPublishReadings_PublishErrorsContinue(t *testing.T) {
	sm := newSensorManager(func() (*optoforce.Sensor, string, error) {
		return memorySensor(t, stream(packet(t, 1, 0), packet(t, 2, 0))), "memory", nil
	})
	require.NoError(t, sm.connect())

	n, err := publishReadings(context.Background(), sm, &recordingSink{err: errors.New("broker down")}, publishOptions{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPublishReadings_Reconnects(t *testing.T) {
	captures := [][]byte{
		stream(packet(t, 1, 0), packet(t, 2, 0)),
		nil, // open fails once
		stream(packet(t, 10, 0)),
	}
	opens := 0
	sm := newSensorManager(func() (*optoforce.Sensor, string, error) {
		i := opens
		opens++
		if i >= len(captures) || captures[i] == nil {
			return nil, "", errors.New("no such device")
		}
		return memorySensor(t, captures[i]), fmt.Sprintf("memory %d", i), nil
	})
	sm.initialBackoff = time.Millisecond
	sm.maxBackoff = 2 * time.Millisecond
	require.NoError(t, sm.connect())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out := &recordingSink{onCount: func(n int) {
		if n == 3 {
			cancel()
		}
	}}

	n, err := publishReadings(ctx, sm, out, publishOptions{reconnect: true})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []uint16{1, 2, 10}, out.counts)
	assert.Equal(t, 3, opens)

	_, connInfo := sm.current()
	assert.Equal(t, "memory 2", connInfo)
}

func TestSensorManager_ReconnectCancelled(t *testing.T) {
	sm := newSensorManager(func() (*optoforce.Sensor, string, error) {
		return nil, "", errors.New("unplugged")
	})
	sm.initialBackoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, sm.reconnect(ctx), context.Canceled)
	require.NoError(t, sm.close())
}

func TestSensorManager_ShutdownDuringReopen(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sm *sensorManager
	var reopened *transport.MemoryPort
	opens := 0
	sm = newSensorManager(func() (*optoforce.Sensor, string, error) {
		opens++
		port := transport.NewMemoryPort(packet(t, uint16(opens), 0))
		sensor, err := optoforce.NewSensor(port, optoforce.VariantCompact, optoforce.DefaultConfigFrame())
		if err != nil {
			return nil, "", err
		}
		if opens == 2 {
			// Interrupt arrives while the port is being reopened
			reopened = port
			cancel()
			sm.close()
		}
		return sensor, "memory", nil
	})
	sm.initialBackoff = time.Millisecond
	require.NoError(t, sm.connect())

	require.ErrorIs(t, sm.reconnect(ctx), context.Canceled)
	require.NotNil(t, reopened)
	_, err := reopened.Read(make([]byte, 1))
	assert.ErrorIs(t, err, transport.ErrPortClosed)
}

func TestSensorManager_SetAfterClose(t *testing.T) {
	port := transport.NewMemoryPort(packet(t, 1, 0))
	sensor, err := optoforce.NewSensor(port, optoforce.VariantCompact, optoforce.DefaultConfigFrame())
	require.NoError(t, err)

	sm := newSensorManager(func() (*optoforce.Sensor, string, error) {
		return sensor, "memory", nil
	})
	require.NoError(t, sm.close())
	require.ErrorIs(t, sm.connect(), errManagerClosed)

	current, _ := sm.current()
	assert.Nil(t, current)
	_, err = port.Read(make([]byte, 1))
	assert.ErrorIs(t, err, transport.ErrPortClosed)
}
