// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Thermoquad/optostat/pkg/optoforce"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Error log entry
type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for info
}

// TUI model
type model struct {
	connInfo      string
	format        optoforce.PacketFormat
	statsInterval int
	showAll       bool
	tracker       *tracker
	errorLog      []errorLogEntry
	maxLogEntries int
	invalidBytes  uint64
	width         int
	height        int
	quitting      bool
	ended         bool
	last          *optoforce.Reading

	// Force bars of the first sensor, auto-ranged to the largest magnitude seen
	bars [3]progress.Model
	peak [3]float64
}

// Messages
type tickMsg time.Time
type sensorDataMsg sensorEvent

// formatElapsed formats a duration to a human-friendly string
func formatElapsed(d time.Duration) string {
	total := uint64(d / time.Second)
	if total == 0 {
		return "0 seconds"
	}

	seconds := total % 60
	minutes := (total / 60) % 60
	hours := (total / 3600) % 24
	days := total / 86400

	plural := func(n uint64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}

	parts := []string{}
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if seconds > 0 {
		parts = append(parts, plural(seconds, "second"))
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

func initialModel(connInfo string, format optoforce.PacketFormat, statsInterval int, showAll bool, t *tracker) model {
	m := model{
		connInfo:      connInfo,
		format:        format,
		statsInterval: statsInterval,
		showAll:       showAll,
		tracker:       t,
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
	for i := range m.bars {
		m.bars[i] = progress.New(progress.WithDefaultGradient(), progress.WithWidth(40), progress.WithoutPercentage())
	}
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.tracker.stats.Reset()
			m.tracker.validator.Reset()
			m.addLogEntry("Statistics reset", false)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		for i := range m.bars {
			m.bars[i].Width = max(10, min(60, msg.Width-40))
		}

	case tickMsg:
		m.tracker.stats.CalculateRates()
		return m, tickCmd()

	case sensorDataMsg:
		m.handleEvent(sensorEvent(msg))
	}

	return m, nil
}

func (m *model) handleEvent(ev sensorEvent) {
	anomalies, synced := m.tracker.observe(ev)

	if ev.err != nil {
		m.ended = true
		if isEndOfStream(ev.err) {
			m.addLogEntry("Connection closed", true)
		} else {
			m.addLogEntry(fmt.Sprintf("READ ERROR: %v", ev.err), true)
		}
		return
	}

	r := ev.reading
	if synced {
		m.invalidBytes = ev.skipped
		if ev.skipped > 0 {
			m.addLogEntry(fmt.Sprintf("Synchronized after skipping %d bytes", ev.skipped), false)
		} else {
			m.addLogEntry("Synchronized", false)
		}
	}

	if r.ChecksumValid {
		m.last = r
		for i, v := range []float64{r.Fx(), r.Fy(), r.Fz()} {
			m.peak[i] = math.Max(m.peak[i], math.Abs(v))
		}
	}

	if len(anomalies) > 0 {
		for _, a := range anomalies {
			m.addLogEntry(fmt.Sprintf("count %d: %s", r.Count, a.Message), true)
		}
	} else if m.showAll {
		m.addLogEntry(fmt.Sprintf("count %d (valid)", r.Count), false)
	}
}

func (m *model) addLogEntry(message string, isError bool) {
	entry := errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.errorLog = append(m.errorLog, entry)

	// Keep only last N entries
	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

// barPercent maps a force to its share of the largest magnitude seen
func barPercent(value, peak float64) float64 {
	if peak <= 0 {
		return 0
	}
	return math.Min(1, math.Abs(value)/peak)
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	stats := m.tracker.stats

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("OPTOSTAT - ERROR DETECTION"))
	s.WriteString("\n")
	mode := "Errors only"
	if m.showAll {
		mode = "All readings"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | %s | Mode: %s | Up %s | 'r' reset, 'q' quit",
		m.connInfo, m.format.Variant, mode, formatElapsed(time.Since(stats.StartTime)))))
	s.WriteString("\n\n")

	// Sync status
	switch {
	case m.ended:
		s.WriteString(errorStyle.Render("✗ Stream ended"))
	case !m.tracker.synchronized:
		s.WriteString(warningStyle.Render("⏳ Waiting for synchronization..."))
	default:
		s.WriteString(statsValueStyle.Render("✓ Synchronized"))
		if m.invalidBytes > 0 {
			s.WriteString(headerStyle.Render(fmt.Sprintf(" (skipped %d bytes)", m.invalidBytes)))
		}
	}
	s.WriteString("\n\n")

	// Statistics
	var validPercent, errorPercent float64
	if stats.TotalReadings > 0 {
		validPercent = float64(stats.ValidReadings) * 100.0 / float64(stats.TotalReadings)
		errorPercent = float64(stats.Errors()) * 100.0 / float64(stats.TotalReadings)
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", stats.TotalReadings)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", stats.ValidReadings, validPercent)),
		statsLabelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", stats.Errors(), errorPercent)),
	))

	if stats.ChecksumErrors > 0 || stats.StatusErrors > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			statsLabelStyle.Render("Checksum Errors:"), errorStyle.Render(fmt.Sprintf("%d", stats.ChecksumErrors)),
			statsLabelStyle.Render("Status Errors:"), errorStyle.Render(fmt.Sprintf("%d", stats.StatusErrors)),
		))
	}

	if stats.Overloads > 0 || stats.LostPackets > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
			statsLabelStyle.Render("Overloads:"), warningStyle.Render(fmt.Sprintf("%d", stats.Overloads)),
			statsLabelStyle.Render("Lost:"), warningStyle.Render(fmt.Sprintf("%d", stats.LostPackets)),
		))
		if stats.RepeatedCounts > 0 {
			statsContent.WriteString(headerStyle.Render(fmt.Sprintf(" (repeated counts: %d)", stats.RepeatedCounts)))
		}
		statsContent.WriteString("\n")
	}

	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("Reading Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f/s", stats.ReadingRate)),
		statsLabelStyle.Render("Error Rate:"), func() string {
			if stats.ErrorRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f err/s", stats.ErrorRate))
			}
			return statsValueStyle.Render(fmt.Sprintf("%.1f err/s", stats.ErrorRate))
		}(),
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Latest reading (only shown once a valid reading arrived)
	if m.last != nil {
		s.WriteString(statsLabelStyle.Render("Latest Reading:"))
		s.WriteString("\n")

		readingContent := strings.Builder{}
		readingContent.WriteString(fmt.Sprintf("%s %s   %s 0x%04X\n",
			statsLabelStyle.Render("Count:"), statsValueStyle.Render(fmt.Sprintf("%d", m.last.Count)),
			statsLabelStyle.Render("Status:"), m.last.Status,
		))

		labels := []string{"Fx", "Fy", "Fz"}
		values := []float64{m.last.Fx(), m.last.Fy(), m.last.Fz()}
		for i := range labels {
			readingContent.WriteString(fmt.Sprintf("%s %s %s\n",
				statsLabelStyle.Render(labels[i]+":"),
				statsValueStyle.Render(fmt.Sprintf("%9.3f N", values[i])),
				m.bars[i].ViewAs(barPercent(values[i], m.peak[i])),
			))
		}

		// Remaining sensors of a multi-sensor packet
		for i := 1; i < len(m.last.Forces); i++ {
			f := m.last.Forces[i]
			readingContent.WriteString(fmt.Sprintf("%s Fx=%.3f N Fy=%.3f N Fz=%.3f N\n",
				statsLabelStyle.Render(fmt.Sprintf("Sensor %d:", i+1)), f.X, f.Y, f.Z))
		}

		if m.last.Torque != nil {
			readingContent.WriteString(fmt.Sprintf("%s Tx=%d Ty=%d Tz=%d %s\n",
				statsLabelStyle.Render("Torque:"), m.last.Torque.X, m.last.Torque.Y, m.last.Torque.Z,
				headerStyle.Render("(raw, unscaled)")))
		}

		if !m.last.NoErrors() {
			readingContent.WriteString(warningStyle.Render(m.last.StatusReport().String()))
			readingContent.WriteString("\n")
		}

		s.WriteString(boxStyle.Render(readingContent.String()))
		s.WriteString("\n\n")
	}

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	// Calculate how many log entries we can show
	logHeight := m.height - 22 // Reserve space for header, stats and reading
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.errorLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.errorLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.errorLog); i++ {
			entry := m.errorLog[i]
			timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}
