// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package optoforce

import (
	"fmt"
	"time"
)

// Statistics tracks reading counts and error rates of a stream
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalReadings   uint64
	ValidReadings   uint64
	ChecksumErrors  uint64
	StatusErrors    uint64
	Overloads       uint64
	LostPackets     uint64
	RepeatedCounts  uint64
	TransportErrors uint64
	SkippedBytes    uint64

	// Rates (calculated)
	ReadingRate float64 // readings/sec
	ErrorRate   float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update counts a reading and the anomalies found in it
func (s *Statistics) Update(r *Reading, anomalies []ValidationError) {
	s.TotalReadings++
	s.LastUpdateTime = time.Now()

	if len(anomalies) == 0 {
		s.ValidReadings++
		return
	}

	for _, a := range anomalies {
		switch a.Type {
		case AnomalyChecksum:
			s.ChecksumErrors++
		case AnomalyStatusError:
			s.StatusErrors++
		case AnomalyOverload:
			s.Overloads++
		case AnomalyCountGap:
			if lost, ok := a.Details["lost"].(uint16); ok {
				s.LostPackets += uint64(lost)
			}
		case AnomalyCountRepeat:
			s.RepeatedCounts++
		}
	}

	// A sequence gap alone does not make the reading itself bad
	if onlySequence(anomalies) {
		s.ValidReadings++
	}
}

func onlySequence(anomalies []ValidationError) bool {
	for _, a := range anomalies {
		if a.Type != AnomalyCountGap && a.Type != AnomalyCountRepeat {
			return false
		}
	}
	return true
}

// RecordTransportError counts a failed read
func (s *Statistics) RecordTransportError() {
	s.TransportErrors++
	s.LastUpdateTime = time.Now()
}

// SetSkippedBytes records the frame reader's skipped byte total
func (s *Statistics) SetSkippedBytes(n uint64) {
	s.SkippedBytes = n
}

// Errors returns the number of readings or reads that failed
func (s *Statistics) Errors() uint64 {
	return s.ChecksumErrors + s.StatusErrors + s.Overloads + s.TransportErrors
}

// CalculateRates calculates reading and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.ReadingRate = float64(s.TotalReadings) / elapsed
		s.ErrorRate = float64(s.Errors()) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	percent := func(n uint64) float64 {
		if s.TotalReadings == 0 {
			return 0
		}
		return float64(n) * 100.0 / float64(s.TotalReadings)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Readings:  %8d\n", s.TotalReadings)
	result += fmt.Sprintf("Valid Readings:  %8d (%.1f%%)\n", s.ValidReadings, percent(s.ValidReadings))

	if s.ChecksumErrors > 0 {
		result += fmt.Sprintf("Checksum Errors: %8d (%.1f%%)\n", s.ChecksumErrors, percent(s.ChecksumErrors))
	}
	if s.StatusErrors > 0 {
		result += fmt.Sprintf("Status Errors:   %8d (%.1f%%)\n", s.StatusErrors, percent(s.StatusErrors))
	}
	if s.Overloads > 0 {
		result += fmt.Sprintf("Overloads:       %8d (%.1f%%)\n", s.Overloads, percent(s.Overloads))
	}
	if s.LostPackets > 0 || s.RepeatedCounts > 0 {
		result += fmt.Sprintf("Lost Packets:    %8d\n", s.LostPackets)
		if s.RepeatedCounts > 0 {
			result += fmt.Sprintf("  Repeated Counts:  %5d\n", s.RepeatedCounts)
		}
	}
	if s.TransportErrors > 0 {
		result += fmt.Sprintf("Transport Errors:%8d\n", s.TransportErrors)
	}
	if s.SkippedBytes > 0 {
		result += fmt.Sprintf("Skipped Bytes:   %8d\n", s.SkippedBytes)
	}

	result += fmt.Sprintf("Reading Rate:    %8.1f readings/sec\n", s.ReadingRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
