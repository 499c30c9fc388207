// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/optostat/pkg/optoforce"
	"github.com/spf13/cobra"
)

var (
	packetTestTimeout int
)

// Exit codes of packet_test
const (
	exitPacketReceived = 0
	exitTimeout        = 1
	exitConnection     = 2
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test connection by waiting for a valid sensor packet",
	Long: `Wait for a packet with a valid checksum on the connection until timeout.

This command connects, sends the configuration frame and waits for any
packet of the selected variant whose checksum matches. Bytes before the
first header and packets with a bad checksum are skipped.

Exit codes:
  0 - Packet received before timeout
  1 - Timeout reached without receiving a valid packet
  2 - Connection error

Useful for testing wiring, baud rate and the variant setting.`,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for a packet")
}

type packetTestResult struct {
	reading  *optoforce.Reading
	skipped  uint64
	rejected int
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	sensor, connInfo, err := openSensor(settings)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(exitConnection)
	}
	defer sensor.Close()

	fmt.Printf("Optostat - Packet Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Variant: %s (%d-byte packets)\n", sensor.Format().Variant, sensor.Format().TotalSize)
	fmt.Printf("Timeout: %d seconds\n", packetTestTimeout)
	fmt.Printf("Waiting for valid packet...\n\n")

	resultChan := make(chan packetTestResult, 1)
	errChan := make(chan error, 1)

	go func() {
		result, err := waitForValidPacket(sensor)
		if err != nil {
			errChan <- err
			return
		}
		resultChan <- result
	}()

	select {
	case result := <-resultChan:
		if result.skipped > 0 {
			fmt.Printf("(skipped %d bytes before sync)\n", result.skipped)
		}
		if result.rejected > 0 {
			fmt.Printf("(rejected %d packets with bad checksum)\n", result.rejected)
		}
		r := result.reading
		fmt.Printf("SUCCESS: Received valid packet\n")
		fmt.Printf("  Count: %d\n", r.Count)
		fmt.Printf("  Status: 0x%04X (%s)\n", r.Status, noErrorsLabel(r.NoErrors()))
		fmt.Printf("  Force: Fx=%.4f N Fy=%.4f N Fz=%.4f N\n", r.Fx(), r.Fy(), r.Fz())
		fmt.Printf("  Checksum: 0x%04X\n", r.Checksum)
		os.Exit(exitPacketReceived)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(exitConnection)

	case <-time.After(time.Duration(packetTestTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid packet received within %d seconds\n", packetTestTimeout)
		os.Exit(exitTimeout)
	}

	return nil
}

// waitForValidPacket reads until a packet with a matching checksum arrives
func waitForValidPacket(sensor *optoforce.Sensor) (packetTestResult, error) {
	var result packetTestResult
	for {
		r, err := sensor.Read(false)
		if err != nil {
			return result, err
		}
		if !r.ChecksumValid {
			result.rejected++
			continue
		}
		result.reading = r
		result.skipped = sensor.Reader().SkippedBytes()
		return result, nil
	}
}

func noErrorsLabel(ok bool) string {
	if ok {
		return "no errors"
	}
	return "errors reported"
}
