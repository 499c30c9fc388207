// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Thermoquad/optostat/internal/sink"
	"github.com/Thermoquad/optostat/internal/transport"
	"github.com/Thermoquad/optostat/pkg/optoforce"
	"github.com/spf13/cobra"
)

var (
	rawLogLatest bool
	rawLogFormat string
	rawLogBatch  bool
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display decoded sensor readings",
	Long: `Configure the sensor, then continuously decode and print readings as they arrive.

Output formats:
  text - human-readable block per reading (default)
  json - one JSON object per line, same document as the publish command
  cbor - a CBOR sequence on stdout, for piping into other tools
  csv  - one row per reading with a header line

--latest discards stale buffered bytes before every read so each reading is
as recent as possible. --batch drains every complete packet already buffered
on each pass instead of reading one at a time.

Supports serial, WebSocket and replayed connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().BoolVar(&rawLogLatest, "latest", false, "Discard stale input and read only the newest packet")
	rawLogCmd.Flags().StringVarP(&rawLogFormat, "format", "f", "text", "Output format: text, json, cbor, csv")
	rawLogCmd.Flags().BoolVar(&rawLogBatch, "batch", false, "Read every buffered packet per pass")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	if rawLogLatest && rawLogBatch {
		return fmt.Errorf("--latest and --batch cannot be combined")
	}

	sensor, connInfo, err := openSensor(settings)
	if err != nil {
		return err
	}
	defer sensor.Close()

	out, err := newReadingWriter(rawLogFormat, os.Stdout, sensor.Format())
	if err != nil {
		return err
	}
	defer out.Flush()

	if rawLogFormat == "text" {
		fmt.Printf("Optostat - Raw Reading Log\n")
		fmt.Printf("Connection: %s\n", connInfo)
		fmt.Printf("Sensor: %s, config % X\n", sensor.Format().Variant, sensor.Config().Bytes())
		fmt.Printf("Press Ctrl+C to exit\n\n")
	}

	if rawLogBatch {
		return logBatches(sensor, out)
	}

	for {
		reading, err := sensor.Read(rawLogLatest)
		if err != nil {
			return endOfStream(err)
		}
		if err := out.Write(reading); err != nil {
			return err
		}
	}
}

// logBatches writes everything buffered, then blocks for the next packet
// when the buffer holds less than a full one.
func logBatches(sensor *optoforce.Sensor, out readingWriter) error {
	for {
		readings, err := sensor.ReadAllBuffered()
		for _, r := range readings {
			if werr := out.Write(r); werr != nil {
				return werr
			}
		}
		if err != nil {
			return endOfStream(err)
		}
		if len(readings) > 0 {
			continue
		}

		reading, err := sensor.Read(false)
		if err != nil {
			return endOfStream(err)
		}
		if err := out.Write(reading); err != nil {
			return err
		}
	}
}

// endOfStream turns a closed or exhausted connection into a clean exit
func endOfStream(err error) error {
	if isEndOfStream(err) {
		logger.Info("connection closed")
		return nil
	}
	return err
}

func isEndOfStream(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, transport.ErrConnectionClosed) ||
		errors.Is(err, transport.ErrPortClosed)
}

// readingWriter renders readings in one output format
type readingWriter interface {
	Write(r *optoforce.Reading) error
	Flush() error
}

func newReadingWriter(format string, w io.Writer, f optoforce.PacketFormat) (readingWriter, error) {
	switch format {
	case "text":
		return &textWriter{w: w}, nil
	case "json":
		return &jsonWriter{enc: json.NewEncoder(w)}, nil
	case "cbor":
		return &cborWriter{w: w}, nil
	case "csv":
		cw := &csvWriter{w: csv.NewWriter(w)}
		if err := cw.w.Write(optoforce.FormatCSVHeader(f)); err != nil {
			return nil, err
		}
		return cw, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (use text, json, cbor or csv)", format)
	}
}

type textWriter struct{ w io.Writer }

func (t *textWriter) Write(r *optoforce.Reading) error {
	_, err := fmt.Fprint(t.w, optoforce.FormatReading(r))
	return err
}

func (t *textWriter) Flush() error { return nil }

type jsonWriter struct{ enc *json.Encoder }

func (j *jsonWriter) Write(r *optoforce.Reading) error {
	return j.enc.Encode(sink.NewPayload(r))
}

func (j *jsonWriter) Flush() error { return nil }

type cborWriter struct{ w io.Writer }

func (c *cborWriter) Write(r *optoforce.Reading) error {
	data, err := optoforce.MarshalReadingCBOR(r)
	if err != nil {
		return err
	}
	_, err = c.w.Write(data)
	return err
}

func (c *cborWriter) Flush() error { return nil }

type csvWriter struct{ w *csv.Writer }

func (c *csvWriter) Write(r *optoforce.Reading) error {
	if err := c.w.Write(optoforce.FormatCSVRow(r)); err != nil {
		return err
	}
	c.w.Flush()
	return c.w.Error()
}

func (c *csvWriter) Flush() error {
	c.w.Flush()
	return c.w.Error()
}
