// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package monitor

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Thermoquad/optostat/pkg/optoforce"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Metrics exports reading counters and the latest force values
type Metrics struct {
	registry *prometheus.Registry

	Readings        *prometheus.CounterVec
	Anomalies       *prometheus.CounterVec
	LostPackets     prometheus.Counter
	TransportErrors prometheus.Counter
	SkippedBytes    prometheus.Gauge
	Force           *prometheus.GaugeVec
	LastReading     prometheus.Gauge
}

// NewMetrics creates the collectors on a private registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		Readings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "optoforce_readings_total",
			Help: "Decoded readings by variant and checksum result",
		}, []string{"variant", "checksum"}),

		Anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "optoforce_anomalies_total",
			Help: "Validation anomalies by type",
		}, []string{"type"}),

		LostPackets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "optoforce_lost_packets_total",
			Help: "Packets missing from the sample counter sequence",
		}),

		TransportErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "optoforce_transport_errors_total",
			Help: "Failed reads on the sensor connection",
		}),

		SkippedBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "optoforce_skipped_bytes",
			Help: "Bytes discarded while searching for packet headers",
		}),

		Force: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "optoforce_force_newtons",
			Help: "Latest scaled force per sensor and axis",
		}, []string{"sensor", "axis"}),

		LastReading: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "optoforce_last_reading_timestamp_seconds",
			Help: "Unix time of the latest decoded reading",
		}),
	}

	m.registry.MustRegister(
		m.Readings,
		m.Anomalies,
		m.LostPackets,
		m.TransportErrors,
		m.SkippedBytes,
		m.Force,
		m.LastReading,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry returns the registry holding every collector
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe records one reading and the anomalies found in it. Force gauges
// are only updated from readings with a valid checksum.
func (m *Metrics) Observe(r *optoforce.Reading, anomalies []optoforce.ValidationError) {
	checksum := "ok"
	if !r.ChecksumValid {
		checksum = "mismatch"
	}
	m.Readings.WithLabelValues(r.Variant.String(), checksum).Inc()

	for _, a := range anomalies {
		m.Anomalies.WithLabelValues(a.Type.String()).Inc()
		if a.Type == optoforce.AnomalyCountGap {
			if lost, ok := a.Details["lost"].(uint16); ok {
				m.LostPackets.Add(float64(lost))
			}
		}
	}

	if !r.ChecksumValid {
		return
	}
	for i, f := range r.Forces {
		sensor := strconv.Itoa(i + 1)
		m.Force.WithLabelValues(sensor, "fx").Set(f.X)
		m.Force.WithLabelValues(sensor, "fy").Set(f.Y)
		m.Force.WithLabelValues(sensor, "fz").Set(f.Z)
	}
	if !r.Timestamp.IsZero() {
		m.LastReading.Set(float64(r.Timestamp.UnixNano()) / 1e9)
	}
}

// ObserveTransportError counts a failed read
func (m *Metrics) ObserveTransportError() {
	m.TransportErrors.Inc()
}

// SetSkippedBytes publishes the reader's running skip count
func (m *Metrics) SetSkippedBytes(n uint64) {
	m.SkippedBytes.Set(float64(n))
}

// Handler serves /metrics and /health
func (m *Metrics) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

// Server runs the metrics endpoint in the background
type Server struct {
	srv *http.Server
	log logrus.FieldLogger
}

// Serve starts listening on addr. Listen errors after startup are logged.
func (m *Metrics) Serve(addr string, log logrus.FieldLogger) *Server {
	s := &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           m.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log,
	}

	log.WithField("addr", addr).Info("metrics server started")
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server failed")
		}
	}()
	return s
}

// Shutdown stops the metrics server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
