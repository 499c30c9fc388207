// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Thermoquad/optostat/pkg/optoforce"
)

var errManagerClosed = errors.New("connection closed")

// sensorOpener opens and configures a sensor
type sensorOpener func() (*optoforce.Sensor, string, error)

// sensorManager handles the sensor lifecycle and reconnection
type sensorManager struct {
	mu       sync.Mutex
	sensor   *optoforce.Sensor
	connInfo string
	open     sensorOpener
	closed   bool

	initialBackoff time.Duration
	maxBackoff     time.Duration
}

func newSensorManager(open sensorOpener) *sensorManager {
	return &sensorManager{
		open:           open,
		initialBackoff: 1 * time.Second,
		maxBackoff:     30 * time.Second,
	}
}

// connect opens the first sensor
func (sm *sensorManager) connect() error {
	sensor, connInfo, err := sm.open()
	if err != nil {
		return err
	}
	if !sm.set(sensor, connInfo) {
		return errManagerClosed
	}
	return nil
}

func (sm *sensorManager) current() (*optoforce.Sensor, string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.sensor, sm.connInfo
}

// set stores a new sensor. After close it closes the sensor instead and
// reports false.
func (sm *sensorManager) set(sensor *optoforce.Sensor, connInfo string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.closed {
		sensor.Close()
		return false
	}
	sm.sensor = sensor
	sm.connInfo = connInfo
	return true
}

// close closes the current sensor and any sensor set afterwards. Safe to
// call from another goroutine to unblock a pending read.
func (sm *sensorManager) close() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.closed = true
	if sm.sensor == nil {
		return nil
	}
	return sm.sensor.Close()
}

// drop closes the current sensor ahead of a reconnect
func (sm *sensorManager) drop() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.sensor != nil {
		sm.sensor.Close()
	}
}

// reconnect replaces the sensor with exponential backoff.
// It returns ctx.Err() if shutdown was requested first.
func (sm *sensorManager) reconnect(ctx context.Context) error {
	sm.drop()

	backoff := sm.initialBackoff
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		sensor, connInfo, err := sm.open()
		if err == nil {
			if ctx.Err() != nil {
				sensor.Close()
				return ctx.Err()
			}
			if !sm.set(sensor, connInfo) {
				return errManagerClosed
			}
			logger.WithField("connection", connInfo).Info("reconnected")
			return nil
		}

		// Exponential backoff
		backoff *= 2
		if backoff > sm.maxBackoff {
			backoff = sm.maxBackoff
		}
		logger.WithError(err).WithField("retry_in", backoff).Warn("reconnect failed")
	}
}
