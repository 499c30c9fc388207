// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Thermoquad/optostat/internal/sink"
	"github.com/Thermoquad/optostat/pkg/optoforce"
	"github.com/spf13/cobra"
)

var (
	mqttURL          string
	mqttQoS          int
	redisAddr        string
	redisChannel     string
	publishLatest    bool
	publishAll       bool
	publishReconnect bool
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Forward readings to MQTT and/or Redis",
	Long: `Decode readings and publish each one as a JSON document.

MQTT:  --mqtt-url mqtt://[user:pass@]host:1883/prefix
       Readings go to <prefix>/readings.
Redis: --redis-addr host:6379 [--redis-channel optoforce:readings]
       Readings are published on the channel and the newest ones are kept
       in the list <channel>:history.

Only readings with a valid checksum are published unless --all is given.
Readings whose status word reports errors are published with no_errors=false.

With --reconnect, a lost serial or WebSocket connection is reopened with
exponential backoff and the sensor is configured again.`,
	RunE: runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)
	publishCmd.Flags().StringVar(&mqttURL, "mqtt-url", "", "MQTT broker URL; the path is the topic prefix")
	publishCmd.Flags().IntVar(&mqttQoS, "mqtt-qos", 0, "MQTT QoS level (0, 1 or 2)")
	publishCmd.Flags().StringVar(&redisAddr, "redis-addr", "", "Redis server address")
	publishCmd.Flags().StringVar(&redisChannel, "redis-channel", settings.Publish.Redis.Channel, "Redis pub/sub channel")
	publishCmd.Flags().BoolVar(&publishLatest, "latest", false, "Discard stale input and publish only the newest packet")
	publishCmd.Flags().BoolVar(&publishAll, "all", false, "Also publish readings with a checksum mismatch")
	publishCmd.Flags().BoolVar(&publishReconnect, "reconnect", false, "Reopen the connection when it is lost")
}

// publishOptions controls the publish loop
type publishOptions struct {
	latest    bool
	all       bool
	reconnect bool
}

func runPublish(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	if flags.Changed("mqtt-url") {
		settings.Publish.MQTT.URL = mqttURL
	}
	if flags.Changed("mqtt-qos") {
		if mqttQoS < 0 || mqttQoS > 2 {
			return fmt.Errorf("--mqtt-qos must be 0, 1 or 2")
		}
		settings.Publish.MQTT.QoS = byte(mqttQoS)
	}
	if flags.Changed("redis-addr") {
		settings.Publish.Redis.Addr = redisAddr
	}
	if flags.Changed("redis-channel") {
		settings.Publish.Redis.Channel = redisChannel
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out, err := openSinks(ctx)
	if err != nil {
		return err
	}
	defer out.Close()

	sm := newSensorManager(func() (*optoforce.Sensor, string, error) {
		return openSensor(settings)
	})
	if err := sm.connect(); err != nil {
		return err
	}
	defer sm.close()

	// Closing the port unblocks a pending read on shutdown
	go func() {
		<-ctx.Done()
		sm.close()
	}()

	_, connInfo := sm.current()
	logger.WithField("connection", connInfo).Info("publishing readings")

	opts := publishOptions{
		latest:    publishLatest,
		all:       publishAll,
		reconnect: publishReconnect && settings.Connection.Replay == "",
	}
	published, err := publishReadings(ctx, sm, out, opts)
	logger.WithField("published", published).Info("publisher stopped")
	return err
}

// openSinks connects every configured broker
func openSinks(ctx context.Context) (sink.Fanout, error) {
	var out sink.Fanout
	cfg := settings.Publish

	if cfg.MQTT.URL != "" {
		m, err := sink.NewMQTTSink(cfg.MQTT, logger.WithField("sink", "mqtt"))
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if cfg.Redis.Addr != "" {
		r, err := sink.NewRedisSink(ctx, cfg.Redis, logger.WithField("sink", "redis"))
		if err != nil {
			out.Close()
			return nil, err
		}
		out = append(out, r)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no sink configured: set --mqtt-url and/or --redis-addr")
	}
	return out, nil
}

// publishReadings forwards readings until the stream ends or ctx is cancelled.
// Publish failures are logged and do not stop the loop.
func publishReadings(ctx context.Context, sm *sensorManager, out sink.Sink, opts publishOptions) (int, error) {
	published := 0
	for {
		sensor, _ := sm.current()
		r, err := sensor.Read(opts.latest)
		if err != nil {
			if ctx.Err() != nil {
				return published, nil
			}
			if !opts.reconnect {
				return published, endOfStream(err)
			}
			logger.WithError(err).Warn("connection lost")
			if err := sm.reconnect(ctx); err != nil {
				return published, nil
			}
			continue
		}

		if !r.ChecksumValid && !opts.all {
			logger.WithField("count", r.Count).Debug("skipping reading with checksum mismatch")
			continue
		}

		if err := out.Publish(ctx, r); err != nil {
			if ctx.Err() != nil {
				return published, nil
			}
			logger.WithError(err).WithField("count", r.Count).Warn("publish failed")
			continue
		}
		published++
	}
}
