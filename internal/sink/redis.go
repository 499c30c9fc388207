// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sink

import (
	"context"
	"fmt"

	"github.com/Thermoquad/optostat/internal/config"
	"github.com/Thermoquad/optostat/pkg/optoforce"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// redisClient is the subset of *redis.Client used by RedisSink
type redisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
	Close() error
}

// RedisSink publishes readings on a pub/sub channel and keeps a bounded
// history list at <channel>:history.
type RedisSink struct {
	client    redisClient
	channel   string
	listKey   string
	listLimit int64
	log       logrus.FieldLogger
}

// NewRedisSink connects to Redis and checks the connection
func NewRedisSink(ctx context.Context, cfg config.RedisConfig, log logrus.FieldLogger) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: connect to %s: %w", cfg.Addr, err)
	}
	log.WithField("channel", cfg.Channel).Info("redis connected")

	return newRedisSink(client, cfg, log), nil
}

func newRedisSink(client redisClient, cfg config.RedisConfig, log logrus.FieldLogger) *RedisSink {
	return &RedisSink{
		client:    client,
		channel:   cfg.Channel,
		listKey:   cfg.Channel + ":history",
		listLimit: cfg.ListLimit,
		log:       log,
	}
}

func (s *RedisSink) Publish(ctx context.Context, r *optoforce.Reading) error {
	data, err := EncodeReading(r)
	if err != nil {
		return fmt.Errorf("redis: encode reading: %w", err)
	}

	if err := s.client.Publish(ctx, s.channel, data).Err(); err != nil {
		return fmt.Errorf("redis: publish: %w", err)
	}

	if s.listLimit <= 0 {
		return nil
	}
	if err := s.client.LPush(ctx, s.listKey, data).Err(); err != nil {
		s.log.WithError(err).Warn("failed to append reading history")
		return nil
	}
	if err := s.client.LTrim(ctx, s.listKey, 0, s.listLimit-1).Err(); err != nil {
		s.log.WithError(err).Warn("failed to trim reading history")
	}
	return nil
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}
