package errreport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const publishTimeout = 2 * time.Second

// RedisReporter publishes events on a Redis pub/sub channel. Delivery happens
// in the background; failures are only logged.
type RedisReporter struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewRedisReporter connects to redisURL and verifies the connection.
func NewRedisReporter(redisURL, channel string, logger *zap.Logger) (*RedisReporter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisReporterWithClient(client, channel, logger), nil
}

// NewRedisReporterWithClient creates a reporter from an existing client
func NewRedisReporterWithClient(client *redis.Client, channel string, logger *zap.Logger) *RedisReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisReporter{client: client, channel: channel, logger: logger}
}

func (r *RedisReporter) Report(_ context.Context, err error, fields map[string]string) {
	event := NewEvent(err, fields)
	payload, marshalErr := json.Marshal(event)
	if marshalErr != nil {
		r.logger.Warn("errreport: marshal event", zap.Error(marshalErr))
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		// publish outlives the caller context
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
			r.logger.Warn("errreport: publish to redis",
				zap.String("channel", r.channel),
				zap.Error(err),
			)
		}
	}()
}

// Wait blocks until in-flight publishes have finished.
func (r *RedisReporter) Wait() {
	r.wg.Wait()
}

// Close drains in-flight publishes and closes the connection.
func (r *RedisReporter) Close() error {
	r.wg.Wait()
	return r.client.Close()
}

func (r *RedisReporter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
