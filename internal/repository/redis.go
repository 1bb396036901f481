package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"pizzachallenge/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// ChangesChannel is the pub/sub channel carrying every change event
	ChangesChannel = "pizza:changes"

	// VersionKeyPrefix prefixes the per-collection version counters used for
	// change detection by the WebSocket heartbeat
	VersionKeyPrefix = "pizza:version:"
)

// VersionKey returns the version counter key of a collection
func VersionKey(collection models.Collection) string {
	return VersionKeyPrefix + string(collection)
}

// RedisRepository fans change notifications out through Redis
type RedisRepository struct {
	client *redis.Client
}

// NewRedisRepository creates a new Redis repository
func NewRedisRepository(client *redis.Client) *RedisRepository {
	return &RedisRepository{
		client: client,
	}
}

// Publish bumps the collection version and publishes the event with it
func (r *RedisRepository) Publish(ctx context.Context, event models.ChangeEvent) error {
	version, err := r.client.Incr(ctx, VersionKey(event.Collection)).Result()
	if err != nil {
		return fmt.Errorf("failed to bump %s version: %w", event.Collection, err)
	}
	event.Version = version

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, ChangesChannel, payload).Err()
}

// Versions returns the current version of every collection. Collections that
// never changed report 0.
func (r *RedisRepository) Versions(ctx context.Context) (map[models.Collection]int64, error) {
	keys := make([]string, len(models.Collections))
	for i, collection := range models.Collections {
		keys[i] = VersionKey(collection)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	versions := make(map[models.Collection]int64, len(keys))
	for i, value := range values {
		collection := models.Collections[i]
		versions[collection] = 0
		str, ok := value.(string)
		if !ok {
			continue
		}
		if version, err := strconv.ParseInt(str, 10, 64); err == nil {
			versions[collection] = version
		}
	}
	return versions, nil
}

// Subscribe streams change events until ctx is done or the returned close
// function is called. The subscription is confirmed before returning.
func (r *RedisRepository) Subscribe(ctx context.Context) (<-chan models.ChangeEvent, func() error, error) {
	pubsub := r.client.Subscribe(ctx, ChangesChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe to %s: %w", ChangesChannel, err)
	}

	out := make(chan models.ChangeEvent, 64)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var event models.ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				zap.L().Warn("dropping malformed change event", zap.Error(err))
				continue
			}
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, pubsub.Close, nil
}

// Ping checks if Redis is reachable
func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (r *RedisRepository) Close() error {
	return r.client.Close()
}
