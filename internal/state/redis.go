package state

import (
	"context"
	"errors"
	"fmt"

	"signalwatch/internal/signal"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one hash per subscriber: field = symbol, value = classification.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "signalwatch"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) signalsKey(sub signal.Subscriber) string {
	return fmt.Sprintf("%s:signals:%s", s.prefix, sub)
}

func (s *RedisStore) LastAlerted(ctx context.Context, sub signal.Subscriber, sym signal.Symbol) (signal.Classification, bool, error) {
	v, err := s.client.HGet(ctx, s.signalsKey(sub), string(sym)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis hget: %w", err)
	}
	c, err := signal.ParseClassification(v)
	if err != nil {
		return "", false, err
	}
	return c, true, nil
}

func (s *RedisStore) Record(ctx context.Context, sub signal.Subscriber, sym signal.Symbol, c signal.Classification) error {
	if err := s.client.HSet(ctx, s.signalsKey(sub), string(sym), string(c)).Err(); err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

func (s *RedisStore) Forget(ctx context.Context, sub signal.Subscriber) error {
	if err := s.client.Del(ctx, s.signalsKey(sub)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
