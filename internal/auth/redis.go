package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the token under one key that expires at the midnight
// following its issue date.
type RedisStore struct {
	client redis.Cmdable
	key    string
	now    func() time.Time
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client redis.Cmdable, key string) *RedisStore {
	return &RedisStore{client: client, key: key, now: time.Now}
}

func (s *RedisStore) Load(ctx context.Context) (Token, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Token{}, ErrNoToken
	}
	if err != nil {
		return Token{}, fmt.Errorf("get %s: %w", s.key, err)
	}

	var t Token
	if err := json.Unmarshal(raw, &t); err != nil {
		return Token{}, fmt.Errorf("decode %s: %w", s.key, err)
	}
	if !t.ValidAt(s.now()) {
		return t, ErrTokenExpired
	}
	return t, nil
}

func (s *RedisStore) Save(ctx context.Context, t Token) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	ttl := nextMidnight(t.Date).Sub(s.now())
	if ttl <= 0 {
		return ErrTokenExpired
	}
	if err := s.client.Set(ctx, s.key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", s.key, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("del %s: %w", s.key, err)
	}
	return nil
}

func nextMidnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}
