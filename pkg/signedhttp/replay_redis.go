package signedhttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "nexus:replay:"

type redisEntry struct {
	RequestHash string          `json:"request_hash"`
	State       string          `json:"state"` // in_flight | complete
	Response    *StoredResponse `json:"response,omitempty"`
}

// RedisReplayStore is a process-external replay store. Redis expiry handles
// purging; per-key linearization follows from SET NX atomicity.
type RedisReplayStore struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewRedisReplayStore wraps an existing Redis client.
func NewRedisReplayStore(client redis.UniversalClient) *RedisReplayStore {
	return &RedisReplayStore{client: client}
}

// WithClock overrides the clock for tests.
func (s *RedisReplayStore) WithClock(now func() time.Time) *RedisReplayStore {
	s.now = now
	return s
}

func (s *RedisReplayStore) nowMs() int64 {
	if s.now != nil {
		return s.now().UnixMilli()
	}
	return time.Now().UnixMilli()
}

func (s *RedisReplayStore) BeginOrReplay(ctx context.Context, key, requestHash string, expiresAtMs int64) (BeginResult, error) {
	ttl := time.Duration(expiresAtMs-s.nowMs()) * time.Millisecond
	if ttl <= 0 {
		ttl = time.Millisecond
	}

	payload, err := json.Marshal(redisEntry{RequestHash: requestHash, State: "in_flight"})
	if err != nil {
		return BeginResult{}, fmt.Errorf("marshal replay entry: %w", err)
	}

	inserted, err := s.client.SetNX(ctx, redisKeyPrefix+key, payload, ttl).Result()
	if err != nil {
		return BeginResult{}, fmt.Errorf("redis setnx: %w", err)
	}
	if inserted {
		return BeginResult{Outcome: BeginProceed}, nil
	}

	raw, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		// Entry expired between SETNX and GET; treat as a fresh reservation.
		return s.BeginOrReplay(ctx, key, requestHash, expiresAtMs)
	}
	if err != nil {
		return BeginResult{}, fmt.Errorf("redis get: %w", err)
	}

	var entry redisEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return BeginResult{}, fmt.Errorf("decode replay entry: %w", err)
	}

	if entry.RequestHash != requestHash {
		return BeginResult{Outcome: BeginConflict}, nil
	}
	if entry.State == "complete" {
		return BeginResult{Outcome: BeginReplay, Stored: entry.Response}, nil
	}
	return BeginResult{Outcome: BeginInFlight}, nil
}

func (s *RedisReplayStore) Complete(ctx context.Context, key, requestHash string, resp *StoredResponse) error {
	payload, err := json.Marshal(redisEntry{RequestHash: requestHash, State: "complete", Response: resp})
	if err != nil {
		return fmt.Errorf("marshal replay entry: %w", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+key, payload, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisReplayStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
