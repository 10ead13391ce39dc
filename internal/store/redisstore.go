package store

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/md-rashed-zaman/reservd/internal/model"
)

const (
	redisSlotsKey = "reservd:slots"
	redisHoldsKey = "reservd:holds"
)

// RedisStore keeps each document as a single JSON value, preserving the
// whole-snapshot read/write contract (a GET and a SET, never per-field
// mutation). Useful when the data directory can't survive restarts.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) LoadSlots(ctx context.Context) ([]model.Slot, error) {
	data, err := s.rdb.Get(ctx, redisSlotsKey).Bytes()
	if err == redis.Nil {
		return []model.Slot{}, nil
	}
	if err != nil {
		return nil, unavailable("get slots", err)
	}
	var slots []model.Slot
	if err := json.Unmarshal(data, &slots); err != nil {
		return nil, unavailable("parse slots", err)
	}
	return slots, nil
}

func (s *RedisStore) SaveSlots(ctx context.Context, slots []model.Slot) error {
	if slots == nil {
		slots = []model.Slot{}
	}
	data, err := json.Marshal(slots)
	if err != nil {
		return unavailable("encode slots", err)
	}
	if err := s.rdb.Set(ctx, redisSlotsKey, data, 0).Err(); err != nil {
		return unavailable("set slots", err)
	}
	return nil
}

func (s *RedisStore) LoadHolds(ctx context.Context) (model.HoldDocument, error) {
	data, err := s.rdb.Get(ctx, redisHoldsKey).Bytes()
	if err == redis.Nil {
		return model.NewHoldDocument(), nil
	}
	if err != nil {
		return model.HoldDocument{}, unavailable("get holds", err)
	}
	var doc model.HoldDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return model.HoldDocument{}, unavailable("parse holds", err)
	}
	doc.Normalize()
	return doc, nil
}

func (s *RedisStore) SaveHolds(ctx context.Context, doc model.HoldDocument) error {
	doc.Normalize()
	data, err := json.Marshal(doc)
	if err != nil {
		return unavailable("encode holds", err)
	}
	if err := s.rdb.Set(ctx, redisHoldsKey, data, 0).Err(); err != nil {
		return unavailable("set holds", err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return unavailable("ping", err)
	}
	return nil
}
