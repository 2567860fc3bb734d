package legacy

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/aerobooks/orderdesk/internal/domain"
)

const keyPrefix = "legacy:order:"

// Store is the access contract for the legacy order collection. Both the
// checkout flow and the sync bridge write through it; usage is
// single-writer-at-a-time, so no locking discipline is layered on top.
type Store interface {
	Get(ctx context.Context, id string) (*Order, error)
	Put(ctx context.Context, order *Order) error
	List(ctx context.Context) ([]Order, error)
}

// RedisStore persists legacy orders as JSON values under namespaced keys.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(redisURL string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{rdb: rdb}, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Order, error) {
	val, err := s.rdb.Get(ctx, keyPrefix+id).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get legacy order %s: %w", id, err)
	}

	var order Order
	if err := json.Unmarshal([]byte(val), &order); err != nil {
		return nil, fmt.Errorf("unmarshal legacy order %s: %w", id, err)
	}
	return &order, nil
}

func (s *RedisStore) Put(ctx context.Context, order *Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshal legacy order: %w", err)
	}
	if err := s.rdb.Set(ctx, keyPrefix+order.ID, data, 0).Err(); err != nil {
		return fmt.Errorf("store legacy order %s: %w", order.ID, err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]Order, error) {
	var orders []Order
	var cursor uint64

	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scan legacy orders: %w", err)
		}

		if len(keys) > 0 {
			vals, err := s.rdb.MGet(ctx, keys...).Result()
			if err != nil {
				return nil, fmt.Errorf("fetch legacy orders: %w", err)
			}
			for _, v := range vals {
				raw, ok := v.(string)
				if !ok {
					continue
				}
				var order Order
				if err := json.Unmarshal([]byte(raw), &order); err != nil {
					continue
				}
				orders = append(orders, order)
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return orders, nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
