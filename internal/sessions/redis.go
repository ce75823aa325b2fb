package sessions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	pkgredis "github.com/angelmondragon/courtside-storefront/pkg/redis"
)

type kvStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CartSessionKey(namespace, visitorID string) string
}

// RedisStore keeps handles under cs:cart_session:{namespace}:{visitor}. Every
// save refreshes the TTL.
type RedisStore struct {
	client    kvStore
	namespace string
	ttl       time.Duration
}

func NewRedisStore(client kvStore, namespace string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, namespace: namespace, ttl: ttl}
}

func (s *RedisStore) Load(ctx context.Context, visitorID string) (string, error) {
	if err := requireVisitor(visitorID); err != nil {
		return "", err
	}
	value, err := s.client.Get(ctx, s.client.CartSessionKey(s.namespace, visitorID))
	if err != nil {
		if errors.Is(err, pkgredis.ErrNil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("load cart session handle: %w", err)
	}
	return value, nil
}

func (s *RedisStore) Save(ctx context.Context, visitorID, value string) error {
	if err := requireVisitor(visitorID); err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.client.CartSessionKey(s.namespace, visitorID), value, s.ttl); err != nil {
		return fmt.Errorf("save cart session handle: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, visitorID string) error {
	if err := requireVisitor(visitorID); err != nil {
		return err
	}
	if err := s.client.Del(ctx, s.client.CartSessionKey(s.namespace, visitorID)); err != nil {
		return fmt.Errorf("delete cart session handle: %w", err)
	}
	return nil
}

func requireVisitor(visitorID string) error {
	if strings.TrimSpace(visitorID) == "" {
		return errors.New("visitor id is required")
	}
	return nil
}
