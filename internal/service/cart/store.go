package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"github.com/jwalitptl/lab-portal-api/internal/config"
	"github.com/jwalitptl/lab-portal-api/internal/model"
)

// ErrCartNotFound is returned by Load for unknown or expired carts.
var ErrCartNotFound = errors.New("cart not found")

// Store persists carts between requests. Carts expire after the store's TTL
// of inactivity.
type Store interface {
	Load(ctx context.Context, id string) (*model.Cart, error)
	Save(ctx context.Context, cart *model.Cart) error
	Delete(ctx context.Context, id string) error
}

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisClient connects to redis and pings it.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.MaxRetries = cfg.MaxRetries
	opts.MinRetryBackoff = cfg.RetryBackoff
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, prefix: "cart:"}
}

func (s *RedisStore) Load(ctx context.Context, id string) (*model.Cart, error) {
	data, err := s.client.Get(ctx, s.prefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	var cart model.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("failed to decode cart: %w", err)
	}
	return &cart, nil
}

func (s *RedisStore) Save(ctx context.Context, cart *model.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+cart.ID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.prefix+id).Err(); err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	return nil
}

// MemoryStore keeps carts in process. Carts are lost on restart; it is meant
// for single-instance deployments and local development.
type MemoryStore struct {
	carts *cache.Cache
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{carts: cache.New(ttl, 2*ttl)}
}

func (s *MemoryStore) Load(ctx context.Context, id string) (*model.Cart, error) {
	v, ok := s.carts.Get(id)
	if !ok {
		return nil, ErrCartNotFound
	}
	var cart model.Cart
	if err := json.Unmarshal(v.([]byte), &cart); err != nil {
		return nil, fmt.Errorf("failed to decode cart: %w", err)
	}
	return &cart, nil
}

// Save stores an encoded copy so callers cannot mutate stored carts.
func (s *MemoryStore) Save(ctx context.Context, cart *model.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}
	s.carts.SetDefault(cart.ID, data)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.carts.Delete(id)
	return nil
}
