package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/etherwheel/custody-ledger/api/http/types"
)

// ErrDisabled indicates the cache layer is disabled via configuration.
var ErrDisabled = errors.New("redis cache disabled")

// Config represents Redis client configuration options.
type Config struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// LoadConfigFromEnv constructs a Config from environment variables.
//
// Recognized variables:
//   - API_REDIS_ADDR (required to enable the cache)
//   - API_REDIS_PASSWORD (optional)
//   - API_REDIS_DB (defaults to 0)
//   - API_REDIS_TTL (parseable duration, defaults to 3s)
func LoadConfigFromEnv() (Config, error) {
	addr := os.Getenv("API_REDIS_ADDR")
	if addr == "" {
		return Config{Enabled: false, TTL: 3 * time.Second}, nil
	}

	password := os.Getenv("API_REDIS_PASSWORD")

	db := 0
	if rawDB := os.Getenv("API_REDIS_DB"); rawDB != "" {
		parsed, err := strconv.Atoi(rawDB)
		if err != nil {
			return Config{}, fmt.Errorf("invalid API_REDIS_DB: %w", err)
		}
		db = parsed
	}

	// Prices move every few seconds, so the default TTL is short.
	ttl := 3 * time.Second
	if rawTTL := os.Getenv("API_REDIS_TTL"); rawTTL != "" {
		parsed, err := time.ParseDuration(rawTTL)
		if err != nil {
			return Config{}, fmt.Errorf("invalid API_REDIS_TTL: %w", err)
		}
		ttl = parsed
	}

	return Config{
		Enabled:  true,
		Addr:     addr,
		Password: password,
		DB:       db,
		TTL:      ttl,
	}, nil
}

// Cache wraps a Redis client for read-side price caching.
type Cache struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Cache from the provided configuration.
func New(cfg Config) (*Cache, error) {
	if !cfg.Enabled {
		return &Cache{cfg: cfg}, nil
	}

	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	client := redis.NewClient(opts)

	return &Cache{
		client: client,
		cfg:    cfg,
	}, nil
}

const priceKey = "oracle:price"

// GetPrice retrieves the cached normalized price.
func (c *Cache) GetPrice(ctx context.Context) (types.PriceResponse, error) {
	if c == nil || c.client == nil {
		return types.PriceResponse{}, ErrDisabled
	}

	payload, err := c.client.Get(ctx, priceKey).Result()
	if errors.Is(err, redis.Nil) {
		return types.PriceResponse{}, types.ErrNotFound
	}
	if err != nil {
		return types.PriceResponse{}, err
	}

	var price types.PriceResponse
	if err := json.Unmarshal([]byte(payload), &price); err != nil {
		return types.PriceResponse{}, err
	}

	return price, nil
}

// SetPrice stores the normalized price under the configured TTL.
func (c *Cache) SetPrice(ctx context.Context, price types.PriceResponse) error {
	if c == nil || c.client == nil {
		return ErrDisabled
	}

	payload, err := json.Marshal(price)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, priceKey, payload, c.cfg.TTL).Err()
}
