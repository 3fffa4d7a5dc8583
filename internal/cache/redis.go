package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// PixCache keeps PIX copy-paste codes by charge id so the QR page does not
// have to call the provider again.
type PixCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	Ttl      time.Duration
}

func NewPixCache(ctx context.Context, conf Config) (*PixCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         conf.Addr,
		Password:     conf.Password,
		DB:           conf.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis connect: %w", err)
	}
	return &PixCache{
		client: rdb,
		prefix: conf.Prefix,
		ttl:    conf.Ttl,
	}, nil
}

func (c *PixCache) key(parts ...string) string {
	return strings.Join(append([]string{c.prefix}, parts...), ":")
}

func (c *PixCache) PutPix(ctx context.Context, chargeId, code string) error {
	return c.client.Set(ctx, c.key("pix", chargeId), code, c.ttl).Err()
}

// GetPix returns an empty string when the code is not cached.
func (c *PixCache) GetPix(ctx context.Context, chargeId string) (string, error) {
	code, err := c.client.Get(ctx, c.key("pix", chargeId)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return code, nil
}

func (c *PixCache) Close() {
	_ = c.client.Close()
}
