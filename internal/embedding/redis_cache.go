package embedding

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisCache shares embeddings between processes. Vectors are stored as
// little-endian float32 arrays.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	// Prefix namespaces keys, usually by model name.
	Prefix string
}

func NewRedisCache(cfg RedisConfig, logger *zap.Logger) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisCacheWithClient(client, cfg.Prefix, cfg.TTL, logger)
}

func NewRedisCacheWithClient(client redis.UniversalClient, prefix string, ttl time.Duration, logger *zap.Logger) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl, logger: logger}
}

func (c *RedisCache) key(k string) string {
	return c.prefix + k
}

func (c *RedisCache) Get(ctx context.Context, key string) (Vector, bool) {
	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("redis cache lookup failed", zap.Error(err))
		return nil, false
	}

	v, err := decodeVector(raw)
	if err != nil {
		c.logger.Warn("discarding corrupt redis cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return v, true
}

func (c *RedisCache) Add(ctx context.Context, key string, v Vector) {
	if err := c.client.Set(ctx, c.key(key), encodeVector(v), c.ttl).Err(); err != nil {
		c.logger.Warn("redis cache write failed", zap.Error(err))
	}
}

func (c *RedisCache) Purge(ctx context.Context) {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 256).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("redis cache scan failed", zap.Error(err))
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("redis cache purge failed", zap.Error(err))
	}
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func encodeVector(v Vector) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(buf []byte) (Vector, error) {
	if len(buf) == 0 || len(buf)%4 != 0 {
		return nil, fmt.Errorf("invalid payload length %d", len(buf))
	}
	v := make(Vector, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v, nil
}
