package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisScanCount = 100

var errStopScan = errors.New("scan stopped")

// RedisTier persistent tier on Redis: key <prefix><category>:<id>, value is the
// JSON record. No Redis TTL is set; the Manager decides freshness.
type RedisTier struct {
	client     redis.UniversalClient
	keyPrefix  string
	ownsClient bool
}

// NewRedisTier the caller keeps ownership of client
func NewRedisTier(client redis.UniversalClient, keyPrefix string) *RedisTier {
	return &RedisTier{client: client, keyPrefix: keyPrefix}
}

// OpenRedisTier dials and pings; Close closes the client
func OpenRedisTier(ctx context.Context, cfg RedisConfig) (*RedisTier, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, ErrTierIO.Wrapf(err, "ping redis %s", cfg.Addr)
	}
	t := NewRedisTier(client, cfg.KeyPrefix)
	t.ownsClient = true
	return t, nil
}

func (t *RedisTier) Name() string {
	return "redis"
}

// buildKey 构建完整的 Key
func (t *RedisTier) buildKey(key Key) string {
	return t.keyPrefix + key.String()
}

func (t *RedisTier) Lookup(ctx context.Context, key Key) (*Entry, error) {
	data, err := t.client.Get(ctx, t.buildKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, ErrTierIO.Wrapf(err, "get %s", key)
	}
	return decodeRecord(data)
}

func (t *RedisTier) Store(ctx context.Context, e *Entry) error {
	data, err := encodeRecord(e)
	if err != nil {
		return err
	}
	if err := t.client.Set(ctx, t.buildKey(e.Key), data, 0).Err(); err != nil {
		return ErrTierIO.Wrapf(err, "set %s", e.Key)
	}
	return nil
}

// StoreBatch one MULTI/EXEC round trip
func (t *RedisTier) StoreBatch(ctx context.Context, entries []*Entry) error {
	if len(entries) == 0 {
		return nil
	}
	encoded := make([][]byte, len(entries))
	for i, e := range entries {
		data, err := encodeRecord(e)
		if err != nil {
			return err
		}
		encoded[i] = data
	}
	_, err := t.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, e := range entries {
			pipe.Set(ctx, t.buildKey(e.Key), encoded[i], 0)
		}
		return nil
	})
	if err != nil {
		return ErrTierIO.Wrapf(err, "pipeline batch of %d", len(entries))
	}
	return nil
}

func (t *RedisTier) Remove(ctx context.Context, key Key) error {
	if err := t.client.Del(ctx, t.buildKey(key)).Err(); err != nil {
		return ErrTierIO.Wrapf(err, "del %s", key)
	}
	return nil
}

// scanKeys 使用 SCAN 避免阻塞
func (t *RedisTier) scanKeys(ctx context.Context, match string, fn func(keys []string) error) error {
	var cursor uint64
	for {
		keys, next, err := t.client.Scan(ctx, cursor, match, redisScanCount).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// RemoveCategory SCAN + DEL over <prefix><category>:*
func (t *RedisTier) RemoveCategory(ctx context.Context, category Category) (int, error) {
	removed := 0
	err := t.scanKeys(ctx, t.keyPrefix+string(category)+":*", func(keys []string) error {
		n, err := t.client.Del(ctx, keys...).Result()
		removed += int(n)
		return err
	})
	if err != nil {
		return removed, ErrTierIO.Wrapf(err, "remove category %s", category)
	}
	return removed, nil
}

// Scan SCAN + MGET; undecodable values are skipped
func (t *RedisTier) Scan(ctx context.Context, fn func(*Entry) bool) error {
	err := t.scanKeys(ctx, t.keyPrefix+"*", func(keys []string) error {
		values, err := t.client.MGet(ctx, keys...).Result()
		if err != nil {
			return err
		}
		for _, v := range values {
			s, ok := v.(string)
			if !ok {
				continue
			}
			e, err := decodeRecord([]byte(s))
			if err != nil {
				continue
			}
			if !fn(e) {
				return errStopScan
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopScan) {
		return ErrTierIO.Wrapf(err, "scan %s*", t.keyPrefix)
	}
	return nil
}

func (t *RedisTier) Ping(ctx context.Context) error {
	if err := t.client.Ping(ctx).Err(); err != nil {
		return ErrTierIO.Wrapf(err, "ping redis")
	}
	return nil
}

// Close closes the client only when the tier dialed it
func (t *RedisTier) Close() error {
	if !t.ownsClient {
		return nil
	}
	return t.client.Close()
}
