package storage

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/hamlet-filter/hamlet/pkg/config"
)

// RedisDriver stores one hash per token with ham/spam fields under a
// configurable key prefix. Mutations inside a transaction bracket are queued
// on a TxPipeline and applied atomically on FinishTransaction.
type RedisDriver struct {
	client *redis.Client
	prefix string
	ctx    context.Context
	pipe   redis.Pipeliner
}

// NewRedisDriver connects to Redis and verifies the connection. A failed
// connection is a fatal configuration error.
func NewRedisDriver(cfg *config.RedisConfig) (*RedisDriver, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}
	opt.DB = cfg.DatabaseNum

	client := redis.NewClient(opt)

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("Redis connection failed: %w", err)
	}

	return &RedisDriver{
		client: client,
		prefix: cfg.KeyPrefix,
		ctx:    ctx,
	}, nil
}

func (d *RedisDriver) key(token string) string {
	return d.prefix + ":" + token
}

func (d *RedisDriver) IsInitialized() (bool, error) {
	n, err := d.client.Exists(d.ctx, d.key(KeyVersion)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check store state: %w", err)
	}
	return n > 0, nil
}

func (d *RedisDriver) IsUpToDate() (bool, error) {
	value, err := d.client.HGet(d.ctx, d.key(KeyVersion), "ham").Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read schema version: %w", err)
	}

	version, err := strconv.Atoi(value)
	if err != nil {
		return false, nil
	}
	return version == SchemaVersion, nil
}

func (d *RedisDriver) Initialize() error {
	pipe := d.client.TxPipeline()
	pipe.HSet(d.ctx, d.key(KeyVersion), "ham", SchemaVersion, "spam", 0)
	pipe.HSetNX(d.ctx, d.key(KeyTexts), "ham", 0)
	pipe.HSetNX(d.ctx, d.key(KeyTexts), "spam", 0)
	if _, err := pipe.Exec(d.ctx); err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	return nil
}

func (d *RedisDriver) FetchTokenData(tokens []string) (map[string]TokenCounts, error) {
	if len(tokens) == 0 {
		return map[string]TokenCounts{}, nil
	}

	pipe := d.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(tokens))
	for i, token := range tokens {
		cmds[i] = pipe.HGetAll(d.ctx, d.key(token))
	}
	if _, err := pipe.Exec(d.ctx); err != nil {
		return nil, fmt.Errorf("failed to fetch token data: %w", err)
	}

	found := make(map[string]TokenCounts)
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		ham, _ := strconv.ParseInt(fields["ham"], 10, 64)
		spam, _ := strconv.ParseInt(fields["spam"], 10, 64)
		found[tokens[i]] = TokenCounts{Ham: ham, Spam: spam}
	}
	return found, nil
}

func (d *RedisDriver) AddToken(token string, counts TokenCounts) error {
	return d.UpdateToken(token, counts)
}

func (d *RedisDriver) UpdateToken(token string, counts TokenCounts) error {
	if d.pipe != nil {
		d.pipe.HSet(d.ctx, d.key(token), "ham", counts.Ham, "spam", counts.Spam)
		return nil
	}
	if err := d.client.HSet(d.ctx, d.key(token), "ham", counts.Ham, "spam", counts.Spam).Err(); err != nil {
		return fmt.Errorf("failed to write token %q: %w", token, err)
	}
	return nil
}

func (d *RedisDriver) DeleteToken(token string) error {
	if d.pipe != nil {
		d.pipe.Del(d.ctx, d.key(token))
		return nil
	}
	if err := d.client.Del(d.ctx, d.key(token)).Err(); err != nil {
		return fmt.Errorf("failed to delete token %q: %w", token, err)
	}
	return nil
}

func (d *RedisDriver) DeletePrefix(prefix string) error {
	pattern := d.key(prefix) + "*"
	iter := d.client.Scan(d.ctx, 0, pattern, 1000).Iterator()

	pipe := d.client.Pipeline()
	queued := 0
	for iter.Next(d.ctx) {
		pipe.Del(d.ctx, iter.Val())
		queued++
		if queued >= 100 {
			if _, err := pipe.Exec(d.ctx); err != nil {
				return fmt.Errorf("failed to delete keys: %w", err)
			}
			pipe = d.client.Pipeline()
			queued = 0
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan keys: %w", err)
	}
	if queued > 0 {
		if _, err := pipe.Exec(d.ctx); err != nil {
			return fmt.Errorf("failed to delete keys: %w", err)
		}
	}
	return nil
}

func (d *RedisDriver) StartTransaction() error {
	// An unfinished bracket from a failed ProcessText is discarded here,
	// never replayed.
	d.pipe = d.client.TxPipeline()
	return nil
}

func (d *RedisDriver) FinishTransaction() error {
	if d.pipe == nil {
		return fmt.Errorf("no transaction in progress")
	}
	pipe := d.pipe
	d.pipe = nil
	if _, err := pipe.Exec(d.ctx); err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}
	return nil
}

func (d *RedisDriver) Close() error {
	return d.client.Close()
}
